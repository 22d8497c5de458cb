package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/vaultkit/pkg/billing"
)

var _ billing.UserStore = (*Users)(nil)

type userModel struct {
	ID      string        `bson:"_id"`
	Email   string        `bson:"email"`
	Billing *billingModel `bson:"billing,omitempty"`
}

type billingModel struct {
	Status            string     `bson:"status,omitempty"`
	PlanID            string     `bson:"planId,omitempty"`
	PriceID           string     `bson:"priceId,omitempty"`
	CustomerID        string     `bson:"providerCustomerId,omitempty"`
	SubscriptionID    string     `bson:"providerSubscriptionId,omitempty"`
	CurrentPeriodEnd  *time.Time `bson:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd bool       `bson:"cancelAtPeriodEnd"`
	UpdatedAt         *time.Time `bson:"updatedAt,omitempty"`
	LastEventAt       *time.Time `bson:"lastEventAt,omitempty"`
}

func (m *userModel) toUser() *billing.User {
	u := &billing.User{ID: m.ID, Email: m.Email}
	if b := m.Billing; b != nil {
		u.Billing = &billing.Record{
			Status:            billing.Status(b.Status),
			PlanID:            b.PlanID,
			PriceID:           b.PriceID,
			CustomerID:        b.CustomerID,
			SubscriptionID:    b.SubscriptionID,
			CancelAtPeriodEnd: b.CancelAtPeriodEnd,
			CurrentPeriodEnd:  derefTime(b.CurrentPeriodEnd),
			UpdatedAt:         derefTime(b.UpdatedAt),
			LastEventAt:       derefTime(b.LastEventAt),
		}
	}
	return u
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

// Users implements billing.UserStore on the users collection.
type Users struct {
	coll *mongo.Collection
}

func NewUsers(db *mongo.Database) *Users {
	return &Users{coll: db.Collection(colUsers)}
}

// Create inserts a user without billing data.
func (s *Users) Create(ctx context.Context, userID, email string) error {
	_, err := s.coll.InsertOne(ctx, userModel{ID: userID, Email: email})
	if err != nil {
		return fmt.Errorf("mongostore: create user: %w", err)
	}
	return nil
}

func (s *Users) Get(ctx context.Context, userID string) (*billing.User, error) {
	var m userModel
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, billing.ErrUserNotFound
		}
		return nil, fmt.Errorf("mongostore: get user: %w", err)
	}
	return m.toUser(), nil
}

func (s *Users) FindByEmail(ctx context.Context, email string) (*billing.User, error) {
	var m userModel
	err := s.coll.FindOne(ctx, bson.M{"email": email},
		options.FindOne().SetCollation(emailCollation)).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, billing.ErrUserNotFound
		}
		return nil, fmt.Errorf("mongostore: find user by email: %w", err)
	}
	return m.toUser(), nil
}

// UpdateBilling writes the patch with dotted $set paths so fields the patch
// leaves nil keep their stored value. Conditional patches add a lastEventAt
// guard to the filter.
func (s *Users) UpdateBilling(ctx context.Context, userID string, patch billing.Patch) error {
	filter := bson.M{"_id": userID}
	guarded := !patch.NotOlderThan.IsZero()
	if guarded {
		filter["$or"] = bson.A{
			bson.M{"billing.lastEventAt": bson.M{"$exists": false}},
			bson.M{"billing.lastEventAt": bson.M{"$lte": patch.NotOlderThan}},
		}
	}

	update := bson.M{"$set": billingSet(patch)}
	if p := patch.CurrentPeriodEnd; p != nil && p.IsZero() {
		update["$unset"] = bson.M{"billing.currentPeriodEnd": ""}
	}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongostore: update billing: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	if guarded {
		n, err := s.coll.CountDocuments(ctx, bson.M{"_id": userID})
		if err != nil {
			return fmt.Errorf("mongostore: update billing: %w", err)
		}
		if n > 0 {
			return billing.ErrStaleEvent
		}
	}
	return billing.ErrUserNotFound
}

func billingSet(p billing.Patch) bson.M {
	set := bson.M{"billing.updatedAt": p.UpdatedAt}
	if p.Status != nil {
		set["billing.status"] = string(*p.Status)
	}
	if p.PlanID != nil {
		set["billing.planId"] = *p.PlanID
	}
	if p.PriceID != nil {
		set["billing.priceId"] = *p.PriceID
	}
	if p.CustomerID != nil {
		set["billing.providerCustomerId"] = *p.CustomerID
	}
	if p.SubscriptionID != nil {
		set["billing.providerSubscriptionId"] = *p.SubscriptionID
	}
	if p.CurrentPeriodEnd != nil && !p.CurrentPeriodEnd.IsZero() {
		set["billing.currentPeriodEnd"] = *p.CurrentPeriodEnd
	}
	if p.CancelAtPeriodEnd != nil {
		set["billing.cancelAtPeriodEnd"] = *p.CancelAtPeriodEnd
	}
	if p.RecordEventAt {
		set["billing.lastEventAt"] = p.NotOlderThan
	}
	return set
}
