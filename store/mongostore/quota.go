package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongox "github.com/dmitrymomot/vaultkit/pkg/mongo"
	"github.com/dmitrymomot/vaultkit/pkg/quota"
)

var _ quota.Ledger = (*QuotaLedger)(nil)

type ledgerModel struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"ownerId"`
	Key       string    `bson:"key"`
	Date      string    `bson:"date"`
	Count     int64     `bson:"count"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// QuotaLedger implements quota.Ledger with a read-then-conditional-write
// inside a MongoDB transaction.
type QuotaLedger struct {
	coll        *mongo.Collection
	tx          *mongox.Transactor
	maxAttempts int
}

func NewQuotaLedger(db *mongo.Database, tx *mongox.Transactor) *QuotaLedger {
	return &QuotaLedger{
		coll:        db.Collection(colQuotaLedger),
		tx:          tx,
		maxAttempts: 3,
	}
}

// Consume runs the quota decision in a transaction. Write conflicts are
// retried by the driver; a concurrent first insert of the same entry surfaces
// as a duplicate key error and is retried here.
func (l *QuotaLedger) Consume(ctx context.Context, req quota.Request) (quota.Result, error) {
	id := req.Key

	var (
		res quota.Result
		err error
	)
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		err = l.tx.WithTransaction(ctx, func(ctx context.Context) error {
			var current *quota.Entry
			var m ledgerModel
			switch ferr := l.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); {
			case isNoDocuments(ferr):
			case ferr != nil:
				return ferr
			default:
				current = &quota.Entry{Key: m.Key, OwnerID: m.OwnerID, Date: m.Date, Count: m.Count, UpdatedAt: m.UpdatedAt}
			}

			res = quota.Decide(current, req.Limit)
			if !res.OK {
				return nil
			}

			_, uerr := l.coll.UpdateOne(ctx,
				bson.M{"_id": id},
				bson.M{"$set": bson.M{
					"ownerId":   req.OwnerID,
					"key":       req.Key,
					"date":      req.Date,
					"count":     res.Count,
					"updatedAt": req.Now,
				}},
				options.UpdateOne().SetUpsert(true),
			)
			return uerr
		})
		if err == nil {
			return res, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	return quota.Result{}, err
}

// Get returns the stored entry, if any.
func (l *QuotaLedger) Get(ctx context.Context, key string) (quota.Entry, bool, error) {
	var m ledgerModel
	err := l.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&m)
	if isNoDocuments(err) {
		return quota.Entry{}, false, nil
	}
	if err != nil {
		return quota.Entry{}, false, err
	}
	return quota.Entry{Key: m.Key, OwnerID: m.OwnerID, Date: m.Date, Count: m.Count, UpdatedAt: m.UpdatedAt}, true, nil
}
