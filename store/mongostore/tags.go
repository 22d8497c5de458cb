package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongox "github.com/dmitrymomot/vaultkit/pkg/mongo"
	"github.com/dmitrymomot/vaultkit/pkg/tags"
)

var _ tags.Store = (*Tags)(nil)

type counterModel struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"userId"`
	TagID      string    `bson:"tagId"`
	UsageCount int64     `bson:"usageCount"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

type passwordModel struct {
	ID           string     `bson:"_id"`
	UserID       string     `bson:"userId"`
	TagIDs       []string   `bson:"tagIds"`
	TagsMergedAt *time.Time `bson:"tagsMergedAt,omitempty"`
}

func (m *passwordModel) toRecord() tags.Record {
	return tags.Record{
		ID:           m.ID,
		UserID:       m.UserID,
		TagIDs:       m.TagIDs,
		TagsMergedAt: derefTime(m.TagsMergedAt),
	}
}

func counterID(userID, tagID string) string {
	return userID + "/" + tagID
}

// Tags implements tags.Store on the tag_counters and passwords collections.
type Tags struct {
	counters  *mongo.Collection
	passwords *mongo.Collection
	tx        *mongox.Transactor
}

func NewTags(db *mongo.Database, tx *mongox.Transactor) *Tags {
	return &Tags{
		counters:  db.Collection(colTagCounters),
		passwords: db.Collection(colPasswords),
		tx:        tx,
	}
}

func incCounter(userID, tagID string, delta int64, now time.Time) *mongo.UpdateOneModel {
	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"_id": counterID(userID, tagID)}).
		SetUpdate(bson.M{
			"$inc":         bson.M{"usageCount": delta},
			"$set":         bson.M{"updatedAt": now},
			"$setOnInsert": bson.M{"userId": userID, "tagId": tagID},
		}).
		SetUpsert(true)
}

// AdjustUsage applies every delta in one transaction.
func (s *Tags) AdjustUsage(ctx context.Context, userID string, deltas map[string]int64, now time.Time) error {
	if len(deltas) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(deltas))
	for tagID, delta := range deltas {
		models = append(models, incCounter(userID, tagID, delta, now))
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.counters.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
		return err
	})
}

func (s *Tags) RecordsWithTag(ctx context.Context, userID, tagID string) ([]tags.Record, error) {
	cur, err := s.passwords.Find(ctx,
		bson.M{"userId": userID, "tagIds": tagID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongostore: find records with tag: %w", err)
	}

	var models []passwordModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("mongostore: decode records: %w", err)
	}

	out := make([]tags.Record, 0, len(models))
	for i := range models {
		out = append(out, models[i].toRecord())
	}
	return out, nil
}

// RewriteTags replaces the tag sets of one batch in a single transaction.
func (s *Tags) RewriteTags(ctx context.Context, userID string, batch []tags.Rewrite, now time.Time) error {
	if len(batch) == 0 {
		return nil
	}
	if len(batch) > tags.MergeBatchSize {
		return tags.ErrBatchTooLarge
	}

	models := make([]mongo.WriteModel, 0, len(batch))
	for _, rw := range batch {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": rw.RecordID, "userId": userID}).
			SetUpdate(bson.M{"$set": bson.M{"tagIds": rw.TagIDs, "tagsMergedAt": now}}))
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.passwords.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
		return err
	})
}

// TransferUsage reads and deletes the source counter and adds it to the
// target in one transaction.
func (s *Tags) TransferUsage(ctx context.Context, userID, sourceTagID, targetTagID string, now time.Time) (int64, error) {
	var moved int64
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		moved = 0

		var src counterModel
		err := s.counters.FindOneAndDelete(ctx, bson.M{"_id": counterID(userID, sourceTagID)}).Decode(&src)
		switch {
		case isNoDocuments(err):
		case err != nil:
			return err
		default:
			moved = src.UsageCount
		}

		_, err = s.counters.BulkWrite(ctx, []mongo.WriteModel{incCounter(userID, targetTagID, moved, now)})
		return err
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// Counter returns the stored counter, if any.
func (s *Tags) Counter(ctx context.Context, userID, tagID string) (tags.Counter, bool, error) {
	var m counterModel
	err := s.counters.FindOne(ctx, bson.M{"_id": counterID(userID, tagID)}).Decode(&m)
	if isNoDocuments(err) {
		return tags.Counter{}, false, nil
	}
	if err != nil {
		return tags.Counter{}, false, err
	}
	return tags.Counter{UserID: m.UserID, TagID: m.TagID, UsageCount: m.UsageCount, UpdatedAt: m.UpdatedAt}, true, nil
}
