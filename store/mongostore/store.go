package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names.
const (
	colUsers       = "users"
	colQuotaLedger = "quota_ledger"
	colTagCounters = "tag_counters"
	colPasswords   = "passwords"
)

// quotaRetention is how long ledger entries outlive their last update.
const quotaRetention = 48 * time.Hour

// emailCollation makes e-mail equality case-insensitive.
var emailCollation = &options.Collation{Locale: "en", Strength: 2}

// Migrate creates the indexes every store in this package relies on.
func Migrate(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetCollation(emailCollation),
			},
		},
		colQuotaLedger: {
			{
				Keys:    bson.D{{Key: "updatedAt", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(int32(quotaRetention / time.Second)),
			},
		},
		colTagCounters: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "tagId", Value: 1}}},
		},
		colPasswords: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "tagIds", Value: 1}}},
		},
	}

	for col, models := range indexes {
		if _, err := db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongostore: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// EnablePreAndPostImages turns on document images for the passwords
// collection so change streams carry the tag set before each change.
// Requires MongoDB 6.0+; the collection is created if missing.
func EnablePreAndPostImages(ctx context.Context, db *mongo.Database) error {
	err := db.CreateCollection(ctx, colPasswords,
		options.CreateCollection().SetChangeStreamPreAndPostImages(bson.M{"enabled": true}))
	if err == nil {
		return nil
	}
	var cmdErr mongo.CommandError
	if !asCommandError(err, &cmdErr) || cmdErr.Name != "NamespaceExists" {
		return fmt.Errorf("mongostore: create %s: %w", colPasswords, err)
	}

	cmd := bson.D{
		{Key: "collMod", Value: colPasswords},
		{Key: "changeStreamPreAndPostImages", Value: bson.M{"enabled": true}},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("mongostore: enable pre and post images: %w", err)
	}
	return nil
}
