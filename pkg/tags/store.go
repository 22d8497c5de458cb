package tags

import (
	"context"
	"time"
)

// Store persists tag counters and the tag sets of password records.
type Store interface {
	// AdjustUsage applies all deltas for the user as one atomic batch.
	AdjustUsage(ctx context.Context, userID string, deltas map[string]int64, now time.Time) error

	// RecordsWithTag lists the user's records whose tag set contains tagID.
	RecordsWithTag(ctx context.Context, userID, tagID string) ([]Record, error)

	// RewriteTags replaces tag sets for up to MergeBatchSize records as one
	// atomic batch and stamps TagsMergedAt with now.
	RewriteTags(ctx context.Context, userID string, batch []Rewrite, now time.Time) error

	// TransferUsage adds the source counter to the target and deletes the
	// source counter in one transaction. A missing source transfers zero.
	TransferUsage(ctx context.Context, userID, sourceTagID, targetTagID string, now time.Time) (int64, error)
}
