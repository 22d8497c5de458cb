package tags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/vaultkit/pkg/logger"
)

// Reconciler keeps tag usage counters consistent with record tag sets.
type Reconciler struct {
	store     Store
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithBatchSize lowers the merge batch size. Values outside
// 1..MergeBatchSize are ignored.
func WithBatchSize(n int) Option {
	return func(r *Reconciler) {
		if n > 0 && n <= MergeBatchSize {
			r.batchSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReconciler panics if store is nil.
func NewReconciler(store Store, opts ...Option) *Reconciler {
	if store == nil {
		panic("tags: store is required")
	}
	r := &Reconciler{
		store:     store,
		batchSize: MergeBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ApplyChange adjusts counters for one record whose tag set went from before
// to after. A nil before means the record was created, a nil after that it
// was deleted.
func (r *Reconciler) ApplyChange(ctx context.Context, userID string, before, after []string) (Change, error) {
	c := Diff(before, after)
	if c.Empty() {
		return c, nil
	}
	if err := r.store.AdjustUsage(ctx, userID, c.Deltas(), r.now()); err != nil {
		return Change{}, errors.Join(ErrAdjustUsage, err)
	}
	return c, nil
}

// Merge folds sourceTagID into targetTagID for all of the user's records and
// moves the source usage onto the target.
//
// Record rewrites are committed in batches and the counter transfer runs as a
// separate transaction afterwards. A failure between the two leaves records
// rewritten without the transfer; rerunning Merge completes it.
func (r *Reconciler) Merge(ctx context.Context, userID, sourceTagID, targetTagID string) (MergeResult, error) {
	if userID == "" {
		return MergeResult{}, ErrUnauthenticated
	}
	if sourceTagID == "" || targetTagID == "" || sourceTagID == targetTagID {
		return MergeResult{}, ErrInvalidArgument
	}

	records, err := r.store.RecordsWithTag(ctx, userID, sourceTagID)
	if err != nil {
		return MergeResult{}, fmt.Errorf("list records with tag %s: %w", sourceTagID, err)
	}

	var res MergeResult
	batch := make([]Rewrite, 0, min(len(records), r.batchSize))
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.store.RewriteTags(ctx, userID, batch, r.now()); err != nil {
			return errors.Join(ErrRewrite, err)
		}
		res.RecordsRewritten += len(batch)
		res.Batches++
		batch = batch[:0]
		return nil
	}

	for _, rec := range records {
		batch = append(batch, Rewrite{
			RecordID: rec.ID,
			TagIDs:   ReplaceTag(rec.TagIDs, sourceTagID, targetTagID),
		})
		if len(batch) == r.batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}

	transferred, err := r.store.TransferUsage(ctx, userID, sourceTagID, targetTagID, r.now())
	if err != nil {
		r.logger.ErrorContext(ctx, "tag records rewritten but usage transfer failed",
			logger.UserID(userID),
			logger.TagID("source_tag", sourceTagID),
			logger.TagID("target_tag", targetTagID),
			slog.Int("records", res.RecordsRewritten),
			logger.Error(err),
		)
		return res, errors.Join(ErrTransfer, err)
	}
	res.Transferred = transferred

	r.logger.InfoContext(ctx, "tags merged",
		logger.UserID(userID),
		logger.TagID("source_tag", sourceTagID),
		logger.TagID("target_tag", targetTagID),
		slog.Int("records", res.RecordsRewritten),
		slog.Int64("transferred", transferred),
	)
	return res, nil
}
