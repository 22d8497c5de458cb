package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/vaultkit/pkg/logger"
	"github.com/dmitrymomot/vaultkit/pkg/tags"
)

// ChangeApplier receives tag-set changes of password records.
type ChangeApplier interface {
	ApplyChange(ctx context.Context, userID string, before, after []string) (tags.Change, error)
}

type passwordChange struct {
	OperationType string         `bson:"operationType"`
	DocumentKey   bson.M         `bson:"documentKey"`
	FullDocument  *passwordModel `bson:"fullDocument"`
	Before        *passwordModel `bson:"fullDocumentBeforeChange"`
}

// PasswordFeed follows the passwords collection change stream and forwards
// tag-set changes to a ChangeApplier. Rewrites made by tag merges are
// recognised by a changed tagsMergedAt and skipped; the merge moves the
// counters itself.
type PasswordFeed struct {
	coll       *mongo.Collection
	applier    ChangeApplier
	logger     *slog.Logger
	retryDelay time.Duration
	onChange   func(tags.Change)
}

// FeedOption configures a PasswordFeed.
type FeedOption func(*PasswordFeed)

func WithFeedLogger(l *slog.Logger) FeedOption {
	return func(f *PasswordFeed) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithRetryDelay sets the pause before reopening a failed stream.
func WithRetryDelay(d time.Duration) FeedOption {
	return func(f *PasswordFeed) {
		if d > 0 {
			f.retryDelay = d
		}
	}
}

// WithChangeObserver is called after every applied change.
func WithChangeObserver(fn func(tags.Change)) FeedOption {
	return func(f *PasswordFeed) {
		f.onChange = fn
	}
}

func NewPasswordFeed(db *mongo.Database, applier ChangeApplier, opts ...FeedOption) *PasswordFeed {
	f := &PasswordFeed{
		coll:       db.Collection(colPasswords),
		applier:    applier,
		logger:     logger.Discard(),
		retryDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run follows the stream until ctx is cancelled, reopening it from the last
// processed resume token after failures.
func (f *PasswordFeed) Run(ctx context.Context) error {
	var token bson.Raw
	for {
		next, err := f.watch(ctx, token)
		if next != nil {
			token = next
		}
		if ctx.Err() != nil {
			return nil
		}
		f.logger.WarnContext(ctx, "password change stream interrupted", logger.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.retryDelay):
		}
	}
}

func (f *PasswordFeed) watch(ctx context.Context, resumeAfter bson.Raw) (bson.Raw, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}}}},
		}}},
	}
	opts := options.ChangeStream().
		SetFullDocument(options.WhenAvailable).
		SetFullDocumentBeforeChange(options.WhenAvailable)
	if resumeAfter != nil {
		opts.SetResumeAfter(resumeAfter)
	}

	cs, err := f.coll.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, fmt.Errorf("open change stream: %w", err)
	}
	defer cs.Close(context.WithoutCancel(ctx))

	var last bson.Raw
	for cs.Next(ctx) {
		var ev passwordChange
		if err := cs.Decode(&ev); err != nil {
			return last, fmt.Errorf("decode change event: %w", err)
		}
		if err := f.handle(ctx, ev); err != nil {
			// The token is not advanced; the event is redelivered on reopen.
			return last, err
		}
		last = cs.ResumeToken()
	}
	return last, cs.Err()
}

func (f *PasswordFeed) handle(ctx context.Context, ev passwordChange) error {
	before, after := ev.Before, ev.FullDocument
	if ev.OperationType == "delete" {
		after = nil
	}
	if ev.OperationType == "insert" {
		before = nil
	}

	if mergeRewrite(before, after) {
		return nil
	}

	var userID string
	switch {
	case after != nil:
		userID = after.UserID
	case before != nil:
		userID = before.UserID
	default:
		f.logger.WarnContext(ctx, "password change without document images",
			slog.String("operation", ev.OperationType),
			slog.Any("document_key", ev.DocumentKey),
		)
		return nil
	}

	c, err := f.applier.ApplyChange(ctx, userID, tagIDs(before), tagIDs(after))
	if err != nil {
		return fmt.Errorf("apply tag change for user %s: %w", userID, err)
	}
	if f.onChange != nil && !c.Empty() {
		f.onChange(c)
	}
	return nil
}

// mergeRewrite reports whether the update was written by a tag merge.
func mergeRewrite(before, after *passwordModel) bool {
	if before == nil || after == nil || after.TagsMergedAt == nil {
		return false
	}
	return before.TagsMergedAt == nil || !before.TagsMergedAt.Equal(*after.TagsMergedAt)
}

func tagIDs(m *passwordModel) []string {
	if m == nil {
		return nil
	}
	return m.TagIDs
}
