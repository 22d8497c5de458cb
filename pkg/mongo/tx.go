package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"
)

// Transactor runs callbacks inside multi-document transactions.
type Transactor struct {
	client  *mongo.Client
	timeout time.Duration
}

// NewTransactor creates a Transactor bound to client. A zero timeout means
// the callback is limited only by ctx.
func NewTransactor(client *mongo.Client, timeout time.Duration) *Transactor {
	return &Transactor{client: client, timeout: timeout}
}

// WithTransaction runs fn in a snapshot transaction with majority writes.
// The driver retries fn on TransientTransactionError and retries the commit on
// UnknownTransactionCommitResult, so fn must be safe to run more than once.
// Exhausting the retry budget returns an error joined with ErrTransaction.
func (t *Transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	sess, err := t.client.StartSession()
	if err != nil {
		return errors.Join(ErrTransaction, err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	}, txOpts)
	if err != nil {
		return errors.Join(ErrTransaction, err)
	}
	return nil
}
