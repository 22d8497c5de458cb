package quota

import (
	"context"
	"errors"
	"time"
)

// Config configures the daily counter.
type Config struct {
	// Backend selects the ledger implementation: mongo, redis or memory.
	Backend string `env:"QUOTA_BACKEND" envDefault:"mongo"`
	// Timezone is the IANA zone whose calendar day scopes the counters.
	// Empty means the server's local zone.
	Timezone     string `env:"QUOTA_TIMEZONE"`
	DefaultLimit int64  `env:"QUOTA_DEFAULT_LIMIT" envDefault:"3"`
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Join(ErrInvalidTimezone, err)
	}
	return loc, nil
}

// Counter enforces "at most N uses of a feature key per calendar day". The
// ledger entry is shared by every owner consuming the same key; the owner is
// recorded on the entry as the last writer.
type Counter struct {
	ledger       Ledger
	loc          *time.Location
	defaultLimit int64
	now          func() time.Time
}

// Option configures a Counter.
type Option func(*Counter)

// WithLocation sets the zone whose calendar day scopes counters.
func WithLocation(loc *time.Location) Option {
	return func(c *Counter) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithDefaultLimit sets the limit used when callers pass a non-positive limit.
func WithDefaultLimit(limit int64) Option {
	return func(c *Counter) {
		if limit > 0 {
			c.defaultLimit = limit
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCounter panics if ledger is nil.
func NewCounter(ledger Ledger, opts ...Option) *Counter {
	if ledger == nil {
		panic("quota: ledger is required")
	}
	c := &Counter{
		ledger:       ledger,
		loc:          time.Local,
		defaultLimit: DefaultLimitPerDay,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Consume records one use of featureKey by ownerID for the current day.
// A non-positive limitPerDay selects the default limit.
// Rejection is a normal result (OK false), not an error.
func (c *Counter) Consume(ctx context.Context, ownerID, featureKey string, limitPerDay int64) (Result, error) {
	if ownerID == "" {
		return Result{}, ErrUnauthenticated
	}
	if featureKey == "" {
		return Result{}, ErrInvalidKey
	}
	if limitPerDay <= 0 {
		limitPerDay = c.defaultLimit
	}

	now := c.now()
	day := now.In(c.loc)

	res, err := c.ledger.Consume(ctx, Request{
		Key:     LedgerKey(featureKey, day),
		OwnerID: ownerID,
		Date:    day.Format(DateLayout),
		Limit:   limitPerDay,
		Now:     now.UTC(),
	})
	if err != nil {
		return Result{}, errors.Join(ErrTransaction, err)
	}
	return res, nil
}
