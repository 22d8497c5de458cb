package redisstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/vaultkit/pkg/quota"
)

var _ quota.Ledger = (*QuotaLedger)(nil)

// ErrContention is returned when every optimistic attempt lost a race.
var ErrContention = errors.New("redisstore: quota key contended, retries exhausted")

const (
	defaultPrefix      = "quota:"
	defaultTTL         = 48 * time.Hour
	defaultMaxAttempts = 20
)

// QuotaLedger implements quota.Ledger on Redis hashes with WATCH/MULTI
// optimistic transactions. Keys expire after the TTL so day keys do not
// accumulate.
type QuotaLedger struct {
	client      redis.UniversalClient
	prefix      string
	ttl         time.Duration
	maxAttempts int
}

// Option configures a QuotaLedger.
type Option func(*QuotaLedger)

func WithKeyPrefix(prefix string) Option {
	return func(l *QuotaLedger) {
		l.prefix = prefix
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(l *QuotaLedger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithMaxAttempts bounds the optimistic retries of one Consume call.
func WithMaxAttempts(n int) Option {
	return func(l *QuotaLedger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func NewQuotaLedger(client redis.UniversalClient, opts ...Option) *QuotaLedger {
	l := &QuotaLedger{
		client:      client,
		prefix:      defaultPrefix,
		ttl:         defaultTTL,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *QuotaLedger) key(key string) string {
	return l.prefix + key
}

// Consume reads the entry under WATCH and commits the increment in MULTI.
// A concurrent writer aborts the commit with redis.TxFailedErr and the
// attempt is repeated.
func (l *QuotaLedger) Consume(ctx context.Context, req quota.Request) (quota.Result, error) {
	k := l.key(req.Key)

	var res quota.Result
	txf := func(tx *redis.Tx) error {
		current, err := readEntry(ctx, tx, k)
		if err != nil {
			return err
		}

		res = quota.Decide(current, req.Limit)
		if !res.OK {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k,
				"ownerId", req.OwnerID,
				"key", req.Key,
				"date", req.Date,
				"count", res.Count,
				"updatedAt", req.Now.UnixMilli(),
			)
			pipe.Expire(ctx, k, l.ttl)
			return nil
		})
		return err
	}

	for range l.maxAttempts {
		err := l.client.Watch(ctx, txf, k)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return quota.Result{}, err
	}
	return quota.Result{}, ErrContention
}

// Get returns the stored entry, if any.
func (l *QuotaLedger) Get(ctx context.Context, key string) (quota.Entry, bool, error) {
	e, err := readEntry(ctx, l.client, l.key(key))
	if err != nil || e == nil {
		return quota.Entry{}, false, err
	}
	return *e, true, nil
}

// hashReader is satisfied by both *redis.Tx and redis.UniversalClient.
type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func readEntry(ctx context.Context, c hashReader, k string) (*quota.Entry, error) {
	fields, err := c.HGetAll(ctx, k).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	count, err := strconv.ParseInt(fields["count"], 10, 64)
	if err != nil {
		return nil, errors.Join(errors.New("redisstore: corrupt quota entry "+k), err)
	}
	e := &quota.Entry{
		Key:     fields["key"],
		OwnerID: fields["ownerId"],
		Date:    fields["date"],
		Count:   count,
	}
	if ms, err := strconv.ParseInt(fields["updatedAt"], 10, 64); err == nil {
		e.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return e, nil
}
