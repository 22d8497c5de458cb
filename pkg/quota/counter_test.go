package quota_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vaultkit/pkg/quota"
)

type failingLedger struct{}

func (failingLedger) Consume(context.Context, quota.Request) (quota.Result, error) {
	return quota.Result{}, errors.New("too much contention")
}

func newCounter(t *testing.T, ledger quota.Ledger, now time.Time) *quota.Counter {
	t.Helper()
	return quota.NewCounter(ledger,
		quota.WithLocation(time.UTC),
		quota.WithClock(func() time.Time { return now }),
	)
}

func TestCounter_Consume(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	t.Run("allows up to the limit then rejects", func(t *testing.T) {
		t.Parallel()
		ledger := quota.NewMemoryLedger(quota.WithCleanupInterval(0))
		c := newCounter(t, ledger, now)
		ctx := context.Background()

		for want := int64(1); want <= 3; want++ {
			res, err := c.Consume(ctx, "u1", "export", 3)
			require.NoError(t, err)
			assert.Equal(t, quota.Result{OK: true, Count: want}, res)
		}

		res, err := c.Consume(ctx, "u1", "export", 3)
		require.NoError(t, err)
		assert.Equal(t, quota.Result{OK: false, Count: 3}, res)

		entry, ok := ledger.Get("export_2025-03-14")
		require.True(t, ok)
		assert.Equal(t, int64(3), entry.Count)
		assert.Equal(t, "2025-03-14", entry.Date)
	})

	t.Run("non-positive limit uses the default", func(t *testing.T) {
		t.Parallel()
		c := newCounter(t, quota.NewMemoryLedger(quota.WithCleanupInterval(0)), now)

		var last quota.Result
		for range 4 {
			var err error
			last, err = c.Consume(context.Background(), "u1", "export", 0)
			require.NoError(t, err)
		}
		assert.Equal(t, quota.Result{OK: false, Count: quota.DefaultLimitPerDay}, last)
	})

	t.Run("owners share the limit of a feature key", func(t *testing.T) {
		t.Parallel()
		ledger := quota.NewMemoryLedger(quota.WithCleanupInterval(0))
		c := newCounter(t, ledger, now)
		ctx := context.Background()

		res, err := c.Consume(ctx, "alice", "export:device-42", 1)
		require.NoError(t, err)
		assert.Equal(t, quota.Result{OK: true, Count: 1}, res)

		res, err = c.Consume(ctx, "bob", "export:device-42", 1)
		require.NoError(t, err)
		assert.Equal(t, quota.Result{OK: false, Count: 1}, res)

		entry, ok := ledger.Get("export:device-42_2025-03-14")
		require.True(t, ok)
		assert.Equal(t, "alice", entry.OwnerID)
		assert.Equal(t, int64(1), entry.Count)
	})

	t.Run("feature keys are isolated", func(t *testing.T) {
		t.Parallel()
		c := newCounter(t, quota.NewMemoryLedger(quota.WithCleanupInterval(0)), now)
		ctx := context.Background()

		res, err := c.Consume(ctx, "u1", "export", 1)
		require.NoError(t, err)
		assert.True(t, res.OK)

		res, err = c.Consume(ctx, "u1", "share", 1)
		require.NoError(t, err)
		assert.True(t, res.OK)
	})

	t.Run("next day starts a fresh counter", func(t *testing.T) {
		t.Parallel()
		ledger := quota.NewMemoryLedger(quota.WithCleanupInterval(0))
		ctx := context.Background()

		res, err := newCounter(t, ledger, now).Consume(ctx, "u1", "export", 1)
		require.NoError(t, err)
		assert.True(t, res.OK)

		res, err = newCounter(t, ledger, now.Add(24*time.Hour)).Consume(ctx, "u1", "export", 1)
		require.NoError(t, err)
		assert.Equal(t, quota.Result{OK: true, Count: 1}, res)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		c := newCounter(t, quota.NewMemoryLedger(quota.WithCleanupInterval(0)), now)

		_, err := c.Consume(context.Background(), "", "export", 3)
		assert.ErrorIs(t, err, quota.ErrUnauthenticated)

		_, err = c.Consume(context.Background(), "u1", "", 3)
		assert.ErrorIs(t, err, quota.ErrInvalidKey)
	})

	t.Run("ledger failure", func(t *testing.T) {
		t.Parallel()
		_, err := newCounter(t, failingLedger{}, now).Consume(context.Background(), "u1", "export", 3)
		assert.ErrorIs(t, err, quota.ErrTransaction)
	})
}

func TestCounter_DayFollowsLocation(t *testing.T) {
	t.Parallel()

	// 23:30 UTC is already the next day at UTC+2.
	now := time.Date(2025, 3, 14, 23, 30, 0, 0, time.UTC)
	ledger := quota.NewMemoryLedger(quota.WithCleanupInterval(0))
	c := quota.NewCounter(ledger,
		quota.WithLocation(time.FixedZone("EET", 2*60*60)),
		quota.WithClock(func() time.Time { return now }),
	)

	_, err := c.Consume(context.Background(), "u1", "export", 3)
	require.NoError(t, err)

	_, ok := ledger.Get("export_2025-03-15")
	assert.True(t, ok)
}

func TestCounter_Concurrent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrency test in short mode")
	}
	t.Parallel()

	const (
		limit   = 5
		callers = 50
	)
	ledger := quota.NewMemoryLedger(quota.WithCleanupInterval(0))
	defer ledger.Close()
	c := quota.NewCounter(ledger, quota.WithLocation(time.UTC))

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)
	wg.Add(callers)
	for range callers {
		go func() {
			defer wg.Done()
			res, err := c.Consume(context.Background(), "u1", "export", limit)
			if err == nil && res.OK {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), allowed.Load())
	entry, ok := ledger.Get(quota.LedgerKey("export", time.Now().UTC()))
	require.True(t, ok)
	assert.Equal(t, allowed.Load(), entry.Count)
}

func TestDecide(t *testing.T) {
	t.Parallel()

	assert.Equal(t, quota.Result{OK: true, Count: 1}, quota.Decide(nil, 3))
	assert.Equal(t, quota.Result{OK: true, Count: 3}, quota.Decide(&quota.Entry{Count: 2}, 3))
	assert.Equal(t, quota.Result{OK: false, Count: 3}, quota.Decide(&quota.Entry{Count: 3}, 3))
	assert.Equal(t, quota.Result{OK: false, Count: 0}, quota.Decide(nil, 0))
}

func TestConfig_Location(t *testing.T) {
	t.Parallel()

	loc, err := quota.Config{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = quota.Config{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = quota.Config{Timezone: "Mars/Olympus"}.Location()
	assert.ErrorIs(t, err, quota.ErrInvalidTimezone)
}

func TestMemoryLedger_ConcurrentClose(t *testing.T) {
	t.Parallel()

	ledger := quota.NewMemoryLedger(quota.WithCleanupInterval(time.Millisecond))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotPanics(t, ledger.Close)
		}()
	}
	wg.Wait()
	assert.NotPanics(t, ledger.Close)
}
