package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger implements Ledger in process memory.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]*Entry

	retention       time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// MemoryLedgerOption configures a MemoryLedger.
type MemoryLedgerOption func(*MemoryLedger)

// WithCleanupInterval sets how often expired entries are dropped.
// Set to 0 to disable automatic cleanup.
func WithCleanupInterval(interval time.Duration) MemoryLedgerOption {
	return func(l *MemoryLedger) {
		l.cleanupInterval = interval
	}
}

// NewMemoryLedger creates an in-memory ledger. Entries untouched for two days
// are dropped by the background cleanup.
func NewMemoryLedger(opts ...MemoryLedgerOption) *MemoryLedger {
	l := &MemoryLedger{
		entries:         make(map[string]*Entry),
		retention:       48 * time.Hour,
		cleanupInterval: 10 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cleanupInterval > 0 {
		go l.cleanup()
	}
	return l
}

func (l *MemoryLedger) Consume(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.entries[req.Key]

	res := Decide(current, req.Limit)
	if !res.OK {
		return res, nil
	}

	l.entries[req.Key] = &Entry{
		Key:       req.Key,
		OwnerID:   req.OwnerID,
		Date:      req.Date,
		Count:     res.Count,
		UpdatedAt: req.Now,
	}
	return res, nil
}

// Get returns a copy of the stored entry.
func (l *MemoryLedger) Get(key string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (l *MemoryLedger) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.removeExpired(time.Now())
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *MemoryLedger) removeExpired(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.entries {
		if now.Sub(e.UpdatedAt) > l.retention {
			delete(l.entries, k)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *MemoryLedger) Close() {
	l.closeOnce.Do(func() {
		close(l.stopCleanup)
	})
}
