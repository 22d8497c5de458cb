package tags

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. One mutex stands in for
// the document store's transaction isolation.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*Counter // userID/tagID
	records  map[string]*Record  // record id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*Counter),
		records:  make(map[string]*Record),
	}
}

func counterKey(userID, tagID string) string {
	return userID + "/" + tagID
}

// PutRecord inserts or replaces a record without touching counters.
func (s *MemoryStore) PutRecord(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.TagIDs = slices.Clone(rec.TagIDs)
	s.records[rec.ID] = &rec
}

// Record returns a copy of the stored record.
func (s *MemoryStore) Record(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	out := *rec
	out.TagIDs = slices.Clone(rec.TagIDs)
	return out, true
}

// SetCounter overwrites a counter.
func (s *MemoryStore) SetCounter(userID, tagID string, usage int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[counterKey(userID, tagID)] = &Counter{UserID: userID, TagID: tagID, UsageCount: usage}
}

// Counter returns a copy of the stored counter.
func (s *MemoryStore) Counter(userID, tagID string) (Counter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[counterKey(userID, tagID)]
	if !ok {
		return Counter{}, false
	}
	return *c, true
}

func (s *MemoryStore) AdjustUsage(ctx context.Context, userID string, deltas map[string]int64, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for tagID, delta := range deltas {
		k := counterKey(userID, tagID)
		c, ok := s.counters[k]
		if !ok {
			c = &Counter{UserID: userID, TagID: tagID}
			s.counters[k] = c
		}
		c.UsageCount += delta
		c.UpdatedAt = now
	}
	return nil
}

func (s *MemoryStore) RecordsWithTag(ctx context.Context, userID, tagID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, rec := range s.records {
		if rec.UserID == userID && slices.Contains(rec.TagIDs, tagID) {
			cp := *rec
			cp.TagIDs = slices.Clone(rec.TagIDs)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) RewriteTags(ctx context.Context, userID string, batch []Rewrite, now time.Time) error {
	if len(batch) > MergeBatchSize {
		return ErrBatchTooLarge
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rw := range batch {
		rec, ok := s.records[rw.RecordID]
		if !ok || rec.UserID != userID {
			continue
		}
		rec.TagIDs = slices.Clone(rw.TagIDs)
		rec.TagsMergedAt = now
	}
	return nil
}

func (s *MemoryStore) TransferUsage(ctx context.Context, userID, sourceTagID, targetTagID string, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var moved int64
	if src, ok := s.counters[counterKey(userID, sourceTagID)]; ok {
		moved = src.UsageCount
		delete(s.counters, counterKey(userID, sourceTagID))
	}

	k := counterKey(userID, targetTagID)
	dst, ok := s.counters[k]
	if !ok {
		dst = &Counter{UserID: userID, TagID: targetTagID}
		s.counters[k] = dst
	}
	dst.UsageCount += moved
	dst.UpdatedAt = now
	return moved, nil
}
