package tags

import "time"

const (
	// MaxTagsPerRecord caps the tag set of one password record.
	MaxTagsPerRecord = 20
	// MergeBatchSize bounds the records rewritten per committed batch.
	MergeBatchSize = 300
)

// Counter is the usage aggregate of one tag of one user.
// UsageCount may be transiently negative under concurrent corrections.
type Counter struct {
	UserID     string
	TagID      string
	UsageCount int64
	UpdatedAt  time.Time
}

// Record is the tag membership of one password record.
type Record struct {
	ID     string
	UserID string
	TagIDs []string
	// TagsMergedAt is set by merge rewrites so change feeds can tell them
	// apart from user edits.
	TagsMergedAt time.Time
}

// Rewrite replaces the tag set of one record.
type Rewrite struct {
	RecordID string
	TagIDs   []string
}

// Change is the counter adjustment derived from one tag-set change.
type Change struct {
	Added   []string
	Removed []string
}

// Empty reports whether the change adjusts no counter.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Deltas returns the per-tag counter adjustments.
func (c Change) Deltas() map[string]int64 {
	d := make(map[string]int64, len(c.Added)+len(c.Removed))
	for _, id := range c.Added {
		d[id]++
	}
	for _, id := range c.Removed {
		d[id]--
	}
	return d
}

// MergeResult summarises a completed merge.
type MergeResult struct {
	RecordsRewritten int
	Batches          int
	// Transferred is the source usage count added to the target.
	Transferred int64
}
