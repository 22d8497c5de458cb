package quota

import "time"

// DefaultLimitPerDay applies when the caller does not specify a limit.
const DefaultLimitPerDay int64 = 3

// DateLayout formats the day component of ledger keys.
const DateLayout = "2006-01-02"

// Entry is one stored ledger record.
type Entry struct {
	Key       string
	OwnerID   string
	Date      string
	Count     int64
	UpdatedAt time.Time
}

// Request describes one consumption attempt against a ledger entry.
type Request struct {
	Key     string
	OwnerID string
	Date    string
	Limit   int64
	Now     time.Time
}

// Result reports a consumption decision. Count is the stored count after the
// attempt: incremented when OK, unchanged when rejected.
type Result struct {
	OK    bool
	Count int64
}

// Decide applies the quota rule to the stored entry (nil when absent) and
// returns the decision. Ledgers persist Count only when OK is true.
func Decide(current *Entry, limit int64) Result {
	if current == nil {
		if limit < 1 {
			return Result{OK: false, Count: 0}
		}
		return Result{OK: true, Count: 1}
	}
	if current.Count+1 > limit {
		return Result{OK: false, Count: current.Count}
	}
	return Result{OK: true, Count: current.Count + 1}
}

// LedgerKey derives the per-day ledger key for a feature.
func LedgerKey(featureKey string, day time.Time) string {
	return featureKey + "_" + day.Format(DateLayout)
}
