// Package tags maintains per-tag usage counters derived from the tag sets of
// password records, and merges one tag into another.
//
// Counters are updated incrementally from record changes: ApplyChange diffs
// the before and after tag sets and applies +1/-1 adjustments in one batch.
// Merge rewrites every record referencing the source tag in batches of at most
// MergeBatchSize, then transfers the source counter onto the target and
// deletes it in a single transaction.
package tags
