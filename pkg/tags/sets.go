package tags

import "slices"

// Diff returns the tags present only in after (added) and only in before
// (removed). Duplicates are ignored; both results are sorted.
func Diff(before, after []string) Change {
	b := toSet(before)
	a := toSet(after)

	var c Change
	for id := range a {
		if _, ok := b[id]; !ok {
			c.Added = append(c.Added, id)
		}
	}
	for id := range b {
		if _, ok := a[id]; !ok {
			c.Removed = append(c.Removed, id)
		}
	}
	slices.Sort(c.Added)
	slices.Sort(c.Removed)
	return c
}

// ReplaceTag substitutes target for source, drops duplicates keeping first
// occurrence order and truncates to MaxTagsPerRecord.
func ReplaceTag(ids []string, source, target string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == source {
			id = target
		}
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) > MaxTagsPerRecord {
		out = out[:MaxTagsPerRecord]
	}
	return out
}

func toSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}
