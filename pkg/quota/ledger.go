package quota

import "context"

// Ledger stores per-key usage counts. Consume must perform the
// read-decide-write cycle atomically so concurrent callers on the same key
// never exceed the limit.
type Ledger interface {
	Consume(ctx context.Context, req Request) (Result, error)
}
