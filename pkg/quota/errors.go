package quota

import "errors"

var (
	ErrUnauthenticated = errors.New("quota: caller is not authenticated")
	ErrInvalidKey      = errors.New("quota: feature key is required")
	ErrInvalidTimezone = errors.New("quota: invalid timezone")
	// ErrTransaction wraps ledger failures; the caller's attempt was not counted.
	ErrTransaction = errors.New("quota: ledger transaction failed")
)
