package billing

import "context"

// UserStore persists users and their billing record.
type UserStore interface {
	// Get returns ErrUserNotFound if no user has the id.
	Get(ctx context.Context, userID string) (*User, error)

	// FindByEmail returns ErrUserNotFound if no user has the address.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// UpdateBilling applies patch to the user's billing record as one direct
	// write. Returns ErrUserNotFound for unknown users and ErrStaleEvent when a
	// conditional patch lost to a newer stored event.
	UpdateBilling(ctx context.Context, userID string, patch Patch) error
}
