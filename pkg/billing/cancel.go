package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/vaultkit/pkg/logger"
)

// CancelResult is returned by Canceller.Cancel.
type CancelResult struct {
	SubscriptionID   string
	CurrentPeriodEnd time.Time
	// Mirrored is false when the provider accepted the cancellation but the
	// local record could not be updated. The next webhook fixes it up.
	Mirrored bool
}

// Canceller schedules a user's subscription to end at the current period close.
type Canceller struct {
	users  UserStore
	subs   SubscriptionCanceller
	now    func() time.Time
	logger *slog.Logger
}

// CancellerOption configures a Canceller.
type CancellerOption func(*Canceller)

func WithCancellerClock(now func() time.Time) CancellerOption {
	return func(c *Canceller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithCancellerLogger(l *slog.Logger) CancellerOption {
	return func(c *Canceller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCanceller panics on nil dependencies.
func NewCanceller(users UserStore, subs SubscriptionCanceller, opts ...CancellerOption) *Canceller {
	if users == nil {
		panic("billing: UserStore is required")
	}
	if subs == nil {
		panic("billing: SubscriptionCanceller is required")
	}

	c := &Canceller{
		users:  users,
		subs:   subs,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cancel asks the provider to cancel the user's subscription at period end
// and mirrors the confirmed state locally. The subscription keeps its status
// until the provider reports it ended.
func (c *Canceller) Cancel(ctx context.Context, userID string) (CancelResult, error) {
	user, err := c.users.Get(ctx, userID)
	if err != nil {
		return CancelResult{}, err
	}
	if !user.HasSubscription() {
		return CancelResult{}, ErrNoSubscription
	}

	scheduled, err := c.subs.CancelAtPeriodEnd(ctx, user.Billing.SubscriptionID)
	if err != nil {
		return CancelResult{}, errors.Join(ErrProvider, err)
	}
	if scheduled.SubscriptionID == "" {
		scheduled.SubscriptionID = user.Billing.SubscriptionID
	}

	res := CancelResult{
		SubscriptionID:   scheduled.SubscriptionID,
		CurrentPeriodEnd: scheduled.CurrentPeriodEnd,
	}

	cancelAtPeriodEnd := true
	patch := Patch{
		CancelAtPeriodEnd: &cancelAtPeriodEnd,
		UpdatedAt:         c.now(),
	}
	if !scheduled.CurrentPeriodEnd.IsZero() {
		end := scheduled.CurrentPeriodEnd.UTC()
		patch.CurrentPeriodEnd = &end
	}

	if err := c.users.UpdateBilling(ctx, userID, patch); err != nil {
		c.logger.ErrorContext(ctx, "subscription cancelled at provider but local mirror failed",
			logger.UserID(userID),
			logger.SubscriptionID(res.SubscriptionID),
			logger.Error(fmt.Errorf("mirror cancellation: %w", err)),
		)
		return res, nil
	}

	res.Mirrored = true
	return res, nil
}
