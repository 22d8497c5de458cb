package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/vaultkit/pkg/logger"
)

// Outcome describes what Apply did with an event.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeIgnored    Outcome = "ignored"     // event type not handled
	OutcomeNoIdentity Outcome = "no_identity" // customer deleted or has no e-mail
	OutcomeNoUser     Outcome = "no_user"     // no user with the customer's e-mail
	OutcomeStale      Outcome = "stale"       // a newer event was already applied
)

// Reconciler mirrors verified billing events onto the matching user's record.
type Reconciler struct {
	users         UserStore
	customers     CustomerDirectory
	annualPriceID string
	now           func() time.Time
	logger        *slog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithAnnualPriceID labels subscriptions on this price with AnnualPlanID
// regardless of the price nickname.
func WithAnnualPriceID(priceID string) ReconcilerOption {
	return func(r *Reconciler) {
		r.annualPriceID = priceID
	}
}

// WithReconcilerClock overrides the source of UpdatedAt timestamps.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithReconcilerLogger sets the logger used for skipped events.
func WithReconcilerLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReconciler panics on nil dependencies.
func NewReconciler(users UserStore, customers CustomerDirectory, opts ...ReconcilerOption) *Reconciler {
	if users == nil {
		panic("billing: UserStore is required")
	}
	if customers == nil {
		panic("billing: CustomerDirectory is required")
	}

	r := &Reconciler{
		users:     users,
		customers: customers,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply updates the billing record of the user the event belongs to.
//
// Events that cannot be matched to a user are skipped without error so the
// provider does not redeliver them. Only transient failures (customer lookup,
// storage) are returned; callers answer those with a retryable status.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (Outcome, error) {
	switch e := ev.(type) {
	case SubscriptionCreated:
		return r.applySubscription(ctx, e.EventMeta, e.Subscription, false)
	case SubscriptionUpdated:
		return r.applySubscription(ctx, e.EventMeta, e.Subscription, false)
	case SubscriptionDeleted:
		return r.applySubscription(ctx, e.EventMeta, e.Subscription, true)
	case PaymentFailed:
		return r.applyPaymentFailed(ctx, e)
	default:
		return OutcomeIgnored, nil
	}
}

func (r *Reconciler) applySubscription(ctx context.Context, meta EventMeta, sub SubscriptionData, ended bool) (Outcome, error) {
	user, outcome, err := r.resolveUser(ctx, meta, sub.Customer)
	if user == nil {
		return outcome, err
	}

	status := Status(sub.Status)
	cancelAtPeriodEnd := sub.CancelAtPeriodEnd
	// A payload without a period (Paddle cancellations) clears the stored one.
	periodEnd := sub.CurrentPeriodEnd.UTC()
	if ended {
		status = StatusCanceled
		cancelAtPeriodEnd = true
	}

	patch := Patch{
		Status:            &status,
		PriceID:           &sub.PriceID,
		CustomerID:        &sub.Customer.ID,
		SubscriptionID:    &sub.ID,
		CurrentPeriodEnd:  &periodEnd,
		CancelAtPeriodEnd: &cancelAtPeriodEnd,
		UpdatedAt:         r.now(),
		NotOlderThan:      meta.CreatedAt,
		RecordEventAt:     !meta.CreatedAt.IsZero(),
	}
	if plan := r.planID(sub); plan != "" {
		patch.PlanID = &plan
	}

	return r.write(ctx, meta, user, patch)
}

func (r *Reconciler) applyPaymentFailed(ctx context.Context, e PaymentFailed) (Outcome, error) {
	user, outcome, err := r.resolveUser(ctx, e.EventMeta, e.Customer)
	if user == nil {
		return outcome, err
	}

	status := StatusPastDue
	return r.write(ctx, e.EventMeta, user, Patch{
		Status:       &status,
		UpdatedAt:    r.now(),
		NotOlderThan: e.CreatedAt,
	})
}

func (r *Reconciler) write(ctx context.Context, meta EventMeta, user *User, patch Patch) (Outcome, error) {
	err := r.users.UpdateBilling(ctx, user.ID, patch)
	switch {
	case err == nil:
		return OutcomeApplied, nil
	case errors.Is(err, ErrStaleEvent):
		r.logger.InfoContext(ctx, "billing event older than stored state",
			logger.EventID(meta.ID),
			logger.EventType(meta.Type),
			logger.UserID(user.ID),
		)
		return OutcomeStale, nil
	case errors.Is(err, ErrUserNotFound):
		// Deleted between lookup and write.
		return OutcomeNoUser, nil
	default:
		return "", fmt.Errorf("update billing for user %s: %w", user.ID, err)
	}
}

// resolveUser returns a nil user together with the final outcome when the
// event cannot be attributed.
func (r *Reconciler) resolveUser(ctx context.Context, meta EventMeta, customer Customer) (*User, Outcome, error) {
	email := customer.Email
	if email == "" && customer.ID != "" {
		var err error
		email, err = r.customers.CustomerEmail(ctx, customer.ID)
		if errors.Is(err, ErrCustomerDeleted) {
			r.logger.InfoContext(ctx, "billing event for deleted customer",
				logger.EventID(meta.ID),
				logger.EventType(meta.Type),
				slog.String("customer_id", customer.ID),
			)
			return nil, OutcomeNoIdentity, nil
		}
		if err != nil {
			return nil, "", errors.Join(ErrIdentityLookup, err)
		}
	}
	if email == "" {
		r.logger.WarnContext(ctx, "billing event without customer e-mail",
			logger.EventID(meta.ID),
			logger.EventType(meta.Type),
			slog.String("customer_id", customer.ID),
		)
		return nil, OutcomeNoIdentity, nil
	}

	user, err := r.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		r.logger.WarnContext(ctx, "no user for billing customer",
			logger.EventID(meta.ID),
			logger.EventType(meta.Type),
			slog.String("customer_id", customer.ID),
		)
		return nil, OutcomeNoUser, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("find user by email: %w", err)
	}
	return user, "", nil
}

func (r *Reconciler) planID(sub SubscriptionData) string {
	if r.annualPriceID != "" && sub.PriceID == r.annualPriceID {
		return AnnualPlanID
	}
	return sub.PriceNickname
}
