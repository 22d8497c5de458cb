package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vaultkit/pkg/billing"
)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newReconciler(t *testing.T, store billing.UserStore, dir billing.CustomerDirectory) *billing.Reconciler {
	t.Helper()
	return billing.NewReconciler(store, dir,
		billing.WithAnnualPriceID("price_annual"),
		billing.WithReconcilerClock(func() time.Time { return fixedNow }),
	)
}

func updatedEvent(id string, created time.Time, sub billing.SubscriptionData) billing.SubscriptionUpdated {
	return billing.SubscriptionUpdated{
		EventMeta:    billing.EventMeta{ID: id, Type: "customer.subscription.updated", CreatedAt: created},
		Subscription: sub,
	}
}

func activeSubscription() billing.SubscriptionData {
	return billing.SubscriptionData{
		ID:               "sub_1",
		Customer:         billing.Customer{ID: "cus_1"},
		Status:           "active",
		PriceID:          "price_monthly",
		PriceNickname:    "monthly",
		CurrentPeriodEnd: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestReconciler_SubscriptionEvents(t *testing.T) {
	t.Parallel()

	t.Run("looks up e-mail and overwrites billing record", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore(billing.User{ID: "u1", Email: "a@example.com"})
		dir := &mockDirectory{}
		dir.On("CustomerEmail", mock.Anything, "cus_1").Return("a@example.com", nil).Once()

		created := fixedNow.Add(-time.Hour)
		outcome, err := newReconciler(t, store, dir).Apply(context.Background(), updatedEvent("evt_1", created, activeSubscription()))
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeApplied, outcome)

		u, err := store.Get(context.Background(), "u1")
		require.NoError(t, err)
		require.NotNil(t, u.Billing)
		assert.Equal(t, billing.StatusActive, u.Billing.Status)
		assert.Equal(t, "monthly", u.Billing.PlanID)
		assert.Equal(t, "price_monthly", u.Billing.PriceID)
		assert.Equal(t, "cus_1", u.Billing.CustomerID)
		assert.Equal(t, "sub_1", u.Billing.SubscriptionID)
		assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), u.Billing.CurrentPeriodEnd)
		assert.False(t, u.Billing.CancelAtPeriodEnd)
		assert.Equal(t, fixedNow, u.Billing.UpdatedAt)
		assert.Equal(t, created, u.Billing.LastEventAt)
		dir.AssertExpectations(t)
	})

	t.Run("uses e-mail carried by the payload", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore(billing.User{ID: "u1", Email: "a@example.com"})
		dir := &mockDirectory{}

		sub := activeSubscription()
		sub.Customer.Email = "A@example.com"
		outcome, err := newReconciler(t, store, dir).Apply(context.Background(), updatedEvent("evt_1", fixedNow, sub))
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeApplied, outcome)
		dir.AssertNotCalled(t, "CustomerEmail", mock.Anything, mock.Anything)
	})

	t.Run("annual price forces annual plan label", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore(billing.User{ID: "u1", Email: "a@example.com"})
		dir := &mockDirectory{}
		dir.On("CustomerEmail", mock.Anything, "cus_1").Return("a@example.com", nil)

		sub := activeSubscription()
		sub.PriceID = "price_annual"
		sub.PriceNickname = "Yearly (legacy)"
		_, err := newReconciler(t, store, dir).Apply(context.Background(), updatedEvent("evt_1", fixedNow, sub))
		require.NoError(t, err)

		u, _ := store.Get(context.Background(), "u1")
		assert.Equal(t, billing.AnnualPlanID, u.Billing.PlanID)
	})

	t.Run("missing nickname leaves plan untouched", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore(billing.User{
			ID: "u1", Email: "a@example.com",
			Billing: &billing.Record{PlanID: "starter"},
		})
		dir := &mockDirectory{}
		dir.On("CustomerEmail", mock.Anything, "cus_1").Return("a@example.com", nil)

		sub := activeSubscription()
		sub.PriceNickname = ""
		_, err := newReconciler(t, store, dir).Apply(context.Background(), updatedEvent("evt_1", fixedNow, sub))
		require.NoError(t, err)

		u, _ := store.Get(context.Background(), "u1")
		assert.Equal(t, "starter", u.Billing.PlanID)
	})

	t.Run("deleted subscription forces canceled state", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore(billing.User{ID: "u1", Email: "a@example.com"})
		dir := &mockDirectory{}
		dir.On("CustomerEmail", mock.Anything, "cus_1").Return("a@example.com", nil)

		sub := activeSubscription()
		sub.Status = "active"
		sub.CancelAtPeriodEnd = false
		ev := billing.SubscriptionDeleted{
			EventMeta:    billing.EventMeta{ID: "evt_2", Type: "customer.subscription.deleted", CreatedAt: fixedNow},
			Subscription: sub,
		}
		outcome, err := newReconciler(t, store, dir).Apply(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeApplied, outcome)

		u, _ := store.Get(context.Background(), "u1")
		assert.Equal(t, billing.StatusCanceled, u.Billing.Status)
		assert.True(t, u.Billing.CancelAtPeriodEnd)
	})

	t.Run("event without a billing period clears the stored one", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore(billing.User{ID: "u1", Email: "a@example.com"})
		dir := &mockDirectory{}
		dir.On("CustomerEmail", mock.Anything, "cus_1").Return("a@example.com", nil)
		r := newReconciler(t, store, dir)

		_, err := r.Apply(context.Background(), updatedEvent("evt_1", fixedNow.Add(-time.Hour), activeSubscription()))
		require.NoError(t, err)

		sub := activeSubscription()
		sub.CurrentPeriodEnd = time.Time{}
		outcome, err := r.Apply(context.Background(), billing.SubscriptionDeleted{
			EventMeta:    billing.EventMeta{ID: "evt_2", Type: "subscription.canceled", CreatedAt: fixedNow},
			Subscription: sub,
		})
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeApplied, outcome)

		u, _ := store.Get(context.Background(), "u1")
		assert.True(t, u.Billing.CurrentPeriodEnd.IsZero())
		assert.Equal(t, billing.StatusCanceled, u.Billing.Status)
	})

	t.Run("replaying an event is idempotent", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore(billing.User{ID: "u1", Email: "a@example.com"})
		dir := &mockDirectory{}
		dir.On("CustomerEmail", mock.Anything, "cus_1").Return("a@example.com", nil)
		r := newReconciler(t, store, dir)
		ev := updatedEvent("evt_1", fixedNow, activeSubscription())

		_, err := r.Apply(context.Background(), ev)
		require.NoError(t, err)
		first, _ := store.Get(context.Background(), "u1")

		outcome, err := r.Apply(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeApplied, outcome)
		second, _ := store.Get(context.Background(), "u1")

		assert.Equal(t, first.Billing, second.Billing)
	})

	t.Run("older event after newer one is skipped", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore(billing.User{ID: "u1", Email: "a@example.com"})
		dir := &mockDirectory{}
		dir.On("CustomerEmail", mock.Anything, "cus_1").Return("a@example.com", nil)
		r := newReconciler(t, store, dir)

		newer := activeSubscription()
		newer.Status = "past_due"
		_, err := r.Apply(context.Background(), updatedEvent("evt_2", fixedNow, newer))
		require.NoError(t, err)

		outcome, err := r.Apply(context.Background(), updatedEvent("evt_1", fixedNow.Add(-time.Minute), activeSubscription()))
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeStale, outcome)

		u, _ := store.Get(context.Background(), "u1")
		assert.Equal(t, billing.StatusPastDue, u.Billing.Status)
	})
}

func TestReconciler_PaymentFailed(t *testing.T) {
	t.Parallel()

	t.Run("changes only status", func(t *testing.T) {
		t.Parallel()
		existing := &billing.Record{
			Status:         billing.StatusActive,
			PlanID:         "monthly",
			PriceID:        "price_monthly",
			CustomerID:     "cus_1",
			SubscriptionID: "sub_1",
			LastEventAt:    fixedNow.Add(-time.Hour),
		}
		store := billing.NewMemoryStore(billing.User{ID: "u1", Email: "a@example.com", Billing: existing})
		dir := &mockDirectory{}

		ev := billing.PaymentFailed{
			EventMeta: billing.EventMeta{ID: "evt_3", Type: "invoice.payment_failed", CreatedAt: fixedNow},
			Customer:  billing.Customer{ID: "cus_1", Email: "a@example.com"},
		}
		outcome, err := newReconciler(t, store, dir).Apply(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeApplied, outcome)

		u, _ := store.Get(context.Background(), "u1")
		assert.Equal(t, billing.StatusPastDue, u.Billing.Status)
		assert.Equal(t, "monthly", u.Billing.PlanID)
		assert.Equal(t, "sub_1", u.Billing.SubscriptionID)
		assert.Equal(t, existing.LastEventAt, u.Billing.LastEventAt)
		assert.Equal(t, fixedNow, u.Billing.UpdatedAt)
	})
}

func TestReconciler_Skips(t *testing.T) {
	t.Parallel()

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore(billing.User{ID: "u1", Email: "a@example.com"})
		dir := &mockDirectory{}
		dir.On("CustomerEmail", mock.Anything, "cus_1").Return("nobody@example.com", nil)

		outcome, err := newReconciler(t, store, dir).Apply(context.Background(), updatedEvent("evt_1", fixedNow, activeSubscription()))
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeNoUser, outcome)

		u, _ := store.Get(context.Background(), "u1")
		assert.Nil(t, u.Billing)
	})

	t.Run("deleted customer", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore()
		dir := &mockDirectory{}
		dir.On("CustomerEmail", mock.Anything, "cus_1").Return("", billing.ErrCustomerDeleted)

		outcome, err := newReconciler(t, store, dir).Apply(context.Background(), updatedEvent("evt_1", fixedNow, activeSubscription()))
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeNoIdentity, outcome)
	})

	t.Run("unhandled event type", func(t *testing.T) {
		t.Parallel()
		dir := &mockDirectory{}
		outcome, err := newReconciler(t, billing.NewMemoryStore(), dir).Apply(context.Background(), billing.Unhandled{
			EventMeta: billing.EventMeta{ID: "evt_9", Type: "charge.succeeded"},
		})
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeIgnored, outcome)
		dir.AssertNotCalled(t, "CustomerEmail", mock.Anything, mock.Anything)
	})
}

func TestReconciler_LookupFailureIsRetryable(t *testing.T) {
	t.Parallel()
	dir := &mockDirectory{}
	dir.On("CustomerEmail", mock.Anything, "cus_1").Return("", errors.New("connection reset"))

	_, err := newReconciler(t, billing.NewMemoryStore(), dir).Apply(context.Background(), updatedEvent("evt_1", fixedNow, activeSubscription()))
	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrIdentityLookup)
}
