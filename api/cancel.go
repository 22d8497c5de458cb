package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrymomot/vaultkit/handler"
	"github.com/dmitrymomot/vaultkit/pkg/billing"
	"github.com/dmitrymomot/vaultkit/pkg/identity"
	"github.com/dmitrymomot/vaultkit/pkg/metrics"
)

// Canceller schedules the caller's subscription to end at period close.
type Canceller interface {
	Cancel(ctx context.Context, userID string) (billing.CancelResult, error)
}

type cancelResponse struct {
	SubscriptionID string `json:"subscriptionId"`
}

// Cancel handles POST /billing/cancel for the bearer-authenticated caller.
func Cancel(canceller Canceller, verifier identity.Verifier, m *metrics.Metrics, eh handler.ErrorHandler) http.HandlerFunc {
	return handler.Wrap(func(r *http.Request) handler.Response {
		id, _ := identity.FromContext(r.Context())

		res, err := canceller.Cancel(r.Context(), id.UserID)
		switch {
		case errors.Is(err, billing.ErrUserNotFound):
			m.ObserveCancellation("user_not_found")
			return handler.Error(errors.Join(ErrUserNotFound, err))
		case errors.Is(err, billing.ErrNoSubscription):
			m.ObserveCancellation("no_subscription")
			return handler.Error(errors.Join(ErrNoSubscription, err))
		case err != nil:
			m.ObserveCancellation("error")
			return handler.Error(err)
		}

		m.ObserveCancellation("scheduled")
		return handler.JSON(cancelResponse{SubscriptionID: res.SubscriptionID})
	},
		handler.WithMethods(http.MethodPost),
		handler.WithErrorHandler(eh),
		handler.WithDecorators(
			requireConfigured(canceller != nil && verifier != nil),
			authenticate(verifier),
		),
	)
}

// requireConfigured answers 500 without further work when a dependency is missing.
func requireConfigured(ok bool) handler.Decorator {
	return func(next handler.HandlerFunc) handler.HandlerFunc {
		return func(r *http.Request) handler.Response {
			if !ok {
				return handler.Error(handler.ErrNotConfigured)
			}
			return next(r)
		}
	}
}

// authenticate verifies the bearer credential and stores the identity in the
// request context.
func authenticate(verifier identity.Verifier) handler.Decorator {
	return func(next handler.HandlerFunc) handler.HandlerFunc {
		return func(r *http.Request) handler.Response {
			id, err := identity.FromRequest(r, verifier)
			if err != nil {
				return handler.Error(errors.Join(handler.ErrUnauthorized, err))
			}
			return next(r.WithContext(identity.WithContext(r.Context(), id)))
		}
	}
}
