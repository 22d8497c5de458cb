package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/vaultkit/api"
	"github.com/dmitrymomot/vaultkit/pkg/httpserver"
	"github.com/dmitrymomot/vaultkit/pkg/logger"
	"github.com/dmitrymomot/vaultkit/pkg/requestid"
)

func TestNewRouter(t *testing.T) {
	t.Parallel()

	var storeErr error
	h := api.NewRouter(api.Services{
		Logger: logger.Discard(),
		ReadinessChecks: map[string]httpserver.CheckFunc{
			"store": func(context.Context) error { return storeErr },
		},
	})

	t.Run("liveness", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/health/live", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get(requestid.Header))
	})

	t.Run("readiness", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		do(h, http.MethodGet, "/health/live", "", nil)
		rec := do(h, http.MethodGet, "/metrics", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `vaultkit_http_requests_total{method="GET",route="/health/live",status="200"}`)
	})

	t.Run("billing endpoints without a provider", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/webhooks/billing", `{}`, map[string]string{"Stripe-Signature": "t=1"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		rec = do(h, http.MethodPost, "/billing/cancel", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("wrong method on webhook", func(t *testing.T) {
		rec := do(h, http.MethodPut, "/webhooks/billing", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("request id is echoed", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/health/live", "", map[string]string{requestid.Header: "req-123"})
		assert.Equal(t, "req-123", rec.Header().Get(requestid.Header))
	})
}

func TestNewRouter_NotReady(t *testing.T) {
	t.Parallel()

	h := api.NewRouter(api.Services{
		Logger: logger.Discard(),
		ReadinessChecks: map[string]httpserver.CheckFunc{
			"mongo": func(context.Context) error { return errors.New("no primary") },
		},
	})

	rec := do(h, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
