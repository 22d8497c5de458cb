package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vaultkit/pkg/metrics"
)

func TestMetrics_Observers(t *testing.T) {
	t.Parallel()
	m := metrics.New()

	m.ObserveWebhook("stripe", "subscription_updated", "applied")
	m.ObserveWebhook("stripe", "subscription_updated", "applied")
	m.ObserveQuota("rejected")
	m.ObserveTagChange("feed", 1, 2)
	m.ObserveMerge("ok", 4)
	m.ObserveCancellation("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhookEventsTotal.WithLabelValues("stripe", "subscription_updated", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuotaDecisionsTotal.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TagAdjustmentsTotal.WithLabelValues("increment", "feed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TagAdjustmentsTotal.WithLabelValues("decrement", "feed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.TagRecordsRewritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CancellationsTotal.WithLabelValues("ok")))
}

func TestMetrics_Middleware(t *testing.T) {
	t.Parallel()
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/items/{id}", "418")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "vaultkit_http_requests_total"))
}
