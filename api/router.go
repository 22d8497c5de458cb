package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/vaultkit/handler"
	"github.com/dmitrymomot/vaultkit/pkg/callable"
	"github.com/dmitrymomot/vaultkit/pkg/httpserver"
	"github.com/dmitrymomot/vaultkit/pkg/identity"
	"github.com/dmitrymomot/vaultkit/pkg/metrics"
	"github.com/dmitrymomot/vaultkit/pkg/requestid"
)

// Services are the dependencies of the HTTP surface. Billing, Events and
// Canceller stay nil when no payment provider is configured; their endpoints
// then answer 500.
type Services struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Verifier identity.Verifier

	Billing   WebhookSource
	Events    EventApplier
	Canceller Canceller

	Quota QuotaConsumer
	Tags  TagService

	TriggerSecret   string
	ReadinessChecks map[string]httpserver.CheckFunc
}

// NewRouter mounts every endpoint of the service.
func NewRouter(s Services) http.Handler {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Metrics == nil {
		s.Metrics = metrics.New()
	}
	eh := handler.NewErrorHandler(s.Logger)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.Metrics.Middleware)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(s.Logger, s.ReadinessChecks))
	r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())

	// Method checks live in the handlers so wrong methods get the JSON 405.
	r.Handle("/webhooks/billing", Webhook(s.Billing, s.Events, s.Metrics, eh))
	r.Handle("/billing/cancel", Cancel(s.Canceller, s.Verifier, s.Metrics, eh))
	r.Handle("/internal/triggers/passwords", PasswordTrigger(s.Tags, s.TriggerSecret, s.Metrics, eh))

	r.Route("/rpc", func(r chi.Router) {
		r.Handle("/quota.consume", callable.Handle(ConsumeQuota(s.Quota, s.Metrics),
			callable.WithVerifier(s.Verifier),
			callable.WithErrorMapper(quotaErrors),
			callable.WithLogger(s.Logger),
			callable.WithName("quota.consume"),
		))
		r.Handle("/tags.merge", callable.Handle(MergeTags(s.Tags, s.Metrics),
			callable.WithVerifier(s.Verifier),
			callable.WithErrorMapper(tagErrors),
			callable.WithLogger(s.Logger),
			callable.WithName("tags.merge"),
		))
	})

	return r
}
