package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrymomot/vaultkit/handler"
	"github.com/dmitrymomot/vaultkit/pkg/billing"
	"github.com/dmitrymomot/vaultkit/pkg/metrics"
)

// MaxWebhookBytes bounds the size of a webhook delivery.
const MaxWebhookBytes = 1 << 20

// WebhookSource verifies deliveries of one payment provider.
type WebhookSource interface {
	billing.EventParser
	Name() string
}

// EventApplier mirrors a verified event onto the user store.
type EventApplier interface {
	Apply(ctx context.Context, ev billing.Event) (billing.Outcome, error)
}

type webhookAck struct {
	Received bool `json:"received"`
}

// Webhook receives payment provider deliveries. The signature is checked
// against the exact request bytes before anything else happens; failures
// other than verification answer 500 so the provider redelivers.
func Webhook(src WebhookSource, events EventApplier, m *metrics.Metrics, eh handler.ErrorHandler) http.HandlerFunc {
	return handler.Wrap(func(r *http.Request) handler.Response {
		if src == nil || events == nil {
			return handler.Error(handler.ErrNotConfigured)
		}

		signature := r.Header.Get(src.SignatureHeader())
		if signature == "" {
			m.ObserveWebhook(src.Name(), "unknown", "signature_missing")
			return handler.Error(ErrSignatureMissing)
		}

		payload, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, MaxWebhookBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return handler.Error(errors.Join(handler.ErrRequestEntityTooLarge, err))
			}
			return handler.Error(errors.Join(handler.ErrBadRequest, err))
		}

		ev, err := src.ParseEvent(r.Context(), payload, signature)
		switch {
		case errors.Is(err, billing.ErrSignatureInvalid):
			m.ObserveWebhook(src.Name(), "unknown", "signature_invalid")
			return handler.Error(errors.Join(ErrSignatureInvalid, err))
		case errors.Is(err, billing.ErrMalformedEvent):
			m.ObserveWebhook(src.Name(), "unknown", "malformed")
			return handler.Error(errors.Join(ErrMalformedEvent, err))
		case err != nil:
			return handler.Error(err)
		}

		outcome, err := events.Apply(r.Context(), ev)
		if err != nil {
			m.ObserveWebhook(src.Name(), billing.EventKind(ev), "error")
			return handler.Error(err)
		}
		m.ObserveWebhook(src.Name(), billing.EventKind(ev), string(outcome))

		return handler.JSON(webhookAck{Received: true})
	},
		handler.WithMethods(http.MethodPost),
		handler.WithErrorHandler(eh),
	)
}
