package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/vaultkit/handler"
	"github.com/dmitrymomot/vaultkit/pkg/metrics"
)

// TriggerSecretHeader carries the shared secret of document triggers.
const TriggerSecretHeader = "X-Trigger-Secret"

// PasswordChange is one password record write delivered by a document trigger.
// A null before means the record was created, a null after that it was deleted.
type PasswordChange struct {
	UserID string   `json:"userId"`
	Before []string `json:"before"`
	After  []string `json:"after"`
}

type changeResponse struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// PasswordTrigger applies tag-set changes pushed over HTTP. It serves
// deployments whose document store delivers write events by webhook instead
// of a change stream.
func PasswordTrigger(svc TagService, secret string, m *metrics.Metrics, eh handler.ErrorHandler) http.HandlerFunc {
	return handler.Wrap(func(r *http.Request) handler.Response {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get(TriggerSecretHeader)), []byte(secret)) != 1 {
			return handler.Error(ErrTriggerUnauthorized)
		}

		var change PasswordChange
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxWebhookBytes)).Decode(&change); err != nil {
			return handler.Error(errors.Join(ErrInvalidTrigger, err))
		}
		if change.UserID == "" {
			return handler.Error(ErrInvalidTrigger)
		}

		c, err := svc.ApplyChange(r.Context(), change.UserID, change.Before, change.After)
		if err != nil {
			return handler.Error(err)
		}
		m.ObserveTagChange("trigger", len(c.Added), len(c.Removed))

		return handler.JSON(changeResponse{Added: c.Added, Removed: c.Removed})
	},
		handler.WithMethods(http.MethodPost),
		handler.WithErrorHandler(eh),
		handler.WithDecorators(requireConfigured(svc != nil && secret != "")),
	)
}
