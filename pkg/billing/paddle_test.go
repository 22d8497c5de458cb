package billing_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vaultkit/pkg/billing"
)

const paddleSecret = "pdl_ntfset_test_secret"

func newPaddle(t *testing.T, baseURL string) *billing.PaddleProvider {
	t.Helper()
	p, err := billing.NewPaddleProvider(billing.PaddleConfig{
		APIKey:        "pdl_test_key",
		WebhookSecret: paddleSecret,
		Environment:   "sandbox",
		BaseURL:       baseURL,
	})
	require.NoError(t, err)
	return p
}

func signPaddle(payload []byte) string {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(paddleSecret))
	mac.Write([]byte(ts + ":"))
	mac.Write(payload)
	return "ts=" + ts + ";h1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestPaddleProvider_ParseEvent(t *testing.T) {
	t.Parallel()
	p := newPaddle(t, "")

	t.Run("subscription canceled", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{
			"event_id": "evt_01",
			"event_type": "subscription.canceled",
			"occurred_at": "2025-06-01T12:00:00.000000Z",
			"data": {
				"id": "sub_01",
				"status": "canceled",
				"customer_id": "ctm_01",
				"items": [{"price": {"id": "pri_annual", "name": "Annual"}}],
				"current_billing_period": {"starts_at": "2025-06-01T00:00:00Z", "ends_at": "2026-06-01T00:00:00Z"}
			}
		}`)

		ev, err := p.ParseEvent(context.Background(), payload, signPaddle(payload))
		require.NoError(t, err)

		del, ok := ev.(billing.SubscriptionDeleted)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, "evt_01", del.ID)
		assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), del.CreatedAt)
		assert.Equal(t, "sub_01", del.Subscription.ID)
		assert.Equal(t, "ctm_01", del.Subscription.Customer.ID)
		assert.Equal(t, "pri_annual", del.Subscription.PriceID)
		assert.Equal(t, "Annual", del.Subscription.PriceNickname)
		assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), del.Subscription.CurrentPeriodEnd)
	})

	t.Run("scheduled cancel sets cancel at period end", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{
			"event_id": "evt_02",
			"event_type": "subscription.updated",
			"occurred_at": "2025-06-01T12:00:00Z",
			"data": {
				"id": "sub_01",
				"status": "active",
				"customer_id": "ctm_01",
				"scheduled_change": {"action": "cancel", "effective_at": "2026-06-01T00:00:00Z"}
			}
		}`)

		ev, err := p.ParseEvent(context.Background(), payload, signPaddle(payload))
		require.NoError(t, err)

		upd, ok := ev.(billing.SubscriptionUpdated)
		require.True(t, ok, "got %T", ev)
		assert.True(t, upd.Subscription.CancelAtPeriodEnd)
	})

	t.Run("transaction payment failed", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{
			"event_id": "evt_03",
			"event_type": "transaction.payment_failed",
			"occurred_at": "2025-06-01T12:00:00Z",
			"data": {"id": "txn_01", "customer_id": "ctm_01", "subscription_id": "sub_01"}
		}`)

		ev, err := p.ParseEvent(context.Background(), payload, signPaddle(payload))
		require.NoError(t, err)

		pf, ok := ev.(billing.PaymentFailed)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, "ctm_01", pf.Customer.ID)
		assert.Equal(t, "sub_01", pf.SubscriptionID)
	})

	t.Run("tampered payload", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{"event_id":"evt_04","event_type":"subscription.updated","data":{}}`)
		sig := signPaddle(payload)

		_, err := p.ParseEvent(context.Background(), []byte(`{"event_id":"evt_05"}`), sig)
		assert.ErrorIs(t, err, billing.ErrSignatureInvalid)
	})
}

func TestPaddleProvider_CustomerEmail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/customers/ctm_live":
			fmt.Fprint(w, `{"data": {"id": "ctm_live", "status": "active", "email": "a@example.com"}, "meta": {"request_id": "req_1"}}`)
		case "/customers/ctm_archived":
			fmt.Fprint(w, `{"data": {"id": "ctm_archived", "status": "archived", "email": "old@example.com"}, "meta": {"request_id": "req_2"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	p := newPaddle(t, srv.URL)

	email, err := p.CustomerEmail(context.Background(), "ctm_live")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", email)

	_, err = p.CustomerEmail(context.Background(), "ctm_archived")
	assert.ErrorIs(t, err, billing.ErrCustomerDeleted)
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	p, err := billing.NewProvider(
		billing.Config{Provider: "paddle"},
		billing.StripeConfig{},
		billing.PaddleConfig{APIKey: "k", WebhookSecret: "s"},
	)
	require.NoError(t, err)
	assert.Equal(t, "paddle", p.Name())
	assert.Equal(t, billing.PaddleSignatureHeader, p.SignatureHeader())

	_, err = billing.NewProvider(billing.Config{Provider: "braintree"}, billing.StripeConfig{}, billing.PaddleConfig{})
	assert.ErrorIs(t, err, billing.ErrUnknownProvider)

	_, err = billing.NewPaddleProvider(billing.PaddleConfig{APIKey: "k", WebhookSecret: "s", Environment: "staging"})
	assert.ErrorIs(t, err, billing.ErrInvalidProviderEnvironment)
}
