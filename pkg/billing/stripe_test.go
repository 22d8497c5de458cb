package billing_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/vaultkit/pkg/billing"
)

const stripeSecret = "whsec_test_secret"

func newStripe(t *testing.T, apiURL string) *billing.StripeProvider {
	t.Helper()
	p, err := billing.NewStripeProvider(billing.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: stripeSecret,
		APIURL:        apiURL,
	})
	require.NoError(t, err)
	return p
}

func signStripe(t *testing.T, payload []byte) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  stripeSecret,
	})
	return signed.Header
}

func stripeEvent(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "2020-08-27",
		"created": 1748779200,
		"type": %q,
		"data": {"object": %s}
	}`, eventType, object))
}

func TestStripeProvider_ParseEvent(t *testing.T) {
	t.Parallel()
	p := newStripe(t, "")

	t.Run("subscription update with item period", func(t *testing.T) {
		t.Parallel()
		payload := stripeEvent("customer.subscription.updated", `{
			"id": "sub_1",
			"object": "subscription",
			"customer": "cus_1",
			"status": "active",
			"cancel_at_period_end": true,
			"items": {"object": "list", "data": [{
				"id": "si_1",
				"current_period_end": 1751328000,
				"price": {"id": "price_monthly", "nickname": "monthly"}
			}]}
		}`)

		ev, err := p.ParseEvent(context.Background(), payload, signStripe(t, payload))
		require.NoError(t, err)

		upd, ok := ev.(billing.SubscriptionUpdated)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, "evt_1", upd.ID)
		assert.Equal(t, time.Unix(1748779200, 0).UTC(), upd.CreatedAt)
		assert.Equal(t, "sub_1", upd.Subscription.ID)
		assert.Equal(t, "cus_1", upd.Subscription.Customer.ID)
		assert.Empty(t, upd.Subscription.Customer.Email)
		assert.Equal(t, "active", upd.Subscription.Status)
		assert.Equal(t, "price_monthly", upd.Subscription.PriceID)
		assert.Equal(t, "monthly", upd.Subscription.PriceNickname)
		assert.True(t, upd.Subscription.CancelAtPeriodEnd)
		assert.Equal(t, time.Unix(1751328000, 0).UTC(), upd.Subscription.CurrentPeriodEnd)
	})

	t.Run("deleted subscription with expanded customer", func(t *testing.T) {
		t.Parallel()
		payload := stripeEvent("customer.subscription.deleted", `{
			"id": "sub_1",
			"customer": {"id": "cus_1", "email": "a@example.com"},
			"status": "canceled",
			"current_period_end": 1751328000,
			"items": {"data": []}
		}`)

		ev, err := p.ParseEvent(context.Background(), payload, signStripe(t, payload))
		require.NoError(t, err)

		del, ok := ev.(billing.SubscriptionDeleted)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, "a@example.com", del.Subscription.Customer.Email)
		assert.Equal(t, time.Unix(1751328000, 0).UTC(), del.Subscription.CurrentPeriodEnd)
	})

	t.Run("payment failed carries invoice e-mail", func(t *testing.T) {
		t.Parallel()
		payload := stripeEvent("invoice.payment_failed", `{
			"id": "in_1",
			"customer": "cus_1",
			"customer_email": "a@example.com",
			"subscription": "sub_1"
		}`)

		ev, err := p.ParseEvent(context.Background(), payload, signStripe(t, payload))
		require.NoError(t, err)

		pf, ok := ev.(billing.PaymentFailed)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, "cus_1", pf.Customer.ID)
		assert.Equal(t, "a@example.com", pf.Customer.Email)
		assert.Equal(t, "sub_1", pf.SubscriptionID)
	})

	t.Run("other events are unhandled", func(t *testing.T) {
		t.Parallel()
		payload := stripeEvent("charge.succeeded", `{"id": "ch_1"}`)

		ev, err := p.ParseEvent(context.Background(), payload, signStripe(t, payload))
		require.NoError(t, err)
		assert.IsType(t, billing.Unhandled{}, ev)
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		payload := stripeEvent("customer.subscription.updated", `{"id": "sub_1"}`)
		header := signStripe(t, payload)

		_, err := p.ParseEvent(context.Background(), append(payload, ' '), header)
		assert.ErrorIs(t, err, billing.ErrSignatureInvalid)

		_, err = p.ParseEvent(context.Background(), payload, "")
		assert.ErrorIs(t, err, billing.ErrSignatureInvalid)
	})
}

func TestStripeProvider_API(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/customers/cus_live", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "cus_live", "object": "customer", "email": "a@example.com"}`)
	})
	mux.HandleFunc("GET /v1/customers/cus_gone", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "cus_gone", "object": "customer", "deleted": true}`)
	})
	mux.HandleFunc("POST /v1/subscriptions/sub_1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "true", r.PostForm.Get("cancel_at_period_end"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "sub_1",
			"object": "subscription",
			"cancel_at_period_end": true,
			"items": {"object": "list", "data": [{"id": "si_1", "object": "subscription_item", "current_period_end": 1751328000}]}
		}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := newStripe(t, srv.URL)

	t.Run("customer e-mail", func(t *testing.T) {
		email, err := p.CustomerEmail(context.Background(), "cus_live")
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", email)
	})

	t.Run("deleted customer", func(t *testing.T) {
		_, err := p.CustomerEmail(context.Background(), "cus_gone")
		assert.ErrorIs(t, err, billing.ErrCustomerDeleted)
	})

	t.Run("cancel at period end", func(t *testing.T) {
		res, err := p.CancelAtPeriodEnd(context.Background(), "sub_1")
		require.NoError(t, err)
		assert.Equal(t, "sub_1", res.SubscriptionID)
		assert.Equal(t, time.Unix(1751328000, 0).UTC(), res.CurrentPeriodEnd)
	})
}

func TestNewStripeProvider_RequiresSecrets(t *testing.T) {
	t.Parallel()

	_, err := billing.NewStripeProvider(billing.StripeConfig{WebhookSecret: "whsec"})
	assert.ErrorIs(t, err, billing.ErrMissingAPIKey)

	_, err = billing.NewStripeProvider(billing.StripeConfig{SecretKey: "sk"})
	assert.ErrorIs(t, err, billing.ErrMissingWebhookSecret)
}
