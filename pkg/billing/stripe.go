package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeSignatureHeader carries the Stripe webhook signature.
const StripeSignatureHeader = "Stripe-Signature"

// StripeConfig holds configuration for the Stripe provider.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	// APIURL overrides the Stripe API endpoint. Used against stripe-mock and in tests.
	APIURL string `env:"STRIPE_API_URL"`
}

// StripeProvider implements Provider for Stripe.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider creates a Stripe provider from cfg.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.SecretKey == "" {
		return nil, errors.Join(ErrMissingAPIKey, errors.New("stripe"))
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.Join(ErrMissingWebhookSecret, errors.New("stripe"))
	}

	var backends *stripe.Backends
	if cfg.APIURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(cfg.APIURL),
			MaxNetworkRetries: stripe.Int64(0),
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	return &StripeProvider{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) SignatureHeader() string { return StripeSignatureHeader }

// ParseEvent verifies the Stripe signature over the raw payload and decodes
// the event. API version mismatches are tolerated; payloads are decoded into
// local structs that only read stable fields.
func (p *StripeProvider) ParseEvent(_ context.Context, payload []byte, signature string) (Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrSignatureInvalid, err)
	}

	return decodeStripeEvent(event.ID, string(event.Type), event.Created, event.Data.Raw)
}

// CustomerEmail retrieves the customer's address.
func (p *StripeProvider) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	c, err := p.api.Customers.Get(customerID, params)
	if err != nil {
		return "", fmt.Errorf("get stripe customer %s: %w", customerID, err)
	}
	if c.Deleted {
		return "", ErrCustomerDeleted
	}
	return c.Email, nil
}

// CancelAtPeriodEnd sets cancel_at_period_end on the subscription.
func (p *StripeProvider) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (ScheduledCancellation, error) {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx

	sub, err := p.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return ScheduledCancellation{}, fmt.Errorf("update stripe subscription %s: %w", subscriptionID, err)
	}

	out := ScheduledCancellation{SubscriptionID: sub.ID}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0).UTC()
	}
	return out, nil
}

// stripeRef decodes an expandable field: either an id string or an object.
type stripeRef struct {
	ID    string
	Email string
}

func (r *stripeRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	var obj struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.ID, r.Email = obj.ID, obj.Email
	return nil
}

type stripeSubscription struct {
	ID                string    `json:"id"`
	Customer          stripeRef `json:"customer"`
	Status            string    `json:"status"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end"`
	// Older API versions report the period on the subscription, newer ones on items.
	CurrentPeriodEnd int64 `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID       string `json:"id"`
				Nickname string `json:"nickname"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (s stripeSubscription) periodEnd() time.Time {
	end := s.CurrentPeriodEnd
	if end == 0 && len(s.Items.Data) > 0 {
		end = s.Items.Data[0].CurrentPeriodEnd
	}
	if end == 0 {
		return time.Time{}
	}
	return time.Unix(end, 0).UTC()
}

type stripeInvoice struct {
	ID            string    `json:"id"`
	Customer      stripeRef `json:"customer"`
	CustomerEmail string    `json:"customer_email"`
	Subscription  stripeRef `json:"subscription"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription stripeRef `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func decodeStripeEvent(id, eventType string, created int64, raw json.RawMessage) (Event, error) {
	meta := EventMeta{ID: id, Type: eventType}
	if created > 0 {
		meta.CreatedAt = time.Unix(created, 0).UTC()
	}

	switch eventType {
	case "customer.subscription.created":
		sub, err := decodeStripeSubscription(raw)
		if err != nil {
			return nil, err
		}
		return SubscriptionCreated{EventMeta: meta, Subscription: sub}, nil

	case "customer.subscription.updated":
		sub, err := decodeStripeSubscription(raw)
		if err != nil {
			return nil, err
		}
		return SubscriptionUpdated{EventMeta: meta, Subscription: sub}, nil

	case "customer.subscription.deleted":
		sub, err := decodeStripeSubscription(raw)
		if err != nil {
			return nil, err
		}
		return SubscriptionDeleted{EventMeta: meta, Subscription: sub}, nil

	case "invoice.payment_failed":
		var inv stripeInvoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		email := inv.CustomerEmail
		if email == "" {
			email = inv.Customer.Email
		}
		subID := inv.Subscription.ID
		if subID == "" && inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
			subID = inv.Parent.SubscriptionDetails.Subscription.ID
		}
		return PaymentFailed{
			EventMeta:      meta,
			Customer:       Customer{ID: inv.Customer.ID, Email: email},
			SubscriptionID: subID,
		}, nil
	}

	return Unhandled{EventMeta: meta}, nil
}

func decodeStripeSubscription(raw json.RawMessage) (SubscriptionData, error) {
	var s stripeSubscription
	if err := json.Unmarshal(raw, &s); err != nil {
		return SubscriptionData{}, errors.Join(ErrMalformedEvent, err)
	}

	out := SubscriptionData{
		ID:                s.ID,
		Customer:          Customer{ID: s.Customer.ID, Email: s.Customer.Email},
		Status:            s.Status,
		CurrentPeriodEnd:  s.periodEnd(),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if len(s.Items.Data) > 0 {
		out.PriceID = s.Items.Data[0].Price.ID
		out.PriceNickname = s.Items.Data[0].Price.Nickname
	}
	return out, nil
}
