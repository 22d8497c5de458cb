package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleSignatureHeader carries the Paddle webhook signature ("ts=..;h1=..").
const PaddleSignatureHeader = "Paddle-Signature"

// PaddleConfig holds configuration for the Paddle provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	// BaseURL overrides the API endpoint chosen by Environment.
	BaseURL string `env:"PADDLE_BASE_URL"`
}

// PaddleProvider implements Provider for Paddle Billing.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
}

// NewPaddleProvider creates a Paddle provider from cfg.
func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.Join(ErrMissingAPIKey, errors.New("paddle"))
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.Join(ErrMissingWebhookSecret, errors.New("paddle"))
	}

	var opts []paddle.Option
	if cfg.BaseURL != "" {
		opts = append(opts, paddle.WithBaseURL(cfg.BaseURL))
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey, opts...)
	case "production", "":
		client, err = paddle.New(cfg.APIKey, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidProviderEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
	}, nil
}

func (p *PaddleProvider) Name() string { return "paddle" }

func (p *PaddleProvider) SignatureHeader() string { return PaddleSignatureHeader }

// ParseEvent verifies the Paddle signature and decodes the notification.
func (p *PaddleProvider) ParseEvent(ctx context.Context, payload []byte, signature string) (Event, error) {
	// The SDK verifier works on requests.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhooks/billing", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set(PaddleSignatureHeader, signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrSignatureInvalid, err)
	}
	if !valid {
		return nil, ErrSignatureInvalid
	}

	return decodePaddleEvent(payload)
}

// CustomerEmail looks up the customer's address. Archived customers are
// reported as deleted.
func (p *PaddleProvider) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	c, err := p.client.CustomersClient.GetCustomer(ctx, &paddle.GetCustomerRequest{CustomerID: customerID})
	if err != nil {
		return "", fmt.Errorf("get paddle customer %s: %w", customerID, err)
	}
	if strings.EqualFold(string(c.Status), "archived") {
		return "", ErrCustomerDeleted
	}
	return c.Email, nil
}

// CancelAtPeriodEnd schedules cancellation for the next billing period.
func (p *PaddleProvider) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (ScheduledCancellation, error) {
	sub, err := p.client.SubscriptionsClient.CancelSubscription(ctx, &paddle.CancelSubscriptionRequest{
		SubscriptionID: subscriptionID,
		EffectiveFrom:  paddle.PtrTo(paddle.EffectiveFromNextBillingPeriod),
	})
	if err != nil {
		return ScheduledCancellation{}, fmt.Errorf("cancel paddle subscription %s: %w", subscriptionID, err)
	}

	out := ScheduledCancellation{SubscriptionID: sub.ID}
	switch {
	case sub.ScheduledChange != nil && sub.ScheduledChange.EffectiveAt != "":
		out.CurrentPeriodEnd = parsePaddleTime(sub.ScheduledChange.EffectiveAt)
	case sub.CurrentBillingPeriod != nil:
		out.CurrentPeriodEnd = parsePaddleTime(sub.CurrentBillingPeriod.EndsAt)
	}
	return out, nil
}

type paddleNotification struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type paddleSubscription struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	CustomerID string `json:"customer_id"`
	Items      []struct {
		Price struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"price"`
	} `json:"items"`
	CurrentBillingPeriod *struct {
		EndsAt string `json:"ends_at"`
	} `json:"current_billing_period"`
	ScheduledChange *struct {
		Action      string `json:"action"`
		EffectiveAt string `json:"effective_at"`
	} `json:"scheduled_change"`
}

type paddleTransaction struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customer_id"`
	SubscriptionID string `json:"subscription_id"`
}

func decodePaddleEvent(payload []byte) (Event, error) {
	var n paddleNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}

	meta := EventMeta{
		ID:        n.EventID,
		Type:      n.EventType,
		CreatedAt: parsePaddleTime(n.OccurredAt),
	}

	switch n.EventType {
	case "subscription.created", "subscription.activated", "subscription.trialing":
		sub, err := decodePaddleSubscription(n.Data)
		if err != nil {
			return nil, err
		}
		return SubscriptionCreated{EventMeta: meta, Subscription: sub}, nil

	case "subscription.updated", "subscription.resumed", "subscription.paused", "subscription.past_due":
		sub, err := decodePaddleSubscription(n.Data)
		if err != nil {
			return nil, err
		}
		return SubscriptionUpdated{EventMeta: meta, Subscription: sub}, nil

	case "subscription.canceled":
		sub, err := decodePaddleSubscription(n.Data)
		if err != nil {
			return nil, err
		}
		return SubscriptionDeleted{EventMeta: meta, Subscription: sub}, nil

	case "transaction.payment_failed":
		var txn paddleTransaction
		if err := json.Unmarshal(n.Data, &txn); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		return PaymentFailed{
			EventMeta:      meta,
			Customer:       Customer{ID: txn.CustomerID},
			SubscriptionID: txn.SubscriptionID,
		}, nil
	}

	return Unhandled{EventMeta: meta}, nil
}

func decodePaddleSubscription(raw json.RawMessage) (SubscriptionData, error) {
	var s paddleSubscription
	if err := json.Unmarshal(raw, &s); err != nil {
		return SubscriptionData{}, errors.Join(ErrMalformedEvent, err)
	}

	out := SubscriptionData{
		ID:       s.ID,
		Customer: Customer{ID: s.CustomerID},
		Status:   s.Status,
	}
	if len(s.Items) > 0 {
		price := s.Items[0].Price
		out.PriceID = price.ID
		out.PriceNickname = price.Name
		if out.PriceNickname == "" {
			out.PriceNickname = price.Description
		}
	}
	if s.CurrentBillingPeriod != nil {
		out.CurrentPeriodEnd = parsePaddleTime(s.CurrentBillingPeriod.EndsAt)
	}
	if s.ScheduledChange != nil && s.ScheduledChange.Action == "cancel" {
		out.CancelAtPeriodEnd = true
	}
	return out, nil
}

// parsePaddleTime returns the zero time for empty or unparsable values.
func parsePaddleTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
