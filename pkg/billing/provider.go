package billing

import (
	"context"
	"time"
)

// EventParser verifies and decodes webhook deliveries. payload must be the
// exact bytes received; any re-encoding invalidates the signature.
// Verification failures return an error wrapping ErrSignatureInvalid.
type EventParser interface {
	// SignatureHeader is the request header carrying the delivery signature.
	SignatureHeader() string
	ParseEvent(ctx context.Context, payload []byte, signature string) (Event, error)
}

// CustomerDirectory resolves provider customers to e-mail addresses.
// A deleted or archived customer returns ErrCustomerDeleted.
type CustomerDirectory interface {
	CustomerEmail(ctx context.Context, customerID string) (string, error)
}

// SubscriptionCanceller schedules a subscription to end at the close of the
// current billing period.
type SubscriptionCanceller interface {
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (ScheduledCancellation, error)
}

// ScheduledCancellation is the provider-confirmed result of a cancellation request.
type ScheduledCancellation struct {
	SubscriptionID   string
	CurrentPeriodEnd time.Time
}

// Provider is a payment provider integration.
type Provider interface {
	EventParser
	CustomerDirectory
	SubscriptionCanceller
	Name() string
}

// Config selects the payment provider and the distinguished annual price.
type Config struct {
	Provider      string `env:"BILLING_PROVIDER" envDefault:"stripe"`
	AnnualPriceID string `env:"BILLING_ANNUAL_PRICE_ID"`
}
