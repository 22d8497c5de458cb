package billing

import "errors"

var (
	// ErrSignatureInvalid means the webhook could not be authenticated. Never retried.
	ErrSignatureInvalid = errors.New("billing: webhook signature verification failed")
	ErrMalformedEvent   = errors.New("billing: malformed webhook payload")

	ErrUserNotFound    = errors.New("billing: user not found")
	ErrNoSubscription  = errors.New("billing: no active subscription")
	ErrCustomerDeleted = errors.New("billing: customer deleted")
	ErrStaleEvent      = errors.New("billing: event older than stored state")

	// ErrIdentityLookup wraps provider failures while resolving a customer.
	// Retryable: the webhook responds 500 so the provider redelivers.
	ErrIdentityLookup = errors.New("billing: customer lookup failed")
	ErrProvider       = errors.New("billing: payment provider request failed")

	ErrMissingAPIKey              = errors.New("billing: provider API key is required")
	ErrMissingWebhookSecret       = errors.New("billing: provider webhook secret is required")
	ErrInvalidProviderEnvironment = errors.New("billing: invalid provider environment")
	ErrUnknownProvider            = errors.New("billing: unknown provider")
)
