package identity

import (
	"context"
	"errors"
)

// Identity is the caller resolved from a bearer credential.
type Identity struct {
	UserID        string
	Email         string
	EmailVerified bool
}

// Verifier validates a bearer credential and yields a stable user identifier.
// Implementations return an error wrapping ErrInvalidToken for credentials
// that are malformed, expired or signed by someone else.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Identity, error)
}

// Config selects and configures the verifier. An issuer URL enables OIDC ID
// token verification; otherwise a shared HMAC secret enables HS256 tokens.
type Config struct {
	IssuerURL  string `env:"AUTH_ISSUER_URL"`
	ClientID   string `env:"AUTH_CLIENT_ID"`
	HMACSecret string `env:"AUTH_HMAC_SECRET"`
}

// NewFromConfig builds the verifier described by cfg.
func NewFromConfig(ctx context.Context, cfg Config) (Verifier, error) {
	switch {
	case cfg.IssuerURL != "":
		return NewOIDCVerifier(ctx, cfg.IssuerURL, cfg.ClientID)
	case cfg.HMACSecret != "":
		return NewHMACVerifier([]byte(cfg.HMACSecret))
	default:
		return nil, errors.New("identity: either AUTH_ISSUER_URL or AUTH_HMAC_SECRET must be set")
	}
}
