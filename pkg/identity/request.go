package identity

import (
	"net/http"
	"strings"
)

// BearerToken extracts the credential from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

// FromRequest verifies the bearer credential of r. A request without an
// Authorization header fails with ErrMissingToken so callers that allow
// anonymous access can tell it apart from a bad credential.
func FromRequest(r *http.Request, v Verifier) (Identity, error) {
	token, err := BearerToken(r)
	if err != nil {
		return Identity{}, err
	}
	return v.Verify(r.Context(), token)
}
