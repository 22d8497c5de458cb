// Package identity verifies caller credentials.
//
// The cancellation endpoint and the callable RPCs receive an
// "Authorization: Bearer <token>" header. A Verifier turns the token into an
// Identity with a stable user id:
//
//   - OIDCVerifier checks ID tokens from the hosted identity service using the
//     issuer's published keys (github.com/coreos/go-oidc/v3).
//   - HMACVerifier checks HS256 tokens signed with a shared secret; it can also
//     issue them, which local tooling and tests rely on.
//
// FromRequest performs the check for one request. Handlers that need the
// identity further down store it with WithContext and read it with
// FromContext.
package identity
