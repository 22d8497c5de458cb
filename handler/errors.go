package handler

import "net/http"

// HTTPError is an error with a status code and a stable machine-readable key.
// Handlers return it directly or joined with the underlying cause.
type HTTPError struct {
	Code int    // HTTP status code
	Key  string // e.g. "not_found", "signature_invalid"
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	return e.Key
}

var (
	ErrBadRequest            = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized          = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrNotFound              = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrMethodNotAllowed      = HTTPError{Code: http.StatusMethodNotAllowed, Key: "method_not_allowed"}
	ErrRequestEntityTooLarge = HTTPError{Code: http.StatusRequestEntityTooLarge, Key: "request_entity_too_large"}
	ErrInternalServerError   = HTTPError{Code: http.StatusInternalServerError, Key: "internal_server_error"}
	ErrNotConfigured         = HTTPError{Code: http.StatusInternalServerError, Key: "not_configured"}
)

// NewHTTPError creates a custom HTTP error with the given status code and key.
//
// Example:
//
//	var ErrNoSubscription = handler.NewHTTPError(http.StatusBadRequest, "no_subscription")
func NewHTTPError(code int, key string) HTTPError {
	return HTTPError{Code: code, Key: key}
}
