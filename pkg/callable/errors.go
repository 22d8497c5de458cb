package callable

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the canonical status carried in an error envelope.
type Code string

const (
	Unauthenticated Code = "UNAUTHENTICATED"
	InvalidArgument Code = "INVALID_ARGUMENT"
	NotFound        Code = "NOT_FOUND"
	Internal        Code = "INTERNAL"
)

// HTTPStatus maps the code to the response status.
func (c Code) HTTPStatus() int {
	switch c {
	case Unauthenticated:
		return http.StatusUnauthorized
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a failure reported to the caller. Message is sent to the client
// verbatim; the wrapped cause is only logged.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates an Error with the given code and client-facing message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError attaches cause to a client-facing error.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// ErrorMapper translates domain errors into client-facing errors. It returns
// nil for errors it does not recognise.
type ErrorMapper func(error) *Error

// toError resolves err to the envelope sent to the client.
func toError(err error, mapper ErrorMapper) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if mapper != nil {
		if mapped := mapper(err); mapped != nil {
			if mapped.cause == nil {
				mapped.cause = err
			}
			return mapped
		}
	}
	return WrapError(Internal, "INTERNAL", err)
}
