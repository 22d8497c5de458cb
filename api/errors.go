package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/vaultkit/handler"
	"github.com/dmitrymomot/vaultkit/pkg/callable"
	"github.com/dmitrymomot/vaultkit/pkg/quota"
	"github.com/dmitrymomot/vaultkit/pkg/tags"
)

var (
	ErrSignatureMissing    = handler.NewHTTPError(http.StatusBadRequest, "signature_missing")
	ErrSignatureInvalid    = handler.NewHTTPError(http.StatusBadRequest, "signature_invalid")
	ErrMalformedEvent      = handler.NewHTTPError(http.StatusBadRequest, "malformed_event")
	ErrUserNotFound        = handler.NewHTTPError(http.StatusNotFound, "user_not_found")
	ErrNoSubscription      = handler.NewHTTPError(http.StatusBadRequest, "no_subscription")
	ErrInvalidTrigger      = handler.NewHTTPError(http.StatusBadRequest, "invalid_trigger_payload")
	ErrTriggerUnauthorized = handler.NewHTTPError(http.StatusUnauthorized, "invalid_trigger_secret")
)

func quotaErrors(err error) *callable.Error {
	switch {
	case errors.Is(err, quota.ErrUnauthenticated):
		return callable.NewError(callable.Unauthenticated, "authentication required")
	case errors.Is(err, quota.ErrInvalidKey):
		return callable.NewError(callable.InvalidArgument, "key is required")
	}
	return nil
}

func tagErrors(err error) *callable.Error {
	switch {
	case errors.Is(err, tags.ErrUnauthenticated):
		return callable.NewError(callable.Unauthenticated, "authentication required")
	case errors.Is(err, tags.ErrInvalidArgument):
		return callable.NewError(callable.InvalidArgument, "sourceTagId and targetTagId must be distinct and non-empty")
	}
	return nil
}
