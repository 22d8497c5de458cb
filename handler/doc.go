// Package handler adapts response-returning functions to http.HandlerFunc.
//
// A HandlerFunc receives the request and returns a Response; Wrap renders it,
// enforces the allowed methods and routes failures to an ErrorHandler:
//
//	webhook := handler.Wrap(func(r *http.Request) handler.Response {
//		if err := process(r); err != nil {
//			return handler.Error(err)
//		}
//		return handler.JSON(map[string]bool{"received": true})
//	},
//		handler.WithMethods(http.MethodPost),
//		handler.WithErrorHandler(handler.NewErrorHandler(log)),
//	)
//
// Errors carry their status through HTTPError, usually joined with the cause:
//
//	return handler.Error(errors.Join(handler.ErrBadRequest, err))
//
// JSONError renders {"error":{"code":"...","message":"..."}}. Errors without
// an HTTPError in the chain become 500 and their text is only logged.
package handler
