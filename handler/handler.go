package handler

import (
	"net/http"
	"slices"
)

// HandlerFunc handles a request and returns the response to render.
//
// Example:
//
//	cancel := handler.Wrap(func(r *http.Request) handler.Response {
//		res, err := canceller.Cancel(r.Context(), userID)
//		if err != nil {
//			return handler.Error(err)
//		}
//		return handler.JSON(res)
//	}, handler.WithMethods(http.MethodPost))
type HandlerFunc func(r *http.Request) Response

// Response renders itself to an http.ResponseWriter.
// Implementations should set headers, status code, and write body.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// ErrorHandler handles errors returned by handlers and failed renders.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Decorator wraps a HandlerFunc to add cross-cutting functionality.
// Decorators are applied in order, with the first decorator in the list
// being the outermost wrapper.
type Decorator func(HandlerFunc) HandlerFunc

// WrapOption configures the Wrap function.
type WrapOption func(*wrapConfig)

type wrapConfig struct {
	methods      []string
	errorHandler ErrorHandler
	decorators   []Decorator
}

// WithMethods restricts the handler to the given methods. Other methods are
// answered with ErrMethodNotAllowed before the handler runs.
func WithMethods(methods ...string) WrapOption {
	return func(c *wrapConfig) {
		c.methods = methods
	}
}

// WithErrorHandler sets a custom error handler.
func WithErrorHandler(h ErrorHandler) WrapOption {
	return func(c *wrapConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// WithDecorators adds decorators to the handler.
func WithDecorators(decorators ...Decorator) WrapOption {
	return func(c *wrapConfig) {
		c.decorators = append(c.decorators, decorators...)
	}
}

// errorResponse defers rendering to the configured ErrorHandler.
type errorResponse struct {
	err error
}

func (e errorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return JSONError(e.err).Render(w, r)
}

// Error returns a response that hands err to the wrapping ErrorHandler.
func Error(err error) Response {
	return errorResponse{err: err}
}

// Wrap converts a HandlerFunc to a standard http.HandlerFunc.
func Wrap(fn HandlerFunc, opts ...WrapOption) http.HandlerFunc {
	cfg := &wrapConfig{
		errorHandler: defaultErrorHandler,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	for i := len(cfg.decorators) - 1; i >= 0; i-- {
		fn = cfg.decorators[i](fn)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if len(cfg.methods) > 0 && !slices.Contains(cfg.methods, r.Method) {
			w.Header().Set("Allow", cfg.methods[0])
			cfg.errorHandler(w, r, ErrMethodNotAllowed)
			return
		}

		resp := fn(r)
		if resp == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if er, ok := resp.(errorResponse); ok {
			cfg.errorHandler(w, r, er.err)
			return
		}
		if err := resp.Render(w, r); err != nil {
			cfg.errorHandler(w, r, err)
		}
	}
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	_ = JSONError(err).Render(w, r)
}
