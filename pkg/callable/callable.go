package callable

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/vaultkit/pkg/identity"
	"github.com/dmitrymomot/vaultkit/pkg/logger"
	"github.com/dmitrymomot/vaultkit/pkg/requestid"
)

// MaxBodyBytes bounds the size of a request envelope.
const MaxBodyBytes = 1 << 20

// Request is one decoded invocation. Auth is nil when the caller sent no
// bearer token; the function decides whether that is acceptable.
type Request[T any] struct {
	Data T
	Auth *identity.Identity
}

// Func implements a callable function.
type Func[T, R any] func(ctx context.Context, req Request[T]) (R, error)

type requestEnvelope[T any] struct {
	Data *T `json:"data"`
}

type resultEnvelope[R any] struct {
	Result R `json:"result"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Status  Code   `json:"status"`
	Message string `json:"message"`
}

// Option configures Handle.
type Option func(*config)

type config struct {
	verifier identity.Verifier
	mapper   ErrorMapper
	logger   *slog.Logger
	name     string
}

// WithVerifier enables bearer token verification. Without a verifier every
// request is treated as anonymous.
func WithVerifier(v identity.Verifier) Option {
	return func(c *config) {
		c.verifier = v
	}
}

// WithErrorMapper translates errors returned by the function.
func WithErrorMapper(m ErrorMapper) Option {
	return func(c *config) {
		c.mapper = m
	}
}

// WithLogger sets the logger for failed invocations.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithName labels log records of the function.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// Handle serves fn over the callable protocol: a POST with a JSON body
// {"data": ...} answered with {"result": ...} or
// {"error": {"status": "...", "message": "..."}}.
func Handle[T, R any](fn Func[T, R], opts ...Option) http.HandlerFunc {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.Method != http.MethodPost {
			cfg.fail(w, r, NewError(InvalidArgument, "request method must be POST"))
			return
		}

		var auth *identity.Identity
		if cfg.verifier != nil {
			id, err := verify(cfg.verifier, r)
			if err != nil {
				cfg.fail(w, r, WrapError(Unauthenticated, "unauthenticated", err))
				return
			}
			auth = id
		}

		var env requestEnvelope[T]
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err := dec.Decode(&env); err != nil {
			cfg.fail(w, r, WrapError(InvalidArgument, "request body must be a JSON object", err))
			return
		}
		if env.Data == nil {
			cfg.fail(w, r, NewError(InvalidArgument, "request body is missing data"))
			return
		}

		res, err := fn(ctx, Request[T]{Data: *env.Data, Auth: auth})
		if err != nil {
			cfg.fail(w, r, toError(err, cfg.mapper))
			return
		}

		writeJSON(w, http.StatusOK, resultEnvelope[R]{Result: res})
	}
}

// verify returns a nil identity when no Authorization header is present.
func verify(v identity.Verifier, r *http.Request) (*identity.Identity, error) {
	id, err := identity.FromRequest(r, v)
	if errors.Is(err, identity.ErrMissingToken) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (c *config) fail(w http.ResponseWriter, r *http.Request, e *Error) {
	level := slog.LevelWarn
	if e.Code == Internal {
		level = slog.LevelError
	}
	c.logger.LogAttrs(r.Context(), level, "callable invocation failed",
		slog.String("function", c.name),
		slog.String("status", string(e.Code)),
		logger.RequestID(requestid.FromContext(r.Context())),
		logger.Error(e),
		logger.Component("callable"),
	)

	writeJSON(w, e.Code.HTTPStatus(), errorEnvelope{Error: errorBody{Status: e.Code, Message: e.Message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
