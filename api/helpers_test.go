package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vaultkit/handler"
	"github.com/dmitrymomot/vaultkit/pkg/billing"
	"github.com/dmitrymomot/vaultkit/pkg/identity"
	"github.com/dmitrymomot/vaultkit/pkg/logger"
)

const testSignatureHeader = "X-Test-Signature"

var testKey = []byte("0123456789abcdef0123456789abcdef")

// fakeSource accepts any non-empty signature and returns a canned event.
type fakeSource struct {
	ev  billing.Event
	err error

	payload   []byte
	signature string
}

func (f *fakeSource) SignatureHeader() string { return testSignatureHeader }
func (f *fakeSource) Name() string            { return "test" }

func (f *fakeSource) ParseEvent(_ context.Context, payload []byte, signature string) (billing.Event, error) {
	f.payload = payload
	f.signature = signature
	return f.ev, f.err
}

// staticDirectory resolves every customer to the same e-mail.
type staticDirectory struct {
	email string
	err   error
}

func (d staticDirectory) CustomerEmail(context.Context, string) (string, error) {
	return d.email, d.err
}

func newVerifier(t *testing.T) *identity.HMACVerifier {
	t.Helper()
	v, err := identity.NewHMACVerifier(testKey)
	require.NoError(t, err)
	return v
}

func issue(t *testing.T, v *identity.HMACVerifier, userID string) string {
	t.Helper()
	token, err := v.Issue(identity.Claims{Subject: userID})
	require.NoError(t, err)
	return token
}

func errorHandler() handler.ErrorHandler {
	return handler.NewErrorHandler(logger.Discard())
}

func do(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body handler.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error.Code
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeRPC(t *testing.T, rec *httptest.ResponseRecorder) rpcEnvelope {
	t.Helper()
	var env rpcEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}
