package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-gateway/internal/backend"
	"github.com/wolfman30/clinic-gateway/pkg/logging"
)

// newEchoBackend records the headers of the last outbound call.
func newEchoBackend(t *testing.T) (*backend.Client, *http.Header) {
	t.Helper()
	var seen http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)
	client, err := backend.New(backend.Config{BaseURL: server.URL, Tokens: backend.StaticToken("service-token"), HTTPClient: server.Client()})
	require.NoError(t, err)
	return client, &seen
}

func callBackend(t *testing.T, client *backend.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := client.Get(r.Context(), "/ping", nil)
		require.NoError(t, err)
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestForwardCredentialsUsesCallerToken(t *testing.T) {
	client, seen := newEchoBackend(t)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer mobile-session")

	ForwardCredentials(callBackend(t, client)).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "Bearer mobile-session", seen.Get("Authorization"))
}

func TestForwardCredentialsFallsBackToServiceToken(t *testing.T) {
	client, seen := newEchoBackend(t)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	ForwardCredentials(callBackend(t, client)).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "Bearer service-token", seen.Get("Authorization"))
}

func TestRequestLoggerPropagatesRequestID(t *testing.T) {
	client, seen := newEchoBackend(t)
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)

	handler := chimw.RequestID(RequestLogger(logger)(callBackend(t, client)))
	req := httptest.NewRequest(http.MethodGet, "/clinics/c1/schedule", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", seen.Get("X-Request-ID"))
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "http", entry["component"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, "req-123", entry["request_id"])
}

func TestRequestLoggerGeneratesRequestID(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogger(logging.NewWithWriter("info", &buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), `"status":200`)
}
