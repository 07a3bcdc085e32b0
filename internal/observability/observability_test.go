package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestLogger_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, slog.LevelInfo)

	logger.Debug("hidden", nil)
	logger.Info("server_start", map[string]any{"addr": ":8002"})
	logger.Warn("auth_login_rejected", map[string]any{"outcome": "invalid_credentials"})
	logger.Error("open_database_failed", map[string]any{"error": "refused"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "server_start", lines[0]["message"])
	assert.Equal(t, ":8002", lines[0]["addr"])
	assert.NotEmpty(t, lines[0]["timestamp"])

	assert.Equal(t, "warn", lines[1]["level"])
	assert.Equal(t, "error", lines[2]["level"])
	assert.Equal(t, "refused", lines[2]["error"])
}

func TestRequestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, slog.LevelInfo)

	h := RequestLoggingMiddleware(logger, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.50, 198.51.100.9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "http_request", lines[0]["message"])
	assert.Equal(t, "/api/me", lines[0]["path"])
	assert.EqualValues(t, http.StatusTeapot, lines[0]["status"])
	assert.Equal(t, "198.51.100.9", lines[0]["ip"])
}

func TestRecoverMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, slog.LevelInfo)

	h := RecoverMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/task", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "panic_recovered")
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:5173/"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/task", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		req.Header.Set("Access-Control-Request-Headers", "content-type")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
		assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMetrics_Middleware(t *testing.T) {
	m := NewMetrics()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/task/{task_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/task/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/task/def", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/api/task/{task_id}", "404")))
}

func TestAuthEventRecorder(t *testing.T) {
	var buf bytes.Buffer
	m := NewMetrics()
	rec := NewAuthEventRecorder(NewLoggerTo(&buf, slog.LevelInfo), m)

	rec.AuthEvent("login", "ok")
	rec.AuthEvent("login", "invalid_credentials")
	rec.AuthEvent("login", "invalid_credentials")
	rec.AuthEvent("register", "error")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.authEvents.WithLabelValues("login", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.authEvents.WithLabelValues("login", "invalid_credentials")))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "auth_login_rejected", lines[0]["message"])
	assert.Equal(t, "auth_register_failed", lines[2]["message"])

	body := httptest.NewRecorder()
	m.Handler().ServeHTTP(body, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, body.Body.String(), `auth_events_total{op="login",outcome="ok"} 1`)
}

func TestScrubCredentials(t *testing.T) {
	event := &sentry.Event{Request: &sentry.Request{
		Cookies: "access_token=secret",
		Headers: map[string]string{"Authorization": "Bearer secret", "Cookie": "refresh_token=x", "Accept": "*/*"},
	}}

	scrubbed := scrubCredentials(event)
	assert.Empty(t, scrubbed.Request.Cookies)
	assert.Equal(t, map[string]string{"Accept": "*/*"}, scrubbed.Request.Headers)
	assert.Nil(t, scrubCredentials(nil))
}
