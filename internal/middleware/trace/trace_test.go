package trace

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "budget/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Format: "json", Output: &buf})
	m := NewMiddleware(logger, func(*http.Request) string { return "203.0.113.7" })

	var seen string
	var ctxLogger *applog.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		ctxLogger = applog.FromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/expenses/9", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
	assert.Equal(t, applog.ComponentHTTP, ctxLogger.Component())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	assert.Equal(t, "HTTP request completed", entry["msg"])
	assert.Equal(t, "WARN", entry["level"], "first status wins")
	assert.Equal(t, float64(http.StatusNotFound), entry[applog.FieldStatusCode])
	assert.Equal(t, "203.0.113.7", entry[applog.FieldClientIP])
	assert.Equal(t, seen, entry[applog.FieldRequestID])

	assert.Equal(t, int64(1), m.GetMetrics().TotalRequests)
}

func TestMiddlewareReusesIncomingRequestID(t *testing.T) {
	m := NewMiddleware(applog.New(applog.Config{Output: &bytes.Buffer{}}), nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, id)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, id, rr.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid\nX-Injected: 1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.NotContains(t, rr.Header().Get(RequestIDHeader), "Injected")

	assert.Equal(t, int64(2), m.GetMetrics().ServerErrors)
}
