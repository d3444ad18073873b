package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/sparkwatch/internal/model"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) { return false, errors.New("boom") }
func (failingLimiter) Close() error                                 { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

func do(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/events/stages", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	m, _ := newTestLimiter(t, 1, 1)
	reqID := func(*http.Request) string { return "req-1" }
	h := Middleware(m, IPKeyFunc, reqID, testLogger())(okHandler())

	assert.Equal(t, http.StatusNoContent, do(h, "10.0.0.1:5000").Code)

	rec := do(h, "10.0.0.1:5001")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var body model.APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, model.ErrCodeRateLimited, body.Error.Code)
	assert.Equal(t, "req-1", body.Meta.RequestID)

	// Another client has its own bucket.
	assert.Equal(t, http.StatusNoContent, do(h, "10.0.0.2:5000").Code)
}

func TestMiddlewareFailsOpen(t *testing.T) {
	h := Middleware(failingLimiter{}, IPKeyFunc, nil, testLogger())(okHandler())
	assert.Equal(t, http.StatusNoContent, do(h, "10.0.0.1:5000").Code)
}

func TestMiddlewareEmptyKeySkips(t *testing.T) {
	m, _ := newTestLimiter(t, 1, 1)
	skip := func(*http.Request) string { return "" }
	h := Middleware(m, skip, nil, testLogger())(okHandler())
	for range 3 {
		assert.Equal(t, http.StatusNoContent, do(h, "10.0.0.1:5000").Code)
	}
}

func TestIPKeyFunc(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.168.1.10:4242", "192.168.1.10"},
		{"[::1]:8080", "::1"},
		{"unix-socket", "unix-socket"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		req.Header.Set("X-Forwarded-For", "1.2.3.4")
		assert.Equal(t, tt.want, IPKeyFunc(req), tt.remote)
	}
}

func TestRouteKeyFunc(t *testing.T) {
	var keys []string
	mux := http.NewServeMux()
	record := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, RouteKeyFunc(r))
	})
	mux.Handle("POST /v1/events/stages", record)
	mux.Handle("POST /v1/events/sql/{sql_id}/metrics", record)

	for _, path := range []string{"/v1/events/stages", "/v1/events/sql/3/metrics", "/v1/events/sql/9/metrics"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "10.0.0.1:4000"
		mux.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, []string{
		"10.0.0.1 POST /v1/events/stages",
		"10.0.0.1 POST /v1/events/sql/{sql_id}/metrics",
		"10.0.0.1 POST /v1/events/sql/{sql_id}/metrics",
	}, keys)

	// Outside a mux the path is used.
	req := httptest.NewRequest(http.MethodPost, "/v1/events/init", nil)
	req.RemoteAddr = "10.0.0.2:4000"
	assert.Equal(t, "10.0.0.2 /v1/events/init", RouteKeyFunc(req))
}

func TestMiddlewareBudgetsRoutesSeparately(t *testing.T) {
	m, _ := newTestLimiter(t, 1, 1)
	mux := http.NewServeMux()
	limited := Middleware(m, RouteKeyFunc, nil, testLogger())
	mux.Handle("POST /v1/events/stages", limited(okHandler()))
	mux.Handle("POST /v1/events/executors", limited(okHandler()))

	post := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, post("/v1/events/stages"))
	assert.Equal(t, http.StatusTooManyRequests, post("/v1/events/stages"))
	assert.Equal(t, http.StatusNoContent, post("/v1/events/executors"))
}
