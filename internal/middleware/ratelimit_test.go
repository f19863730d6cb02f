package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRateLimiterRejectsBeyondBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.2:5000"
		h.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "1", last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "rate limit exceeded")
}

func TestRateLimiterTracksClientsSeparately(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req.RemoteAddr = "10.0.0.3:5000"
	h.ServeHTTP(first, req)
	require.Equal(t, http.StatusNoContent, first.Code)

	// Same client exhausted its bucket; a different client is unaffected.
	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req.RemoteAddr = "10.0.0.3:5001"
	h.ServeHTTP(second, req)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	other := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req.RemoteAddr = "10.0.0.4:5000"
	h.ServeHTTP(other, req)
	assert.Equal(t, http.StatusNoContent, other.Code)
}

func TestExtractClientIPPrefersProxyHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	assert.Equal(t, "127.0.0.1", extractClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", extractClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.9")
	assert.Equal(t, "198.51.100.9", extractClientIP(req))
}
