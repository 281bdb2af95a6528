package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{BaseDomains: []string{"maison.app"}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	testCases := []struct {
		origin  string
		allowed bool
	}{
		{"https://maison.app", true},
		{"https://acme.maison.app", true},
		{"http://acme.maison.app", false},
		{"https://maison.app.evil.com", false},
		{"https://evilmaison.app", false},
	}

	for _, tc := range testCases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
		req.Header.Set("Origin", tc.origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if tc.allowed {
			require.Equal(t, tc.origin, rec.Header().Get("Access-Control-Allow-Origin"), tc.origin)
			require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		} else {
			require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), tc.origin)
		}
	}

	preflight := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	preflight.Header.Set("Origin", "https://acme.maison.app")
	preflight.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 0.5, Burst: 2, IdleTTL: time.Minute})
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, call("10.0.0.1:1111").Code)
	require.Equal(t, http.StatusOK, call("10.0.0.1:2222").Code)

	rec := call("10.0.0.1:3333")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("Retry-After"))

	require.Equal(t, http.StatusOK, call("10.0.0.2:1111").Code, "buckets are per client")

	limiter.sweep(time.Now().Add(2 * time.Minute))
	limiter.mu.Lock()
	require.Empty(t, limiter.clients)
	limiter.mu.Unlock()
}
