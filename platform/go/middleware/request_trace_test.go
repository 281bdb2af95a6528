package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	"github.com/maison-mobility/maison-gate/platform/go/auth"
	"github.com/maison-mobility/maison-gate/platform/go/requesttrace"
	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
	tenantmiddleware "github.com/maison-mobility/maison-gate/platform/go/tenant/middleware"
)

func testManager() *session.Manager {
	decoder := auth.DecoderFunc(func(_ context.Context, token string) (auth.Claims, error) {
		if token != "rider-token" {
			return auth.Claims{}, auth.ErrInvalidToken
		}
		return auth.Claims{Subject: "user-123", Role: "rider", TenantSlug: "acme"}, nil
	})
	return session.NewManager(session.NewMemoryPersister(), decoder)
}

func TestRequestTraceWithSession(t *testing.T) {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(session.Middleware(testManager(), session.CookieConfig{}))
	r.Use(tenantmiddleware.WithResolution(tenant.NewResolver(tenant.DefaultPolicy("example.com"))))
	r.Use(RequestTrace)

	r.Get("/test", func(w http.ResponseWriter, req *http.Request) {
		audit, ok := requesttrace.FromContext(req.Context())
		require.True(t, ok)
		require.Equal(t, requesttrace.ActorKindUser, audit.ActorKind)
		require.NotNil(t, audit.UserID)
		require.Equal(t, "user-123", *audit.UserID)
		require.Equal(t, "acme", *audit.TenantSlug)
		require.NotEmpty(t, audit.RequestID)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "http://acme.example.com/test", nil)
	req.Header.Set("Authorization", "Bearer rider-token")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRequestTraceAnonymous(t *testing.T) {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestTrace)

	handler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		audit, ok := requesttrace.FromContext(req.Context())
		require.True(t, ok)
		require.Equal(t, requesttrace.ActorKindAnonymous, audit.ActorKind)
		require.Nil(t, audit.UserID)
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/test", handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
}
