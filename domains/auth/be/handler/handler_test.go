package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/maison-mobility/maison-gate/domains/auth/be/service"
	"github.com/maison-mobility/maison-gate/platform/go/auth"
	"github.com/maison-mobility/maison-gate/platform/go/backend"
	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
)

type stubBackend struct {
	loginErr error
}

func (b stubBackend) Login(ctx context.Context, portal string, req backend.LoginRequest) (backend.LoginResponse, error) {
	if b.loginErr != nil {
		return backend.LoginResponse{}, b.loginErr
	}
	if req.Password != "secret" {
		return backend.LoginResponse{}, backend.ErrUnauthorized
	}
	return backend.LoginResponse{AccessToken: portal + ":" + req.Tenant}, nil
}

func (b stubBackend) RegisterTenant(ctx context.Context, req backend.RegisterTenantRequest) (backend.RegisterTenantResponse, error) {
	return backend.RegisterTenantResponse{AccessToken: "tenant:" + req.Slug}, nil
}

var decoder = auth.DecoderFunc(func(_ context.Context, token string) (auth.Claims, error) {
	role, slug, _ := strings.Cut(token, ":")
	return auth.Claims{Subject: "u-1", Role: role, TenantSlug: slug}, nil
})

func request(method, target, body string, res tenant.Resolution, store *session.Store) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := tenant.WithResolution(r.Context(), res)
	if store != nil {
		ctx = session.WithStore(ctx, store)
	}
	return r.WithContext(ctx)
}

func decodeRedirect(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body redirectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Redirect
}

func TestLoginAndSession(t *testing.T) {
	h := New(service.New(stubBackend{}, nil), zaptest.NewLogger(t))
	store := session.NewStore("s-1", nil, decoder)
	acme := tenant.Resolution{Mode: tenant.ModeTenant, Identifier: "acme", Via: tenant.ViaSubdomain}

	rec := httptest.NewRecorder()
	h.Login(rec, request(http.MethodPost, "/api/v1/auth/login", `{"portal":"rider","email":"r@acme.test","password":"secret"}`, acme, store))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "/acme/rider/dashboard", decodeRedirect(t, rec))

	rec = httptest.NewRecorder()
	h.Session(rec, request(http.MethodGet, "/api/v1/auth/session", "", acme, store))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "rider:acme", "token must not leak")

	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Authenticated)
	require.Equal(t, session.RoleRider, body.Role)

	rec = httptest.NewRecorder()
	h.Logout(rec, request(http.MethodPost, "/api/v1/auth/logout", "", acme, store))
	require.Equal(t, "/riders/login", decodeRedirect(t, rec))
	require.False(t, store.State().IsAuthenticated())
}

func TestLoginErrors(t *testing.T) {
	testCases := []struct {
		name       string
		backend    stubBackend
		body       string
		wantStatus int
	}{
		{name: "bad password", body: `{"portal":"tenant","email":"o@acme.test","password":"nope"}`, wantStatus: http.StatusUnauthorized},
		{name: "rider without tenant", body: `{"portal":"rider","email":"r@acme.test","password":"secret"}`, wantStatus: http.StatusBadRequest},
		{name: "malformed body", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "backend down", backend: stubBackend{loginErr: errors.New("dial tcp: refused")}, body: `{"portal":"tenant","email":"o@acme.test","password":"secret"}`, wantStatus: http.StatusBadGateway},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(service.New(tc.backend, nil), zaptest.NewLogger(t))
			store := session.NewStore("s-1", nil, decoder)

			rec := httptest.NewRecorder()
			h.Login(rec, request(http.MethodPost, "/api/v1/auth/login", tc.body, tenant.Main(), store))
			require.Equal(t, tc.wantStatus, rec.Code)
			require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestSignup(t *testing.T) {
	h := New(service.New(stubBackend{}, nil), zaptest.NewLogger(t))
	store := session.NewStore("s-1", nil, decoder)

	rec := httptest.NewRecorder()
	h.Signup(rec, request(http.MethodPost, "/api/v1/signup", `{"companyName":"Globex Cabs","email":"o@globex.test","password":"supersecret"}`, tenant.Main(), store))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "/tenant/overview", decodeRedirect(t, rec))
	require.Equal(t, "globex-cabs", store.State().TenantSlug)
}

func TestMissingStore(t *testing.T) {
	h := New(service.New(stubBackend{}, nil), zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.Login(rec, request(http.MethodPost, "/api/v1/auth/login", `{}`, tenant.Main(), nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
