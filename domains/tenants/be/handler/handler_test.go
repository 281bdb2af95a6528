package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/maison-mobility/maison-gate/domains/tenants/be/repo"
	"github.com/maison-mobility/maison-gate/domains/tenants/be/service"
	"github.com/maison-mobility/maison-gate/platform/go/auth"
	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/storage"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
	"github.com/maison-mobility/maison-gate/platform/go/tenantinfo"
)

func newTestHandler(t *testing.T) (*Handler, *repo.MemoryRepository, *tenantinfo.Cache) {
	t.Helper()

	memory := repo.NewMemoryRepository(
		tenantinfo.Info{ID: "t-1", Slug: "acme", CompanyName: "Acme Rides", IsActive: true, StripeAccountID: "acct_1"},
		tenantinfo.Info{ID: "t-2", Slug: "sleepy", CompanyName: "Sleepy", IsActive: false},
	)
	memory.Authorize("tenant-token", "acme")
	cache := tenantinfo.NewCache(memory)

	svc, err := service.New(cache, memory, memory, service.Config{Wait: time.Second})
	require.NoError(t, err)
	return New(svc, zaptest.NewLogger(t)), memory, cache
}

func withTenant(r *http.Request, slug string) *http.Request {
	res := tenant.Main()
	if slug != "" {
		res = tenant.Resolution{Mode: tenant.ModeTenant, Identifier: slug, Via: tenant.ViaSubdomain}
	}
	return r.WithContext(tenant.WithResolution(r.Context(), res))
}

func withLogin(t *testing.T, r *http.Request, token string, role session.Role) *http.Request {
	t.Helper()
	decoder := auth.DecoderFunc(func(_ context.Context, tok string) (auth.Claims, error) {
		return auth.Claims{Subject: "owner", Role: string(role), TenantSlug: "acme"}, nil
	})
	store := session.NewStore("", nil, decoder)
	_, err := store.Login(r.Context(), token, role)
	require.NoError(t, err)
	return r.WithContext(session.WithStore(r.Context(), store))
}

func TestTenantContext(t *testing.T) {
	h, _, _ := newTestHandler(t)

	testCases := []struct {
		name       string
		slug       string
		wantStatus int
	}{
		{name: "active tenant", slug: "acme", wantStatus: http.StatusOK},
		{name: "inactive tenant", slug: "sleepy", wantStatus: http.StatusNotFound},
		{name: "unknown tenant", slug: "globex", wantStatus: http.StatusNotFound},
		{name: "main domain", slug: "", wantStatus: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.TenantContext(rec, withTenant(httptest.NewRequest(http.MethodGet, "/api/v1/tenant-context", nil), tc.slug))
			require.Equal(t, tc.wantStatus, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	h.TenantContext(rec, withTenant(httptest.NewRequest(http.MethodGet, "/api/v1/tenant-context", nil), "acme"))

	var body service.ContextResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, tenantinfo.StateReady, body.State)
	require.Equal(t, "acct_1", body.Tenant.StripeAccountID)
}

func TestUpdateSettingsInvalidatesCache(t *testing.T) {
	h, _, cache := newTestHandler(t)
	ctx := context.Background()

	before, err := cache.Get(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, "Acme Rides", before.CompanyName)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/tenant/settings", strings.NewReader(`{"companyName":"Acme Mobility","theme":{"primaryColor":"#123456"}}`))
	rec := httptest.NewRecorder()
	h.UpdateSettings(rec, withLogin(t, req, "tenant-token", session.RoleTenant))
	require.Equal(t, http.StatusOK, rec.Code)

	after, err := cache.Get(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, "Acme Mobility", after.CompanyName)
}

func TestUpdateSettingsErrors(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/tenant/settings", strings.NewReader(`{"theme":{"primaryColor":"blue"}}`))
	h.UpdateSettings(rec, withLogin(t, req, "tenant-token", session.RoleTenant))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/v1/tenant/settings", strings.NewReader(`{"theme":{}}`))
	h.UpdateSettings(rec, withLogin(t, req, "rider-token", session.RoleRider))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/v1/tenant/settings", strings.NewReader(`not json`))
	h.UpdateSettings(rec, withLogin(t, req, "tenant-token", session.RoleTenant))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckSlug(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.CheckSlug(rec, httptest.NewRequest(http.MethodGet, "/api/v1/signup/slug-check?slug=Globex+Cabs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var check service.SlugCheck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	require.Equal(t, service.SlugCheck{Slug: "globex-cabs", Available: true}, check)

	rec = httptest.NewRecorder()
	h.CheckSlug(rec, httptest.NewRequest(http.MethodGet, "/api/v1/signup/slug-check?slug=acme", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	require.False(t, check.Available)

	rec = httptest.NewRecorder()
	h.CheckSlug(rec, httptest.NewRequest(http.MethodGet, "/api/v1/signup/slug-check?slug=%3F%3F", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadLogo(t *testing.T) {
	memory := repo.NewMemoryRepository(tenantinfo.Info{ID: "t-1", Slug: "acme", CompanyName: "Acme Rides", IsActive: true})
	memory.Authorize("tenant-token", "acme")
	assets, err := storage.NewLocalStore(t.TempDir(), "/assets")
	require.NoError(t, err)

	svc, err := service.New(tenantinfo.NewCache(memory), memory, memory, service.Config{Wait: time.Second, Assets: assets})
	require.NoError(t, err)
	h := New(svc, zaptest.NewLogger(t))

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	testCases := []struct {
		name       string
		body       []byte
		wantStatus int
	}{
		{name: "png", body: png, wantStatus: http.StatusOK},
		{name: "empty", body: nil, wantStatus: http.StatusBadRequest},
		{name: "plain text", body: []byte("hello"), wantStatus: http.StatusUnsupportedMediaType},
		{name: "too large", body: append(append([]byte{}, png...), bytes.Repeat([]byte{0}, MaxLogoBytes)...), wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/v1/tenant/logo", bytes.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/octet-stream")
			rec := httptest.NewRecorder()
			h.UploadLogo(rec, withLogin(t, req, "tenant-token", session.RoleTenant))
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			if tc.wantStatus == http.StatusOK {
				var info tenantinfo.Info
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
				require.True(t, strings.HasPrefix(info.LogoURL, "/assets/tenants/acme/branding/logo-"), info.LogoURL)
			}
		})
	}
}

func TestUploadLogoDisabled(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/tenant/logo", strings.NewReader("\x89PNG\r\n\x1a\n"))
	rec := httptest.NewRecorder()
	h.UploadLogo(rec, withLogin(t, req, "tenant-token", session.RoleTenant))
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}
