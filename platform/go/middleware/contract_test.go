package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/maison-mobility/maison-gate/contracts"
	"github.com/maison-mobility/maison-gate/platform/go/session"
)

func newContractRouter(t *testing.T) http.Handler {
	t.Helper()

	doc, err := contracts.LoadGateway(context.Background())
	require.NoError(t, err)

	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	r := chi.NewRouter()
	r.Use(session.Middleware(testManager(), session.CookieConfig{}))
	r.Use(ContractValidator(doc, zaptest.NewLogger(t)))
	r.Post("/api/v1/auth/login", ok)
	r.Put("/api/v1/tenant/settings", ok)
	r.Get("/api/v1/signup/slug-check", ok)
	return r
}

func TestContractValidatorRejectsInvalidBody(t *testing.T) {
	h := newContractRouter(t)

	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/auth/login", strings.NewReader(`{"portal":"pilot","email":"a@b.co","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestContractValidatorAcceptsValidBody(t *testing.T) {
	h := newContractRouter(t)

	req := httptest.NewRequest(http.MethodPost, "http://acme.example.com/api/v1/auth/login", strings.NewReader(`{"portal":"rider","email":"a@b.co","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestContractValidatorMissingQuery(t *testing.T) {
	h := newContractRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/signup/slug-check", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContractValidatorSecuredOperation(t *testing.T) {
	h := newContractRouter(t)
	body := `{"theme":{"primaryColor":"#112233"}}`

	req := httptest.NewRequest(http.MethodPut, "/api/v1/tenant/settings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/tenant/settings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer rider-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
