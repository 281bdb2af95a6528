package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/maison-mobility/maison-gate/domains/auth/be/service"
	"github.com/maison-mobility/maison-gate/platform/go/auth"
	platformlogging "github.com/maison-mobility/maison-gate/platform/go/logging"
	"github.com/maison-mobility/maison-gate/platform/go/problem"
	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
)

// Handler exposes login, logout, session and signup over the JSON API.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("auth service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

type redirectResponse struct {
	Redirect string `json:"redirect"`
}

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	Role          session.Role `json:"role,omitempty"`
	Subject       string       `json:"subject,omitempty"`
	TenantSlug    string       `json:"tenantSlug,omitempty"`
	ExpiresAt     *time.Time   `json:"expiresAt,omitempty"`
}

// Login implements POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var in service.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.BadRequest(w, "request body must be a JSON object", nil)
		return
	}

	out, err := h.svc.Login(r.Context(), store, tenant.FromContextOrMain(r.Context()), in)
	if err != nil {
		h.writeError(w, r, "login", err)
		return
	}
	problem.WriteJSON(w, http.StatusOK, redirectResponse{Redirect: out.Redirect})
}

// Logout implements POST /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	out, err := h.svc.Logout(r.Context(), store, tenant.FromContextOrMain(r.Context()))
	if err != nil {
		// The in-memory session is already cleared.
		platformlogging.FromRequest(r, h.logger).Warn("persist logout failed", zap.Error(err))
	}
	problem.WriteJSON(w, http.StatusOK, redirectResponse{Redirect: out.Redirect})
}

// Session implements GET /auth/session. The access token is never returned.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	current := session.Current(r.Context())
	if !current.IsAuthenticated() {
		problem.WriteJSON(w, http.StatusOK, sessionResponse{})
		return
	}

	out := sessionResponse{
		Authenticated: true,
		Role:          current.Role,
		Subject:       current.Subject,
		TenantSlug:    current.TenantSlug,
	}
	if !current.ExpiresAt.IsZero() {
		expires := current.ExpiresAt
		out.ExpiresAt = &expires
	}
	problem.WriteJSON(w, http.StatusOK, out)
}

// Signup implements POST /signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var in service.SignupInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.BadRequest(w, "request body must be a JSON object", nil)
		return
	}

	out, err := h.svc.Signup(r.Context(), store, tenant.FromContextOrMain(r.Context()), in)
	if err != nil {
		h.writeError(w, r, "signup", err)
		return
	}
	problem.WriteJSON(w, http.StatusCreated, redirectResponse{Redirect: out.Redirect})
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*session.Store, bool) {
	store, ok := session.FromContext(r.Context())
	if !ok {
		platformlogging.FromRequest(r, h.logger).Error("session store missing from request context")
		problem.Internal(w)
		return nil, false
	}
	return store, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, session.ErrExpired), errors.Is(err, session.ErrInvalidRole):
		problem.Unauthorized(w, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrWrongPortal):
		problem.Write(w, problem.New(http.StatusForbidden, "Forbidden", err.Error(), problem.TypeForbidden))
	case errors.Is(err, service.ErrTenantRequired):
		problem.BadRequest(w, err.Error(), map[string][]string{"tenant": {"required"}})
	case errors.Is(err, service.ErrInvalidSignup):
		problem.BadRequest(w, err.Error(), nil)
	case errors.Is(err, service.ErrSlugTaken):
		problem.Write(w, problem.New(http.StatusConflict, "Conflict", err.Error(), problem.TypeConflict))
	default:
		platformlogging.FromRequest(r, h.logger).Error(op+" failed", zap.Error(err))
		problem.Write(w, problem.New(http.StatusBadGateway, "Upstream error", "backend unavailable", problem.TypeUpstream))
	}
}
