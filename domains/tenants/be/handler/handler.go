package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/maison-mobility/maison-gate/domains/tenants/be/service"
	"github.com/maison-mobility/maison-gate/platform/go/debounce"
	platformlogging "github.com/maison-mobility/maison-gate/platform/go/logging"
	"github.com/maison-mobility/maison-gate/platform/go/problem"
	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
	"github.com/maison-mobility/maison-gate/platform/go/tenantinfo"
)

// Handler exposes the tenants service over the JSON API.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// TenantContext implements GET /tenant-context.
func (h *Handler) TenantContext(w http.ResponseWriter, r *http.Request) {
	res := tenant.FromContextOrMain(r.Context())

	out, err := h.svc.Context(r.Context(), res)
	switch {
	case errors.Is(err, service.ErrNoTenant):
		problem.Write(w, problem.New(http.StatusNotFound, "Not found", "no tenant on this address", problem.TypeNotFound))
		return
	case err != nil:
		h.internal(w, r, "load tenant context", err)
		return
	}

	switch out.State {
	case tenantinfo.StateLoading:
		w.Header().Set("Retry-After", "1")
		problem.Write(w, problem.New(http.StatusServiceUnavailable, "Tenant loading", "tenant lookup still in flight", problem.TypeUpstream))
	case tenantinfo.StateNotFound:
		problem.Write(w, problem.New(http.StatusNotFound, "Not found", "tenant not found", problem.TypeNotFound))
	default:
		problem.WriteJSON(w, http.StatusOK, out)
	}
}

// UpdateSettings implements PUT /tenant/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in service.SettingsInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.BadRequest(w, "request body must be a JSON object", nil)
		return
	}

	info, err := h.svc.UpdateSettings(r.Context(), session.Current(r.Context()), in)
	switch {
	case err == nil:
		problem.WriteJSON(w, http.StatusOK, info)
	case errors.Is(err, service.ErrForbidden):
		problem.Write(w, problem.New(http.StatusForbidden, "Forbidden", err.Error(), problem.TypeForbidden))
	case errors.Is(err, service.ErrInvalidTheme):
		problem.BadRequest(w, "theme does not match the theme schema", map[string][]string{"theme": {err.Error()}})
	case errors.Is(err, service.ErrEmptyUpdate):
		problem.BadRequest(w, err.Error(), nil)
	case errors.Is(err, tenantinfo.ErrNotFound):
		problem.Write(w, problem.New(http.StatusNotFound, "Not found", "tenant not found", problem.TypeNotFound))
	default:
		if info.Slug != "" {
			// Saved upstream; only cache invalidation failed.
			platformlogging.FromRequest(r, h.logger).Warn("tenant settings saved but invalidation failed", zap.Error(err))
			problem.WriteJSON(w, http.StatusOK, info)
			return
		}
		h.internal(w, r, "update tenant settings", err)
	}
}

// MaxLogoBytes caps PUT /tenant/logo bodies.
const MaxLogoBytes = 1 << 20

// UploadLogo implements PUT /tenant/logo.
func (h *Handler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxLogoBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			problem.Write(w, problem.New(http.StatusRequestEntityTooLarge, "Payload too large", "logo must be at most 1 MiB", problem.TypeValidation))
			return
		}
		problem.BadRequest(w, "could not read request body", nil)
		return
	}
	if len(body) == 0 {
		problem.BadRequest(w, "logo body is empty", nil)
		return
	}

	info, err := h.svc.UploadLogo(r.Context(), session.Current(r.Context()), body)
	switch {
	case err == nil:
		problem.WriteJSON(w, http.StatusOK, info)
	case errors.Is(err, service.ErrUploadsDisabled):
		problem.Write(w, problem.New(http.StatusNotImplemented, "Not implemented", err.Error(), problem.TypeInternal))
	case errors.Is(err, service.ErrUnsupportedLogo):
		problem.Write(w, problem.New(http.StatusUnsupportedMediaType, "Unsupported media type", "logo must be a PNG, JPEG, WebP or GIF image", problem.TypeValidation))
	case errors.Is(err, service.ErrForbidden):
		problem.Write(w, problem.New(http.StatusForbidden, "Forbidden", err.Error(), problem.TypeForbidden))
	case errors.Is(err, tenantinfo.ErrNotFound):
		problem.Write(w, problem.New(http.StatusNotFound, "Not found", "tenant not found", problem.TypeNotFound))
	default:
		if info.Slug != "" {
			platformlogging.FromRequest(r, h.logger).Warn("tenant logo saved but invalidation failed", zap.Error(err))
			problem.WriteJSON(w, http.StatusOK, info)
			return
		}
		h.internal(w, r, "upload tenant logo", err)
	}
}

// CheckSlug implements GET /signup/slug-check.
func (h *Handler) CheckSlug(w http.ResponseWriter, r *http.Request) {
	key := r.RemoteAddr
	if store, ok := session.FromContext(r.Context()); ok && store.ID() != "" {
		key = store.ID()
	}

	check, err := h.svc.CheckSlug(r.Context(), key, r.URL.Query().Get("slug"))
	switch {
	case err == nil:
		problem.WriteJSON(w, http.StatusOK, check)
	case errors.Is(err, tenant.ErrInvalidSlug):
		problem.BadRequest(w, err.Error(), map[string][]string{"slug": {"cannot derive a slug"}})
	case errors.Is(err, debounce.ErrSuperseded):
		// A newer check from the same session owns the answer.
		w.WriteHeader(http.StatusNoContent)
	default:
		h.internal(w, r, "check slug", err)
	}
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	platformlogging.FromRequest(r, h.logger).Error(msg, zap.Error(err))
	problem.Internal(w)
}
