package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/maison-mobility/maison-gate/contracts"
	"github.com/maison-mobility/maison-gate/platform/go/debounce"
	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/storage"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
	"github.com/maison-mobility/maison-gate/platform/go/tenantinfo"
)

// Errors returned by the service layer.
var (
	ErrNoTenant     = errors.New("no tenant in request context")
	ErrForbidden    = errors.New("not allowed to manage this tenant")
	ErrInvalidTheme = errors.New("invalid theme")
	ErrEmptyUpdate  = errors.New("no settings to update")

	ErrUploadsDisabled = errors.New("logo uploads are not configured")
	ErrUnsupportedLogo = errors.New("unsupported logo format")
)

var logoExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Tenants is the cached tenant lookup, normally a *tenantinfo.Cache.
type Tenants interface {
	Get(ctx context.Context, identifier string) (tenantinfo.Info, error)
	Invalidate(ctx context.Context, identifier string) error
}

// Directory answers slug availability questions.
type Directory interface {
	SlugTaken(ctx context.Context, slug string) (bool, error)
}

// SettingsWriter persists branding updates on behalf of the token's owner.
type SettingsWriter interface {
	UpdateSettings(ctx context.Context, token string, in SettingsInput) (tenantinfo.Info, error)
}

// SettingsInput is a partial branding update. Nil fields are left unchanged.
type SettingsInput struct {
	CompanyName *string         `json:"companyName,omitempty"`
	LogoURL     *string         `json:"logoUrl,omitempty"`
	Theme       json.RawMessage `json:"theme,omitempty"`
}

// ContextResult is the tenant context of one request as shown to the browser shell.
type ContextResult struct {
	Resolution tenant.Resolution `json:"resolution"`
	State      tenantinfo.State  `json:"state"`
	Tenant     *tenantinfo.Info  `json:"tenant,omitempty"`
}

// SlugCheck is the availability of a normalised slug.
type SlugCheck struct {
	Slug      string `json:"slug"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Config tunes the Service.
type Config struct {
	// Wait bounds how long Context waits for a tenant lookup before reporting loading.
	Wait time.Duration
	// Reserved reports slugs owned by the platform, such as reserved routes and host labels.
	Reserved func(slug string) bool
	// Assets stores uploaded logos. Uploads are disabled when nil.
	Assets storage.Store
}

// Service provides tenant context, branding settings and slug checks.
type Service struct {
	tenants   Tenants
	directory Directory
	settings  SettingsWriter
	theme     *jsonschema.Schema
	wait      time.Duration
	reserved  func(string) bool
	assets    storage.Store
	checks    *debounce.Latest[SlugCheck]
}

// New constructs a Service with required dependencies.
func New(tenants Tenants, directory Directory, settings SettingsWriter, cfg Config) (*Service, error) {
	if tenants == nil {
		return nil, errors.New("tenants lookup is required")
	}
	if directory == nil {
		return nil, errors.New("tenant directory is required")
	}
	if settings == nil {
		return nil, errors.New("settings writer is required")
	}

	theme, err := contracts.CompileTheme()
	if err != nil {
		return nil, err
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 2 * time.Second
	}
	if cfg.Reserved == nil {
		cfg.Reserved = func(string) bool { return false }
	}

	return &Service{
		tenants:   tenants,
		directory: directory,
		settings:  settings,
		theme:     theme,
		wait:      cfg.Wait,
		reserved:  cfg.Reserved,
		assets:    cfg.Assets,
		checks:    debounce.NewLatest[SlugCheck](),
	}, nil
}

// Context loads the tenant for res. Lookups still in flight after the configured wait report
// StateLoading; missing and inactive tenants report StateNotFound.
func (s *Service) Context(ctx context.Context, res tenant.Resolution) (ContextResult, error) {
	if !res.IsTenant() {
		return ContextResult{Resolution: res, State: tenantinfo.StateNotFound}, ErrNoTenant
	}

	view := tenantinfo.NewView(s.tenants)
	view.Set(ctx, res.Identifier)

	waitCtx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()

	snap, _ := view.Await(waitCtx)
	out := ContextResult{Resolution: res, State: snap.State}
	if snap.State == tenantinfo.StateReady {
		info := snap.Info
		out.Tenant = &info
	}
	return out, nil
}

// UpdateSettings validates and forwards a branding update for the tenant owning the session,
// then invalidates the cached record locally and on every other gateway instance.
func (s *Service) UpdateSettings(ctx context.Context, current session.Session, in SettingsInput) (tenantinfo.Info, error) {
	if !current.HasRole(session.RoleTenant) {
		return tenantinfo.Info{}, ErrForbidden
	}
	if in.CompanyName == nil && in.LogoURL == nil && len(in.Theme) == 0 {
		return tenantinfo.Info{}, ErrEmptyUpdate
	}
	if in.CompanyName != nil {
		name := strings.TrimSpace(*in.CompanyName)
		in.CompanyName = &name
	}
	if err := s.ValidateTheme(in.Theme); err != nil {
		return tenantinfo.Info{}, err
	}

	info, err := s.settings.UpdateSettings(ctx, current.AccessToken, in)
	if err != nil {
		return tenantinfo.Info{}, err
	}

	slug := info.Slug
	if slug == "" {
		slug = current.TenantSlug
	}
	if slug != "" {
		if err := s.tenants.Invalidate(ctx, slug); err != nil {
			return info, fmt.Errorf("invalidate tenant %q: %w", slug, err)
		}
	}
	return info, nil
}

// UploadLogo stores body under the session tenant's asset prefix and points the tenant logo at it.
func (s *Service) UploadLogo(ctx context.Context, current session.Session, body []byte) (tenantinfo.Info, error) {
	if s.assets == nil {
		return tenantinfo.Info{}, ErrUploadsDisabled
	}
	if !current.HasRole(session.RoleTenant) || current.TenantSlug == "" {
		return tenantinfo.Info{}, ErrForbidden
	}

	contentType := http.DetectContentType(body)
	ext, ok := logoExtensions[contentType]
	if !ok {
		return tenantinfo.Info{}, fmt.Errorf("%w: %s", ErrUnsupportedLogo, contentType)
	}

	key := "branding/logo-" + uuid.NewString() + ext
	url, err := s.assets.Put(ctx, current.TenantSlug, key, contentType, bytes.NewReader(body))
	if err != nil {
		return tenantinfo.Info{}, fmt.Errorf("store logo: %w", err)
	}

	return s.UpdateSettings(ctx, current, SettingsInput{LogoURL: &url})
}

// ValidateTheme checks a theme document against the theme schema. An empty theme is valid.
func (s *Service) ValidateTheme(theme json.RawMessage) error {
	if len(theme) == 0 {
		return nil
	}

	var document any
	if err := json.Unmarshal(theme, &document); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTheme, err)
	}
	if err := s.theme.Validate(document); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTheme, err)
	}
	return nil
}

// CheckSlug normalises raw (a typed slug or a company name) and reports whether it can be
// registered. Checks are latest-wins per key, normally the session id: a check superseded by
// a newer one for the same key returns debounce.ErrSuperseded.
func (s *Service) CheckSlug(ctx context.Context, key, raw string) (SlugCheck, error) {
	slug, err := tenant.NormalizeSlug(raw)
	if err != nil {
		slug = tenant.SlugFrom(raw)
	}
	if slug == "" {
		return SlugCheck{}, fmt.Errorf("%w: %q", tenant.ErrInvalidSlug, raw)
	}
	if s.reserved(slug) {
		return SlugCheck{Slug: slug, Available: false, Reason: "reserved"}, nil
	}

	return s.checks.Do(ctx, key, func(ctx context.Context) (SlugCheck, error) {
		taken, err := s.directory.SlugTaken(ctx, slug)
		if err != nil {
			return SlugCheck{}, err
		}
		check := SlugCheck{Slug: slug, Available: !taken}
		if taken {
			check.Reason = "taken"
		}
		return check, nil
	})
}
