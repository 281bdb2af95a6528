package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/maison-mobility/maison-gate/platform/go/access"
	"github.com/maison-mobility/maison-gate/platform/go/backend"
	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
)

// Errors returned by the service layer.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWrongPortal        = errors.New("account cannot sign in through this portal")
	ErrTenantRequired     = errors.New("tenant is required for this portal")
	ErrSlugTaken          = errors.New("slug already taken")
	ErrInvalidSignup      = errors.New("invalid signup")
)

// Backend is the part of the REST backend the auth flows call.
type Backend interface {
	Login(ctx context.Context, portal string, req backend.LoginRequest) (backend.LoginResponse, error)
	RegisterTenant(ctx context.Context, req backend.RegisterTenantRequest) (backend.RegisterTenantResponse, error)
}

// LoginInput is a portal login form. Tenant is only read on the main domain; on a tenant portal
// the resolved identifier wins.
type LoginInput struct {
	Portal   session.Role `json:"portal"`
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Tenant   string       `json:"tenant,omitempty"`
	Redirect string       `json:"redirect,omitempty"`
}

// SignupInput is the tenant registration form. An empty Slug is derived from CompanyName.
type SignupInput struct {
	CompanyName string `json:"companyName"`
	Slug        string `json:"slug,omitempty"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	ContactName string `json:"contactName,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// Result is the session after a successful flow and where the browser goes next.
type Result struct {
	Session  session.Session `json:"-"`
	Redirect string          `json:"redirect"`
}

// Service runs login, logout and signup against a session Store.
type Service struct {
	backend  Backend
	reserved func(string) bool
}

// New constructs a Service. reserved reports slugs owned by the platform and may be nil.
func New(b Backend, reserved func(string) bool) *Service {
	if b == nil {
		panic("auth backend is required")
	}
	if reserved == nil {
		reserved = func(string) bool { return false }
	}
	return &Service{backend: b, reserved: reserved}
}

// Login authenticates against the backend and stores the token in store.
//
// Tenant and admin portals live on the main domain; driver and rider portals need a tenant,
// resolved from the request or given in the form. A token whose role or tenant does not match
// the portal is rejected and the session already in store is kept.
func (s *Service) Login(ctx context.Context, store *session.Store, res tenant.Resolution, in LoginInput) (Result, error) {
	portal, err := session.ParseRole(string(in.Portal))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrWrongPortal, err)
	}

	slug := ""
	if portal.IsTenantPortal() {
		slug, err = s.loginTenant(res, in.Tenant)
		if err != nil {
			return Result{}, err
		}
	} else if res.IsTenant() {
		return Result{}, ErrWrongPortal
	}

	resp, err := s.backend.Login(ctx, string(portal), backend.LoginRequest{
		Email:    strings.TrimSpace(in.Email),
		Password: in.Password,
		Tenant:   slug,
	})
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) || errors.Is(err, backend.ErrNotFound) {
			return Result{}, ErrInvalidCredentials
		}
		return Result{}, fmt.Errorf("backend login: %w", err)
	}

	var role session.Role
	if resp.Role != "" {
		if role, err = session.ParseRole(resp.Role); err != nil {
			return Result{}, fmt.Errorf("%w: %w", session.ErrInvalidRole, err)
		}
	}

	current, err := store.Login(ctx, resp.AccessToken, role, func(next session.Session) error {
		if !portalAccepts(portal, next.Role) || (slug != "" && next.TenantSlug != "" && next.TenantSlug != slug) {
			return ErrWrongPortal
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if current.TenantSlug == "" {
		current.TenantSlug = slug
	}

	return Result{Session: current, Redirect: afterLogin(current, res, in.Redirect)}, nil
}

// Logout clears the session and returns the login page matching the portal the user was in.
func (s *Service) Logout(ctx context.Context, store *session.Store, res tenant.Resolution) (Result, error) {
	previous := store.State()
	err := store.Logout(ctx)

	redirect := "/"
	switch {
	case res.IsTenant() && previous.Role.IsTenantPortal():
		redirect = access.LoginPath(res, previous.Role)
	case res.IsTenant() && res.Via == tenant.ViaPath:
		redirect = res.PortalPrefix()
	}
	return Result{Redirect: redirect}, err
}

// Signup registers a tenant and logs its owner in. The owner lands on the tenant dashboard.
func (s *Service) Signup(ctx context.Context, store *session.Store, res tenant.Resolution, in SignupInput) (Result, error) {
	if res.IsTenant() {
		return Result{}, ErrWrongPortal
	}

	name := strings.TrimSpace(in.CompanyName)
	if name == "" {
		return Result{}, fmt.Errorf("%w: company name is required", ErrInvalidSignup)
	}

	slug := tenant.SlugFrom(name)
	if strings.TrimSpace(in.Slug) != "" {
		normalized, err := tenant.NormalizeSlug(in.Slug)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrInvalidSignup, err)
		}
		slug = normalized
	}
	if slug == "" {
		return Result{}, fmt.Errorf("%w: cannot derive a slug from %q", ErrInvalidSignup, name)
	}
	if s.reserved(slug) {
		return Result{}, ErrSlugTaken
	}

	resp, err := s.backend.RegisterTenant(ctx, backend.RegisterTenantRequest{
		CompanyName: name,
		Slug:        slug,
		Email:       strings.TrimSpace(in.Email),
		Password:    in.Password,
		ContactName: strings.TrimSpace(in.ContactName),
		Phone:       strings.TrimSpace(in.Phone),
	})
	if err != nil {
		if errors.Is(err, backend.ErrConflict) {
			return Result{}, ErrSlugTaken
		}
		return Result{}, fmt.Errorf("backend register tenant: %w", err)
	}

	current, err := store.Login(ctx, resp.AccessToken, session.RoleTenant)
	if err != nil {
		return Result{}, err
	}
	return Result{Session: current, Redirect: access.DefaultLanding(current, res)}, nil
}

func (s *Service) loginTenant(res tenant.Resolution, fromForm string) (string, error) {
	if res.IsTenant() {
		return res.Identifier, nil
	}
	if strings.TrimSpace(fromForm) == "" {
		return "", ErrTenantRequired
	}
	slug, err := tenant.NormalizeSlug(fromForm)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTenantRequired, err)
	}
	return slug, nil
}

// portalAccepts reports whether a session with role may use portal. Admins sign in through the
// tenant login page.
func portalAccepts(portal, role session.Role) bool {
	if portal == role {
		return true
	}
	return portal == session.RoleTenant && role == session.RoleAdmin
}

// afterLogin honours a same-site relative redirect and falls back to the role's landing.
func afterLogin(s session.Session, res tenant.Resolution, requested string) string {
	if safe, ok := localPath(requested); ok {
		return safe
	}
	return access.DefaultLanding(s, res)
}

func localPath(raw string) (string, bool) {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "", false
	}
	return u.RequestURI(), true
}
