package access

import (
	"net/http"
	"net/url"

	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
	"github.com/maison-mobility/maison-gate/platform/go/tenantinfo"
)

// Kind tags a Decision.
type Kind string

const (
	KindAllow    Kind = "allow"
	KindRedirect Kind = "redirect"
	KindShow     Kind = "show"
)

// View names a fallback page shown instead of the requested one.
type View string

const (
	// ViewBlocked is shown for main-domain pages requested through a tenant portal.
	ViewBlocked View = "blocked"
	// ViewNotFound is shown when the tenant is missing, inactive or could not be loaded.
	ViewNotFound View = "not_found"
	// ViewLoading is shown while the tenant record is still being confirmed.
	ViewLoading View = "loading"
)

// Decision is the outcome of an access check. Location is set for redirects, View for shows.
type Decision struct {
	Kind     Kind   `json:"kind"`
	Location string `json:"location,omitempty"`
	View     View   `json:"view,omitempty"`
	Status   int    `json:"status"`
}

func Allow() Decision {
	return Decision{Kind: KindAllow, Status: http.StatusOK}
}

func Redirect(location string) Decision {
	return Decision{Kind: KindRedirect, Location: location, Status: http.StatusFound}
}

func Show(view View) Decision {
	status := http.StatusNotFound
	if view == ViewLoading {
		status = http.StatusServiceUnavailable
	}
	return Decision{Kind: KindShow, View: view, Status: status}
}

// Requirements describes what a route needs before it may render.
type Requirements struct {
	// AllowRoles gates the route on an authenticated session with one of these roles. Empty means public.
	AllowRoles []session.Role
	// MainDomainOnly blocks the route when a tenant identifier resolved.
	MainDomainOnly bool
	// TenantScoped requires a resolved, existing and active tenant.
	TenantScoped bool
	// LoginPortal picks the login page for unauthenticated visitors. Empty derives it from AllowRoles.
	LoginPortal session.Role
}

// Merge combines requirements of nested guards.
func (r Requirements) Merge(other Requirements) Requirements {
	out := r
	if len(other.AllowRoles) > 0 {
		out.AllowRoles = other.AllowRoles
	}
	out.MainDomainOnly = r.MainDomainOnly || other.MainDomainOnly
	out.TenantScoped = r.TenantScoped || other.TenantScoped
	if other.LoginPortal != "" {
		out.LoginPortal = other.LoginPortal
	}
	return out
}

// TenantContext is what the decision knows about the tenant of the request.
// Tenant is only consulted for TenantScoped requirements.
type TenantContext struct {
	Resolution tenant.Resolution
	Tenant     tenantinfo.Snapshot
}

// Decide computes the access decision for a route. It performs no I/O and never fails.
//
// Checks run outermost first: main-domain restriction, tenant confirmation, then authentication
// and role.
func Decide(s session.Session, tc TenantContext, req Requirements, requestedPath string) Decision {
	res := tc.Resolution

	if req.MainDomainOnly && res.IsTenant() {
		return Show(ViewBlocked)
	}

	if req.TenantScoped {
		if !res.IsTenant() {
			return Show(ViewNotFound)
		}
		if tc.Tenant.Identifier != res.Identifier {
			return Show(ViewLoading)
		}
		switch tc.Tenant.State {
		case tenantinfo.StateLoading:
			return Show(ViewLoading)
		case tenantinfo.StateReady:
			if !tc.Tenant.Info.IsActive {
				return Show(ViewNotFound)
			}
		default:
			return Show(ViewNotFound)
		}
	}

	if len(req.AllowRoles) == 0 {
		return Allow()
	}

	if !s.IsAuthenticated() {
		return Redirect(LoginRedirect(res, loginPortal(req), requestedPath))
	}
	if !s.HasRole(req.AllowRoles...) {
		return Redirect(DefaultLanding(s, res))
	}

	// Driver and rider sessions belong to one tenant.
	if req.TenantScoped && s.Role.IsTenantPortal() && s.TenantSlug != "" && s.TenantSlug != res.Identifier {
		return Redirect(LoginRedirect(res, s.Role, requestedPath))
	}

	return Allow()
}

func loginPortal(req Requirements) session.Role {
	if req.LoginPortal != "" {
		return req.LoginPortal
	}
	if len(req.AllowRoles) == 1 {
		return req.AllowRoles[0]
	}
	for _, r := range req.AllowRoles {
		if r.IsTenantPortal() {
			return r
		}
	}
	return session.RoleTenant
}

// LoginPath returns the login page for portal in the given context. Path tenants keep their slug
// prefix; subdomain tenants do not need it.
func LoginPath(res tenant.Resolution, portal session.Role) string {
	prefix := ""
	if res.IsTenant() && res.Via == tenant.ViaPath {
		prefix = res.PortalPrefix()
	}

	switch portal {
	case session.RoleRider:
		return prefix + "/riders/login"
	case session.RoleDriver:
		return prefix + "/drivers/login"
	default:
		return "/login"
	}
}

// LoginRedirect returns the login page carrying the originally requested path.
func LoginRedirect(res tenant.Resolution, portal session.Role, requestedPath string) string {
	loginPath := LoginPath(res, portal)
	if requestedPath == "" {
		return loginPath
	}
	return loginPath + "?" + url.Values{"redirect": {requestedPath}}.Encode()
}

// DefaultLanding returns where a session lands after login or when denied a route.
// Driver and rider landings always carry the tenant slug, taken from the request's resolution or,
// on the main domain, from the session's tenant claim.
func DefaultLanding(s session.Session, res tenant.Resolution) string {
	switch s.Role {
	case session.RoleTenant:
		return "/tenant/overview"
	case session.RoleAdmin:
		return "/admin"
	case session.RoleDriver, session.RoleRider:
		slug := s.TenantSlug
		if res.IsTenant() {
			slug = res.Identifier
		}
		portal := string(s.Role)
		if slug == "" {
			return "/" + portal + "s"
		}
		return "/" + slug + "/" + portal + "/dashboard"
	default:
		return "/"
	}
}

// EntryLinks returns the driver and rider entry points offered on the blocked view.
func EntryLinks(res tenant.Resolution) map[string]string {
	return map[string]string{
		"driver": LoginPath(res, session.RoleDriver),
		"rider":  LoginPath(res, session.RoleRider),
	}
}
