package tenant

import (
	"net"
	"net/http"
	"strings"
)

// Precedence decides which strategy wins when both a subdomain and a path slug could match.
type Precedence string

const (
	SubdomainFirst Precedence = "subdomain-first"
	PathFirst      Precedence = "path-first"
)

// DefaultReservedLabels are host labels that never name a tenant.
var DefaultReservedLabels = []string{"www", "api", "app", "admin", "static", "cdn", "mail"}

// DefaultReservedRoutes are first path segments owned by the platform itself.
var DefaultReservedRoutes = []string{
	"about", "admin", "api", "assets", "docs", "driver", "drivers", "favicon.ico",
	"healthz", "login", "logout", "pricing", "readyz", "rider", "riders", "signup",
	"static", "tenant",
}

// Policy configures tenant resolution. Reserved words are policy, not inferred intent.
type Policy struct {
	// BaseDomains are the registrable domains the platform is served from (e.g. "maison.app").
	// When empty the last two host labels are treated as the registrable domain.
	BaseDomains    []string
	ReservedLabels []string
	ReservedRoutes []string
	Precedence     Precedence
}

// DefaultPolicy returns a Policy with the default reserved word lists.
func DefaultPolicy(baseDomains ...string) Policy {
	return Policy{
		BaseDomains:    baseDomains,
		ReservedLabels: DefaultReservedLabels,
		ReservedRoutes: DefaultReservedRoutes,
		Precedence:     SubdomainFirst,
	}
}

// Resolver derives the tenant Resolution from a host and path. It performs no I/O.
type Resolver struct {
	baseDomains    []string
	reservedLabels map[string]struct{}
	reservedRoutes map[string]struct{}
	precedence     Precedence
}

// NewResolver builds a Resolver from the given Policy.
func NewResolver(policy Policy) *Resolver {
	r := &Resolver{
		reservedLabels: toSet(policy.ReservedLabels),
		reservedRoutes: toSet(policy.ReservedRoutes),
		precedence:     policy.Precedence,
	}
	for _, d := range policy.BaseDomains {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			r.baseDomains = append(r.baseDomains, d)
		}
	}
	if r.precedence == "" {
		r.precedence = SubdomainFirst
	}
	return r
}

// Resolve returns the tenant context for host and path.
func (r *Resolver) Resolve(host, path string) Resolution {
	if r.precedence == PathFirst {
		if id, ok := r.fromPath(path); ok {
			return Resolution{Mode: ModeTenant, Identifier: id, Via: ViaPath}
		}
		if id, ok := r.fromHost(host); ok {
			return Resolution{Mode: ModeTenant, Identifier: id, Via: ViaSubdomain}
		}
		return Main()
	}

	if id, ok := r.fromHost(host); ok {
		return Resolution{Mode: ModeTenant, Identifier: id, Via: ViaSubdomain}
	}
	if id, ok := r.fromPath(path); ok {
		return Resolution{Mode: ModeTenant, Identifier: id, Via: ViaPath}
	}
	return Main()
}

// ResolveRequest resolves the tenant context of an incoming HTTP request.
func (r *Resolver) ResolveRequest(req *http.Request) Resolution {
	return r.Resolve(req.Host, req.URL.Path)
}

// IsReservedRoute reports whether segment is owned by the platform.
func (r *Resolver) IsReservedRoute(segment string) bool {
	_, ok := r.reservedRoutes[strings.ToLower(segment)]
	return ok
}

// IsReservedLabel reports whether label can never be a tenant subdomain.
func (r *Resolver) IsReservedLabel(label string) bool {
	_, ok := r.reservedLabels[strings.ToLower(label)]
	return ok
}

func (r *Resolver) fromHost(host string) (string, bool) {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || net.ParseIP(strings.Trim(host, "[]")) != nil {
		return "", false
	}

	prefix, ok := r.subdomainPrefix(host)
	if !ok || prefix == "" || strings.Contains(prefix, ".") {
		return "", false
	}
	if _, reserved := r.reservedLabels[prefix]; reserved {
		return "", false
	}
	if !IsSlug(prefix) {
		return "", false
	}
	return prefix, true
}

// subdomainPrefix strips the registrable domain from host.
func (r *Resolver) subdomainPrefix(host string) (string, bool) {
	if len(r.baseDomains) > 0 {
		for _, base := range r.baseDomains {
			if host == base {
				return "", true
			}
			if strings.HasSuffix(host, "."+base) {
				return strings.TrimSuffix(host, "."+base), true
			}
		}
		return "", false
	}

	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return "", true
	}
	return strings.Join(labels[:len(labels)-2], "."), true
}

func (r *Resolver) fromPath(path string) (string, bool) {
	segment := firstSegment(path)
	if segment == "" || !IsSlug(segment) {
		return "", false
	}
	if _, reserved := r.reservedRoutes[segment]; reserved {
		return "", false
	}
	return segment, true
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}

// StripPortalPrefix removes a leading `/{identifier}` segment from path, if present.
func StripPortalPrefix(path, identifier string) (string, bool) {
	if identifier == "" || firstSegment(path) != identifier {
		return path, false
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(path, "/"), identifier)
	if rest == "" {
		rest = "/"
	}
	return rest, true
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
