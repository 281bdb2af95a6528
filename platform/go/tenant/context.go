package tenant

import "context"

// Mode tells whether a request arrived through the primary domain or a tenant portal.
type Mode string

const (
	ModeMain   Mode = "main"
	ModeTenant Mode = "tenant"
)

// Via records which part of the URL carried the tenant identifier.
type Via string

const (
	ViaSubdomain Via = "subdomain"
	ViaPath      Via = "path"
)

// Resolution captures the tenant routing context for a single request.
// It is recomputed on every request and never persisted.
type Resolution struct {
	Mode       Mode   `json:"mode"`
	Identifier string `json:"identifier,omitempty"`
	Via        Via    `json:"via,omitempty"`
}

// Main returns the primary-domain resolution.
func Main() Resolution {
	return Resolution{Mode: ModeMain}
}

// IsTenant reports whether a tenant identifier was resolved.
func (r Resolution) IsTenant() bool {
	return r.Mode == ModeTenant && r.Identifier != ""
}

// PortalPrefix returns the slug prefix used for tenant portal links (`/acme`), or "" on the main domain.
func (r Resolution) PortalPrefix() string {
	if !r.IsTenant() {
		return ""
	}
	return "/" + r.Identifier
}

type ctxKey string

const (
	resolutionKey   ctxKey = "MAISON_TENANT_RESOLUTION"
	originalPathKey ctxKey = "MAISON_ORIGINAL_PATH"
)

// WithResolution returns a derived context carrying the tenant Resolution.
func WithResolution(ctx context.Context, res Resolution) context.Context {
	return context.WithValue(ctx, resolutionKey, res)
}

// FromContext extracts the Resolution and a boolean indicating presence.
func FromContext(ctx context.Context) (Resolution, bool) {
	v := ctx.Value(resolutionKey)
	if v == nil {
		return Resolution{}, false
	}

	res, ok := v.(Resolution)
	return res, ok
}

// FromContextOrMain returns the stored Resolution, defaulting to the main domain.
func FromContextOrMain(ctx context.Context) Resolution {
	if res, ok := FromContext(ctx); ok {
		return res
	}
	return Main()
}

// WithOriginalPath stores the request URI as the browser sent it, before slug stripping.
func WithOriginalPath(ctx context.Context, uri string) context.Context {
	return context.WithValue(ctx, originalPathKey, uri)
}

// OriginalPath returns the URI stored by WithOriginalPath.
func OriginalPath(ctx context.Context) (string, bool) {
	uri, ok := ctx.Value(originalPathKey).(string)
	return uri, ok && uri != ""
}
