package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	platformlogging "github.com/maison-mobility/maison-gate/platform/go/logging"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
)

// Resolver defines the lookup capability required to populate a tenant Resolution.
type Resolver interface {
	ResolveRequest(r *http.Request) tenant.Resolution
}

// WithResolution resolves the tenant context of every request and attaches it to the context.
// For tenant requests a leading `/{identifier}` path segment is stripped so subdomain and
// path-slug portals are served by the same routes. The URI as sent is kept for redirects.
// Must run before routing.
func WithResolution(resolver Resolver) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("tenant middleware: resolver is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := resolver.ResolveRequest(r)

			ctx := tenant.WithResolution(r.Context(), res)
			ctx = tenant.WithOriginalPath(ctx, r.URL.RequestURI())

			if logger, ok := platformlogging.FromContext(ctx); ok {
				fields := []zap.Field{zap.String("tenant_mode", string(res.Mode))}
				if res.IsTenant() {
					fields = append(fields, zap.String("tenant", res.Identifier), zap.String("tenant_via", string(res.Via)))
				}
				ctx = platformlogging.WithLogger(ctx, logger.With(fields...))
			}

			if res.IsTenant() {
				if stripped, ok := tenant.StripPortalPrefix(r.URL.Path, res.Identifier); ok {
					r = r.Clone(ctx)
					r.URL.Path = stripped
					r.URL.RawPath = ""
					if rctx := chi.RouteContext(ctx); rctx != nil {
						rctx.RoutePath = stripped
					}
					next.ServeHTTP(w, r)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
