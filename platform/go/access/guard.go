package access

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	platformlogging "github.com/maison-mobility/maison-gate/platform/go/logging"
	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
	"github.com/maison-mobility/maison-gate/platform/go/tenantinfo"
)

type ctxKey string

const tenantKey ctxKey = "MAISON_TENANT_INFO"

// WithTenant stores the confirmed tenant record on the context.
func WithTenant(ctx context.Context, info tenantinfo.Info) context.Context {
	return context.WithValue(ctx, tenantKey, info)
}

// TenantFromContext returns the tenant record confirmed by a TenantScoped guard.
func TenantFromContext(ctx context.Context) (tenantinfo.Info, bool) {
	info, ok := ctx.Value(tenantKey).(tenantinfo.Info)
	return info, ok
}

// Guard turns Requirements into chi middlewares. Protected handlers only run on Allow; every
// other outcome, lookup failures included, is rendered as a redirect or a fallback view.
type Guard struct {
	tenants  tenantinfo.Getter
	wait     time.Duration
	renderer Renderer
}

// NewGuard constructs a Guard. wait bounds how long tenant confirmation may block a request
// before the loading view is shown.
func NewGuard(tenants tenantinfo.Getter, wait time.Duration, renderer Renderer) *Guard {
	if tenants == nil {
		panic("access guard: tenant getter is required")
	}
	if wait <= 0 {
		wait = 2 * time.Second
	}
	if renderer == nil {
		renderer = JSONRenderer{}
	}
	return &Guard{tenants: tenants, wait: wait, renderer: renderer}
}

// Require gates next on req.
func (g *Guard) Require(req Requirements) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, tc := g.Evaluate(r, req)

			if decision.Kind != KindAllow {
				logger := platformlogging.FromRequest(r, nil)
				logger.Debug("access denied",
					zap.String("decision", string(decision.Kind)),
					zap.String("view", string(decision.View)),
					zap.String("location", decision.Location),
				)
				g.renderer.Render(w, r, decision, tc)
				return
			}

			ctx := r.Context()
			if req.TenantScoped {
				ctx = WithTenant(ctx, tc.Tenant.Info)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles gates on an authenticated session holding one of roles.
func (g *Guard) RequireRoles(roles ...session.Role) func(http.Handler) http.Handler {
	return g.Require(Requirements{AllowRoles: roles})
}

// MainDomainOnly blocks tenant-portal requests.
func (g *Guard) MainDomainOnly() func(http.Handler) http.Handler {
	return g.Require(Requirements{MainDomainOnly: true})
}

// TenantScoped requires an existing, active tenant for the resolved identifier.
func (g *Guard) TenantScoped() func(http.Handler) http.Handler {
	return g.Require(Requirements{TenantScoped: true})
}

// Evaluate gathers the request's session and tenant context and decides.
func (g *Guard) Evaluate(r *http.Request, req Requirements) (Decision, TenantContext) {
	ctx := r.Context()
	tc := TenantContext{Resolution: tenant.FromContextOrMain(ctx)}

	if req.TenantScoped && tc.Resolution.IsTenant() && !req.MainDomainOnly {
		tc.Tenant = g.confirmTenant(ctx, tc.Resolution.Identifier)
	}

	requested, ok := tenant.OriginalPath(ctx)
	if !ok {
		requested = r.URL.RequestURI()
	}

	return Decide(session.Current(ctx), tc, req, requested), tc
}

func (g *Guard) confirmTenant(ctx context.Context, identifier string) tenantinfo.Snapshot {
	if info, ok := TenantFromContext(ctx); ok && info.Slug == identifier {
		return tenantinfo.Snapshot{Identifier: identifier, State: tenantinfo.StateReady, Info: info}
	}

	view := tenantinfo.NewView(g.tenants)
	view.Set(ctx, identifier)

	waitCtx, cancel := context.WithTimeout(ctx, g.wait)
	defer cancel()

	snap, err := view.Await(waitCtx)
	if err != nil {
		platformlogging.FromContextOr(ctx, nil).Warn("tenant confirmation still in flight",
			zap.String("tenant", identifier), zap.Duration("wait", g.wait))
	} else if snap.Err != nil {
		platformlogging.FromContextOr(ctx, nil).Info("tenant not confirmed",
			zap.String("tenant", identifier), zap.Error(snap.Err))
	}
	return snap
}
