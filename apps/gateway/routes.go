package main

import (
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authhandler "github.com/maison-mobility/maison-gate/domains/auth/be/handler"
	tenantshandler "github.com/maison-mobility/maison-gate/domains/tenants/be/handler"
	"github.com/maison-mobility/maison-gate/platform/go/access"
	platformlogging "github.com/maison-mobility/maison-gate/platform/go/logging"
	platformmiddleware "github.com/maison-mobility/maison-gate/platform/go/middleware"
	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
	tenantmiddleware "github.com/maison-mobility/maison-gate/platform/go/tenant/middleware"
)

// assetsPrefix is where locally stored tenant assets are served.
const assetsPrefix = "/assets"

// gateway holds everything the router composes.
type gateway struct {
	logger         *zap.Logger
	resolver       *tenant.Resolver
	sessions       *session.Manager
	cookie         session.CookieConfig
	guard          *access.Guard
	contract       *openapi3.T
	limiter        *platformmiddleware.RateLimiter
	cors           platformmiddleware.CORSConfig
	requestTimeout time.Duration
	assetsDir      string

	auth    *authhandler.Handler
	tenants *tenantshandler.Handler
}

// routes builds the page tree and the JSON API.
//
// Tenant resolution runs before routing so `/{slug}/...` and subdomain portals share one tree.
// Sessions are restored before any guard evaluates.
func (g *gateway) routes() http.Handler {
	timeout := g.requestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	rootRouter := chi.NewRouter()
	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(timeout),
		platformmiddleware.CORS(g.cors),
	)
	rootRouter.Use(platformlogging.RequestLogger(g.logger))
	rootRouter.Use(tenantmiddleware.WithResolution(g.resolver))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	registerDocsRoutes(rootRouter, g.contract, g.logger)
	if g.assetsDir != "" {
		rootRouter.Handle(assetsPrefix+"/*", http.StripPrefix(assetsPrefix, http.FileServer(http.Dir(g.assetsDir))))
	}

	rootRouter.NotFound(notFoundPage)

	rootRouter.Group(func(r chi.Router) {
		r.Use(session.Middleware(g.sessions, g.cookie))
		r.Use(platformmiddleware.RequestTrace)

		r.Route("/api/v1", g.apiRoutes)
		g.pageRoutes(r)
	})

	return rootRouter
}

func (g *gateway) apiRoutes(r chi.Router) {
	r.Use(platformmiddleware.ContractValidator(g.contract, g.logger))

	r.With(g.limiter.Middleware).Post("/auth/login", g.auth.Login)
	r.Post("/auth/logout", g.auth.Logout)
	r.Get("/auth/session", g.auth.Session)

	r.With(g.limiter.Middleware).Post("/signup", g.auth.Signup)
	r.Get("/signup/slug-check", g.tenants.CheckSlug)

	r.Get("/tenant-context", g.tenants.TenantContext)
	r.Put("/tenant/settings", g.tenants.UpdateSettings)
	r.Put("/tenant/logo", g.tenants.UploadLogo)
}

func (g *gateway) pageRoutes(r chi.Router) {
	mainOnly := g.guard.MainDomainOnly()
	tenantScoped := g.guard.TenantScoped()

	// Paths served on both the main domain and tenant portals.
	r.Get("/", byMode(page("landing"), tenantScoped(page("portal_home"))))
	r.Get("/riders/login", byMode(page("rider_login"), tenantScoped(page("rider_login"))))
	r.Get("/drivers/login", byMode(page("driver_login"), tenantScoped(page("driver_login"))))

	// Main domain.
	r.With(mainOnly).Get("/signup", page("signup"))
	r.With(mainOnly).Get("/login", page("login"))
	r.With(mainOnly).Get("/riders", page("rider_entry"))
	r.With(mainOnly).Get("/drivers", page("driver_entry"))

	tenantArea := g.guard.Require(access.Requirements{
		AllowRoles:     []session.Role{session.RoleTenant},
		MainDomainOnly: true,
	})
	r.With(tenantArea).Get("/tenant", pathPage)
	r.With(tenantArea).Get("/tenant/*", pathPage)

	adminArea := g.guard.Require(access.Requirements{
		AllowRoles:     []session.Role{session.RoleAdmin},
		MainDomainOnly: true,
		LoginPortal:    session.RoleTenant,
	})
	r.With(adminArea).Get("/admin", pathPage)
	r.With(adminArea).Get("/admin/*", pathPage)

	// Tenant portals.
	riderArea := g.guard.Require(access.Requirements{
		AllowRoles:   []session.Role{session.RoleRider},
		TenantScoped: true,
	})
	r.With(riderArea).Get("/rider", pathPage)
	r.With(riderArea).Get("/rider/*", pathPage)

	driverArea := g.guard.Require(access.Requirements{
		AllowRoles:   []session.Role{session.RoleDriver},
		TenantScoped: true,
	})
	r.With(driverArea).Get("/driver", pathPage)
	r.With(driverArea).Get("/driver/*", pathPage)
}

// byMode dispatches on whether the request resolved to a tenant portal.
func byMode(onMain, onTenant http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tenant.FromContextOrMain(r.Context()).IsTenant() {
			onTenant.ServeHTTP(w, r)
			return
		}
		onMain.ServeHTTP(w, r)
	}
}
