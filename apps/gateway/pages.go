package main

import (
	"net/http"
	"strings"

	"github.com/maison-mobility/maison-gate/platform/go/access"
	"github.com/maison-mobility/maison-gate/platform/go/problem"
	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
	"github.com/maison-mobility/maison-gate/platform/go/tenantinfo"
)

// pageDescriptor is what the browser shell renders. The access token never leaves the gateway.
type pageDescriptor struct {
	View       string            `json:"view"`
	Resolution tenant.Resolution `json:"resolution"`
	Tenant     *tenantinfo.Info  `json:"tenant,omitempty"`
	Session    session.Session   `json:"session"`
}

func describe(r *http.Request, view string) pageDescriptor {
	ctx := r.Context()
	out := pageDescriptor{
		View:       view,
		Resolution: tenant.FromContextOrMain(ctx),
		Session:    session.Current(ctx).Public(),
	}
	if info, ok := access.TenantFromContext(ctx); ok {
		out.Tenant = &info
	}
	return out
}

func page(view string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		problem.WriteJSON(w, http.StatusOK, describe(r, view))
	}
}

// pathPage names the view after the route, e.g. "/rider/trips/42" renders "rider/trips/42".
func pathPage(w http.ResponseWriter, r *http.Request) {
	page(strings.Trim(r.URL.Path, "/"))(w, r)
}

func notFoundPage(w http.ResponseWriter, r *http.Request) {
	problem.WriteJSON(w, http.StatusNotFound, access.FallbackPage{
		View:   access.ViewNotFound,
		Status: http.StatusNotFound,
		Tenant: tenant.FromContextOrMain(r.Context()),
	})
}
