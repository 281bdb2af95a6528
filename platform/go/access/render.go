package access

import (
	"net/http"

	"github.com/maison-mobility/maison-gate/platform/go/problem"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
)

// Renderer writes a non-Allow Decision to the response.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, d Decision, tc TenantContext)
}

// FallbackPage is the body of a fallback view consumed by the browser shell.
type FallbackPage struct {
	View   View              `json:"view"`
	Status int               `json:"status"`
	Tenant tenant.Resolution `json:"tenant"`
	Links  map[string]string `json:"links,omitempty"`
}

// JSONRenderer issues HTTP redirects and renders fallback views as JSON.
type JSONRenderer struct{}

func (JSONRenderer) Render(w http.ResponseWriter, r *http.Request, d Decision, tc TenantContext) {
	switch d.Kind {
	case KindRedirect:
		http.Redirect(w, r, d.Location, d.Status)
	case KindShow:
		page := FallbackPage{View: d.View, Status: d.Status, Tenant: tc.Resolution}
		switch d.View {
		case ViewBlocked:
			page.Links = EntryLinks(tc.Resolution)
		case ViewLoading:
			w.Header().Set("Retry-After", "1")
		}
		w.Header().Set("Cache-Control", "no-store")
		problem.WriteJSON(w, d.Status, page)
	default:
		problem.Internal(w)
	}
}
