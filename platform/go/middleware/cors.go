package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// CORSConfig lists the domains whose origins (the base domain and any subdomain) may call the
// gateway with credentials. AllowInsecure also accepts plain http origins for local development.
type CORSConfig struct {
	BaseDomains   []string
	AllowInsecure bool
}

// CORS reflects allowed origins so the browser shell on tenant subdomains can send the session cookie.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	bases := make([]string, 0, len(cfg.BaseDomains))
	for _, d := range cfg.BaseDomains {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			bases = append(bases, d)
		}
	}

	allowed := func(origin string) bool {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		if u.Scheme != "https" && !(cfg.AllowInsecure && u.Scheme == "http") {
			return false
		}
		host := strings.ToLower(u.Hostname())
		for _, base := range bases {
			if host == base || strings.HasSuffix(host, "."+base) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			if allowed(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-Request-Id")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Max-Age", "300")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
