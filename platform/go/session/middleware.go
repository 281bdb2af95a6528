package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maison-mobility/maison-gate/platform/go/auth"
	platformlogging "github.com/maison-mobility/maison-gate/platform/go/logging"
	"github.com/maison-mobility/maison-gate/platform/go/problem"
)

// CookieName is the cookie carrying the browser session id.
const CookieName = "maison_session"

type ctxKey string

const storeKey ctxKey = "MAISON_SESSION_STORE"

// CookieConfig controls the session cookie. Domain should be the base domain prefixed with a dot
// so the session follows the user between the main domain and tenant subdomains.
type CookieConfig struct {
	Domain string
	Secure bool
	TTL    time.Duration
}

func (c CookieConfig) build(id string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(c.TTL / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// WithStore stores the session Store on the context.
func WithStore(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, storeKey, store)
}

// FromContext retrieves the session Store, if present.
func FromContext(ctx context.Context) (*Store, bool) {
	store, ok := ctx.Value(storeKey).(*Store)
	return store, ok && store != nil
}

// Current returns the session snapshot of the request, or an anonymous Session.
func Current(ctx context.Context) Session {
	if store, ok := FromContext(ctx); ok {
		return store.State()
	}
	return Session{}
}

// Middleware restores the caller's Store before any downstream handler or guard runs.
//
// A bearer Authorization header builds an ephemeral store from that token; an invalid token
// is rejected with 401. Otherwise the store is keyed by the session cookie, which is issued
// when absent and reissued with a new id on every login. Restore failures are logged and the request continues anonymously.
func Middleware(manager *Manager, cookie CookieConfig) func(http.Handler) http.Handler {
	if manager == nil {
		panic("session middleware: manager is required")
	}
	if cookie.TTL <= 0 {
		cookie.TTL = 30 * 24 * time.Hour
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := platformlogging.FromContextOr(ctx, nil)

			if token, ok := auth.ExtractBearerToken(r); ok {
				store := manager.Ephemeral()
				if _, err := store.Login(ctx, token, ""); err != nil {
					logger.Info("bearer token rejected", zap.Error(err))
					problem.Unauthorized(w, "invalid bearer token")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithStore(ctx, store)))
				return
			}

			id := ""
			if c, err := r.Cookie(CookieName); err == nil {
				if _, perr := uuid.Parse(c.Value); perr == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = NewID()
				http.SetCookie(w, cookie.build(id))
			}

			store, err := manager.Open(ctx, id)
			if err != nil {
				logger.Warn("restore session failed", zap.Error(err))
			}
			store.rotateOnLogin(func(rotated string) {
				http.SetCookie(w, cookie.build(rotated))
			})

			next.ServeHTTP(w, r.WithContext(WithStore(ctx, store)))
		})
	}
}
