package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformlogging "github.com/maison-mobility/maison-gate/platform/go/logging"
	"github.com/maison-mobility/maison-gate/platform/go/requesttrace"
	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
)

// RequestTrace populates the context with request-scoped AuditInfo and enriches the request logger.
// It must run after the session and tenant resolution middlewares.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID, _ := ctx.Value(middleware.RequestIDKey).(string)
		res := tenant.FromContextOrMain(ctx)

		audit := requesttrace.Anonymous(requestID)
		if current := session.Current(ctx); current.IsAuthenticated() {
			var err error
			audit, err = requesttrace.FromSession(current, res, requestID)
			if err != nil {
				platformlogging.FromContextOr(ctx, nil).Warn("build audit info from session", zap.Error(err))
				audit = requesttrace.Anonymous(requestID)
			}
		}

		ctx = requesttrace.IntoContext(ctx, audit)
		if logger, ok := platformlogging.FromContext(ctx); ok {
			fields := []zap.Field{zap.String("actor_kind", string(audit.ActorKind))}
			if audit.UserID != nil && *audit.UserID != "" {
				fields = append(fields, zap.String("user_id", *audit.UserID), zap.String("role", string(audit.Role)))
			}
			ctx = platformlogging.WithLogger(ctx, logger.With(fields...))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
