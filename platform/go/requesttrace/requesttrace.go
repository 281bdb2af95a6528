package requesttrace

import (
	"context"
	"errors"

	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
)

type contextKey string

const (
	ctxAuditInfo contextKey = "MAISON_REQUEST_TRACE"
)

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// AuditInfo captures request-scoped metadata for traceability.
// UserID and Role are set only when ActorKind is user. TenantSlug is the resolved tenant, if any.
type AuditInfo struct {
	ActorKind  ActorKind
	UserID     *string
	Role       session.Role
	TenantSlug *string
	RequestID  string
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	v := ctx.Value(ctxAuditInfo)
	if v == nil {
		return AuditInfo{}, false
	}

	audit, ok := v.(AuditInfo)
	return audit, ok
}

// FromContextOrAnonymous returns the AuditInfo stored on the context, or an anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return Anonymous("")
}

// FromSession builds an AuditInfo for an authenticated session.
// Returns an error when the session is not authenticated or has no subject.
func FromSession(s session.Session, res tenant.Resolution, requestID string) (AuditInfo, error) {
	if !s.IsAuthenticated() {
		return AuditInfo{}, errors.New("authenticated session is required to build audit info")
	}
	if s.Subject == "" {
		return AuditInfo{}, errors.New("subject is required to build audit info")
	}

	subject := s.Subject
	return AuditInfo{
		ActorKind:  ActorKindUser,
		UserID:     &subject,
		Role:       s.Role,
		TenantSlug: tenantSlug(res),
		RequestID:  requestID,
	}, nil
}

// Anonymous builds an AuditInfo for unauthenticated requests (e.g., signup, portal logins).
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds an AuditInfo for background operations such as cache prefetches.
func System(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}

func tenantSlug(res tenant.Resolution) *string {
	if !res.IsTenant() {
		return nil
	}
	slug := res.Identifier
	return &slug
}
