package auth

import "context"

// SecurityContext carries the identity, role and tenant scope of the caller
// for the duration of one request. It is immutable once built: every field is
// unexported and only readable through accessors. The auth middleware builds
// exactly one per request and tears it down on every exit path.
type SecurityContext struct {
	userID        uint
	role          Role
	merchantID    *uint
	outletID      *uint
	anonymous     bool
	correlationID string
}

// NewSecurityContext builds a context for an authenticated caller
func NewSecurityContext(userID uint, role Role, merchantID, outletID *uint, correlationID string) *SecurityContext {
	return &SecurityContext{
		userID:        userID,
		role:          role,
		merchantID:    cloneID(merchantID),
		outletID:      cloneID(outletID),
		correlationID: correlationID,
	}
}

// NewAnonymousContext builds a context for an unauthenticated caller
func NewAnonymousContext(correlationID string) *SecurityContext {
	return &SecurityContext{anonymous: true, correlationID: correlationID}
}

func cloneID(id *uint) *uint {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// UserID returns the authenticated user's id, zero for anonymous callers
func (s *SecurityContext) UserID() uint { return s.userID }

// Role returns the caller's role
func (s *SecurityContext) Role() Role { return s.role }

// Anonymous reports whether the caller is unauthenticated
func (s *SecurityContext) Anonymous() bool { return s.anonymous }

// CorrelationID returns the request correlation id
func (s *SecurityContext) CorrelationID() string { return s.correlationID }

// HasRole reports whether the caller holds at least the given role
func (s *SecurityContext) HasRole(min Role) bool {
	return !s.anonymous && s.role.AtLeast(min)
}

// HasGlobalAccess reports whether the caller bypasses tenant scoping
func (s *SecurityContext) HasGlobalAccess() bool {
	return !s.anonymous && s.role.Scope() == ScopeGlobal
}

// RequiresAudit reports whether accesses by this caller must be audit-logged
func (s *SecurityContext) RequiresAudit() bool {
	return s.HasGlobalAccess()
}

// EffectiveMerchantID returns the merchant the caller is confined to, or nil
// when no merchant filter applies (global access, or caller not merchant-scoped)
func (s *SecurityContext) EffectiveMerchantID() *uint {
	if s.anonymous || s.HasGlobalAccess() {
		return nil
	}
	return cloneID(s.merchantID)
}

// EffectiveOutletID returns the outlet the caller is confined to, or nil when
// no outlet filter applies
func (s *SecurityContext) EffectiveOutletID() *uint {
	if s.anonymous || s.HasGlobalAccess() {
		return nil
	}
	return cloneID(s.outletID)
}

type contextKey string

const securityContextKey contextKey = "security_context"

// WithContext returns a context carrying the security context
func WithContext(ctx context.Context, sctx *SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey, sctx)
}

// FromContext retrieves the security context. The second return is false when
// no context was installed, which callers must treat as anonymous.
func FromContext(ctx context.Context) (*SecurityContext, bool) {
	sctx, ok := ctx.Value(securityContextKey).(*SecurityContext)
	if !ok || sctx == nil {
		return nil, false
	}
	return sctx, true
}
