// Package policy is the single place ownership decisions are made. No other
// component compares tenant ids; everything else either calls these functions
// or goes through the repository scope filter.
package policy

import (
	"context"
	"fmt"
	"order-service/internal/audit"
	"order-service/internal/auth"
	"order-service/internal/model"
	"order-service/prometheus"
)

// Resource identifies the target of an access decision for auditing
type Resource struct {
	Type   string
	ID     string
	Action string
}

// Engine evaluates access decisions against a SecurityContext. Decisions are
// deterministic and side-effect-free except for audit emission on
// global-access passes.
type Engine struct {
	audit audit.Sink
}

// NewEngine creates a policy engine emitting to the given audit sink
func NewEngine(sink audit.Sink) *Engine {
	return &Engine{audit: sink}
}

// RequireRole fails when the caller's role sits below min
func (e *Engine) RequireRole(sctx *auth.SecurityContext, min auth.Role) error {
	if sctx == nil || sctx.Anonymous() || !sctx.HasRole(min) {
		prometheus.RecordPolicyDenial("insufficient_role")
		return model.ErrInsufficientRole
	}
	return nil
}

// RequireMerchantAccess admits global-access callers (audited) and
// merchant-scoped callers whose merchant matches
func (e *Engine) RequireMerchantAccess(ctx context.Context, sctx *auth.SecurityContext, merchantID uint, res Resource) error {
	if sctx == nil || sctx.Anonymous() {
		prometheus.RecordPolicyDenial("access_denied")
		return model.ErrAccessDenied
	}
	if sctx.HasGlobalAccess() {
		return e.recordGlobalAccess(ctx, sctx, res)
	}
	if id := sctx.EffectiveMerchantID(); id != nil && *id == merchantID {
		return nil
	}
	prometheus.RecordPolicyDenial("access_denied")
	return model.ErrAccessDenied
}

// RequireOutletAccess admits global-access callers (audited), outlet-scoped
// callers on their own outlet, and a merchant owner whose merchant owns the
// outlet
func (e *Engine) RequireOutletAccess(ctx context.Context, sctx *auth.SecurityContext, outletID, outletMerchantID uint, res Resource) error {
	if sctx == nil || sctx.Anonymous() {
		prometheus.RecordPolicyDenial("access_denied")
		return model.ErrAccessDenied
	}
	if sctx.HasGlobalAccess() {
		return e.recordGlobalAccess(ctx, sctx, res)
	}
	if id := sctx.EffectiveOutletID(); id != nil && *id == outletID {
		return nil
	}
	if id := sctx.EffectiveMerchantID(); id != nil && *id == outletMerchantID {
		return nil
	}
	prometheus.RecordPolicyDenial("access_denied")
	return model.ErrAccessDenied
}

// RequireUserAccess admits global-access callers (audited); all others must
// be the target user
func (e *Engine) RequireUserAccess(ctx context.Context, sctx *auth.SecurityContext, targetUserID uint, res Resource) error {
	if sctx == nil || sctx.Anonymous() {
		prometheus.RecordPolicyDenial("access_denied")
		return model.ErrAccessDenied
	}
	if sctx.HasGlobalAccess() {
		return e.recordGlobalAccess(ctx, sctx, res)
	}
	if sctx.UserID() == targetUserID {
		return nil
	}
	prometheus.RecordPolicyDenial("access_denied")
	return model.ErrAccessDenied
}

// AuditGlobalAccess records the mandatory audit trail for reads performed by
// a global-access caller. For tenant-scoped callers it is a no-op: their
// visibility was already narrowed by the repository scope filter.
func (e *Engine) AuditGlobalAccess(ctx context.Context, sctx *auth.SecurityContext, res Resource) error {
	if sctx == nil || !sctx.RequiresAudit() {
		return nil
	}
	return e.recordGlobalAccess(ctx, sctx, res)
}

// recordGlobalAccess writes the mandatory audit record for an admin-level
// bypass. A sink failure fails the whole check.
func (e *Engine) recordGlobalAccess(ctx context.Context, sctx *auth.SecurityContext, res Resource) error {
	err := e.audit.Record(ctx, sctx.UserID(), sctx.Role().String(), res.Action, res.Type, res.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrAuditFailed, err)
	}
	return nil
}
