package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

func TestSecurityContextAccessors(t *testing.T) {
	sctx := NewSecurityContext(7, RoleOutletStaff, uintPtr(3), uintPtr(12), "req-1")

	assert.Equal(t, uint(7), sctx.UserID())
	assert.Equal(t, RoleOutletStaff, sctx.Role())
	assert.False(t, sctx.Anonymous())
	assert.Equal(t, "req-1", sctx.CorrelationID())
	require.NotNil(t, sctx.EffectiveOutletID())
	assert.Equal(t, uint(12), *sctx.EffectiveOutletID())
}

func TestSecurityContextClonesTenantIDs(t *testing.T) {
	merchantID := uint(3)
	sctx := NewSecurityContext(1, RoleMerchantOwner, &merchantID, nil, "")

	merchantID = 99
	require.NotNil(t, sctx.EffectiveMerchantID())
	assert.Equal(t, uint(3), *sctx.EffectiveMerchantID())

	// mutating the returned pointer must not reach the context
	*sctx.EffectiveMerchantID() = 42
	assert.Equal(t, uint(3), *sctx.EffectiveMerchantID())
}

func TestGlobalAccessBypassesTenantFilters(t *testing.T) {
	sctx := NewSecurityContext(1, RoleAdmin, uintPtr(3), uintPtr(12), "")

	assert.True(t, sctx.HasGlobalAccess())
	assert.True(t, sctx.RequiresAudit())
	assert.Nil(t, sctx.EffectiveMerchantID())
	assert.Nil(t, sctx.EffectiveOutletID())
}

func TestAnonymousContext(t *testing.T) {
	sctx := NewAnonymousContext("req-2")

	assert.True(t, sctx.Anonymous())
	assert.False(t, sctx.HasRole(RoleCustomer))
	assert.False(t, sctx.HasGlobalAccess())
	assert.False(t, sctx.RequiresAudit())
	assert.Nil(t, sctx.EffectiveMerchantID())
	assert.Nil(t, sctx.EffectiveOutletID())
}

func TestHasRole(t *testing.T) {
	sctx := NewSecurityContext(1, RoleMerchantOwner, uintPtr(3), nil, "")

	assert.True(t, sctx.HasRole(RoleCustomer))
	assert.True(t, sctx.HasRole(RoleMerchantOwner))
	assert.False(t, sctx.HasRole(RoleAdmin))
}

func TestContextRoundTrip(t *testing.T) {
	sctx := NewSecurityContext(5, RoleCustomer, nil, nil, "req-3")
	ctx := WithContext(context.Background(), sctx)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, sctx, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
