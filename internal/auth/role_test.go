package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for name, want := range rolesByName {
		role, err := ParseRole(name)
		require.NoError(t, err)
		assert.Equal(t, want, role)
		assert.Equal(t, name, role.String())
	}

	_, err := ParseRole("superuser")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestRoleOrdering(t *testing.T) {
	ordered := []Role{RoleCustomer, RoleOutletStaff, RoleMerchantOwner, RoleAdmin, RoleSuperAdmin}
	for i, lower := range ordered {
		assert.True(t, lower.AtLeast(lower))
		for _, higher := range ordered[i+1:] {
			assert.True(t, higher.AtLeast(lower), "%s should satisfy %s", higher, lower)
			assert.False(t, lower.AtLeast(higher), "%s should not satisfy %s", lower, higher)
		}
	}
}

func TestRoleScope(t *testing.T) {
	assert.Equal(t, ScopeUser, RoleCustomer.Scope())
	assert.Equal(t, ScopeOutlet, RoleOutletStaff.Scope())
	assert.Equal(t, ScopeMerchant, RoleMerchantOwner.Scope())
	assert.Equal(t, ScopeGlobal, RoleAdmin.Scope())
	assert.Equal(t, ScopeGlobal, RoleSuperAdmin.Scope())
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleCustomer.Valid())
	assert.True(t, RoleSuperAdmin.Valid())
	assert.False(t, Role(0).Valid())
	assert.False(t, Role(99).Valid())
}
