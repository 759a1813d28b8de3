package auth

import "fmt"

// Role is a totally ordered privilege level. Higher values include every
// capability of the levels below them.
type Role int

const (
	RoleCustomer Role = iota + 1
	RoleOutletStaff
	RoleMerchantOwner
	RoleAdmin
	RoleSuperAdmin
)

// ScopeType classifies which owning-id column constrains data access for a role
type ScopeType int

const (
	ScopeUser ScopeType = iota + 1
	ScopeOutlet
	ScopeMerchant
	ScopeGlobal
)

var roleNames = map[Role]string{
	RoleCustomer:      "customer",
	RoleOutletStaff:   "outlet_staff",
	RoleMerchantOwner: "merchant_owner",
	RoleAdmin:         "admin",
	RoleSuperAdmin:    "super_admin",
}

var rolesByName = map[string]Role{
	"customer":       RoleCustomer,
	"outlet_staff":   RoleOutletStaff,
	"merchant_owner": RoleMerchantOwner,
	"admin":          RoleAdmin,
	"super_admin":    RoleSuperAdmin,
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole maps a JWT role claim to a Role
func ParseRole(name string) (Role, error) {
	if role, ok := rolesByName[name]; ok {
		return role, nil
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

// Valid reports whether r is a defined role
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// AtLeast reports whether r sits at or above min in the role ordering
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// Scope returns the tenant scope the role is confined to
func (r Role) Scope() ScopeType {
	switch r {
	case RoleCustomer:
		return ScopeUser
	case RoleOutletStaff:
		return ScopeOutlet
	case RoleMerchantOwner:
		return ScopeMerchant
	case RoleAdmin, RoleSuperAdmin:
		return ScopeGlobal
	default:
		return ScopeUser
	}
}
