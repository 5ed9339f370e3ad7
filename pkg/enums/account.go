package enums

import "fmt"

// AccountKind distinguishes buying organizations from selling ones.
type AccountKind string

const (
	AccountKindConsumer AccountKind = "consumer"
	AccountKindSupplier AccountKind = "supplier"
)

// IsValid reports whether the value is a known AccountKind.
func (k AccountKind) IsValid() bool {
	return k == AccountKindConsumer || k == AccountKindSupplier
}

// Role is the caller's role inside their organization.
type Role string

const (
	RoleConsumer      Role = "consumer"
	RoleSupplierAdmin Role = "supplier_admin"
	RoleSalesRep      Role = "sales_rep"
	RoleManager       Role = "manager"
)

var validRoles = []Role{
	RoleConsumer,
	RoleSupplierAdmin,
	RoleSalesRep,
	RoleManager,
}

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// Kind returns the organization kind a role acts for.
func (r Role) Kind() AccountKind {
	if r == RoleConsumer {
		return AccountKindConsumer
	}
	return AccountKindSupplier
}

// IsSupplierStaff reports whether the role acts on behalf of a supplier.
func (r Role) IsSupplierStaff() bool {
	return r.IsValid() && r.Kind() == AccountKindSupplier
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
