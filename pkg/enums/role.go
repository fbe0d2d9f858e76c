package enums

import "fmt"

// Role identifies what a user can act as. A user may hold several roles and
// switches between them per session via the active role.
type Role string

const (
	RoleCustomer        Role = "customer"
	RoleRetailer        Role = "retailer"
	RoleWholesaler      Role = "wholesaler"
	RoleDeliveryPartner Role = "delivery_partner"
	RoleAdmin           Role = "admin"
)

var validRoles = []Role{
	RoleCustomer,
	RoleRetailer,
	RoleWholesaler,
	RoleDeliveryPartner,
	RoleAdmin,
}

// String implements fmt.Stringer.
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

// IsSeller reports whether the role sells goods.
func (r Role) IsSeller() bool {
	return r == RoleRetailer || r == RoleWholesaler
}

// ParseRole converts a raw string into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.IsValid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}
