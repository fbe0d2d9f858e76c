package enums

// BuyerType records which pricing tier an order was priced under.
type BuyerType string

const (
	BuyerTypeCustomer BuyerType = "customer"
	BuyerTypeRetailer BuyerType = "retailer"
)

// String implements fmt.Stringer.
func (b BuyerType) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BuyerType.
func (b BuyerType) IsValid() bool {
	return b == BuyerTypeCustomer || b == BuyerTypeRetailer
}

// BuyerTypeForRole maps an active role to the pricing tier it buys at:
// retailers buy wholesale, everyone else buys retail.
func BuyerTypeForRole(role Role) BuyerType {
	if role == RoleRetailer {
		return BuyerTypeRetailer
	}
	return BuyerTypeCustomer
}

// SellerRole returns the seller role allowed to act on orders placed by this
// buyer type: retailers serve customers, wholesalers serve retailers.
func (b BuyerType) SellerRole() Role {
	if b == BuyerTypeRetailer {
		return RoleWholesaler
	}
	return RoleRetailer
}
