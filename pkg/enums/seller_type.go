package enums

// SellerType classifies a seller's catalog.
type SellerType string

const (
	SellerTypeRetailer   SellerType = "retailer"
	SellerTypeWholesaler SellerType = "wholesaler"
)

// String implements fmt.Stringer.
func (s SellerType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SellerType.
func (s SellerType) IsValid() bool {
	return s == SellerTypeRetailer || s == SellerTypeWholesaler
}

// BuyerType returns the buyer type allowed to purchase from this seller type.
func (s SellerType) BuyerType() BuyerType {
	if s == SellerTypeWholesaler {
		return BuyerTypeRetailer
	}
	return BuyerTypeCustomer
}
