package enums

// SettlementStatus tracks the lifecycle of a payout batch.
type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "pending"
	SettlementStatusCompleted SettlementStatus = "completed"
)

// String implements fmt.Stringer.
func (s SettlementStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SettlementStatus.
func (s SettlementStatus) IsValid() bool {
	return s == SettlementStatusPending || s == SettlementStatusCompleted
}

// PayeeType identifies how a settlement's payee earned the payout.
type PayeeType string

const (
	PayeeTypeSeller          PayeeType = "seller"
	PayeeTypeDeliveryPartner PayeeType = "delivery_partner"
)

// String implements fmt.Stringer.
func (p PayeeType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayeeType.
func (p PayeeType) IsValid() bool {
	return p == PayeeTypeSeller || p == PayeeTypeDeliveryPartner
}
