package enums

import "strings"

// OrderStatus tracks the lifecycle of an order. The seller advances the
// order through the preparation states, the assigned delivery partner through
// the delivery states.
type OrderStatus string

const (
	OrderStatusPending                 OrderStatus = "pending"
	OrderStatusConfirmed               OrderStatus = "confirmed"
	OrderStatusPreparing               OrderStatus = "preparing"
	OrderStatusReadyToShip             OrderStatus = "ready_to_ship"
	OrderStatusDeliveryPartnerAssigned OrderStatus = "delivery_partner_assigned"
	OrderStatusPickedUp                OrderStatus = "picked_up"
	OrderStatusOutForDelivery          OrderStatus = "out_for_delivery"
	OrderStatusDelivered               OrderStatus = "delivered"
	OrderStatusCancelled               OrderStatus = "cancelled"
	OrderStatusReturned                OrderStatus = "returned"
	OrderStatusRefunded                OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReadyToShip,
	OrderStatusDeliveryPartnerAssigned,
	OrderStatusPickedUp,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
	OrderStatusRefunded,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// Label renders the status for humans, e.g. "Ready To Ship".
func (s OrderStatus) Label() string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
