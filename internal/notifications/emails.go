package notifications

import (
	"fmt"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
)

func orderStatusEmail(order *models.Order, status enums.OrderStatus) (string, string) {
	subject := fmt.Sprintf("Order %s is now %s", order.OrderNumber, status.Label())
	body := fmt.Sprintf(
		"<html><body><p>Hi,</p><p>Your order <strong>%s</strong> has been updated to <strong>%s</strong>.</p><p>Total: %s</p></body></html>",
		order.OrderNumber, status.Label(), order.OrderTotal.StringFixed(2),
	)
	return subject, body
}

func orderConfirmationEmail(orders []models.Order) (string, string) {
	subject := "Your payment was received"
	body := "<html><body><p>Hi,</p><p>Payment received. Your orders:</p><ul>"
	for _, order := range orders {
		body += fmt.Sprintf("<li>%s &mdash; %s</li>", order.OrderNumber, order.OrderTotal.StringFixed(2))
	}
	body += "</ul></body></html>"
	return subject, body
}

func sellerNewOrderEmail(order *models.Order) (string, string) {
	subject := fmt.Sprintf("New order %s", order.OrderNumber)
	body := fmt.Sprintf(
		"<html><body><p>You have a new confirmed order <strong>%s</strong> for %s. Please start preparing it.</p></body></html>",
		order.OrderNumber, order.OrderSubtotal.StringFixed(2),
	)
	return subject, body
}

func orderClaimedEmail(order *models.Order) (string, string) {
	subject := fmt.Sprintf("Order %s has a delivery partner", order.OrderNumber)
	body := fmt.Sprintf(
		"<html><body><p>A delivery partner has been assigned to order <strong>%s</strong>.</p></body></html>",
		order.OrderNumber,
	)
	return subject, body
}
