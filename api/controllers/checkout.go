package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/api/responses"
	"github.com/bazario/bazario-backend/api/validators"
	"github.com/bazario/bazario-backend/internal/checkout"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
)

type checkoutPayload struct {
	DeliveryAddressID string `json:"delivery_address_id" validate:"required,uuid"`
	CouponCode        string `json:"coupon_code" validate:"omitempty,max=64"`
}

// Checkout converts the cart into per-seller orders plus one pending
// payment intent.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, role, err := actor(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload checkoutPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		addressID, err := uuid.Parse(payload.DeliveryAddressID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery address id"))
			return
		}

		result, err := svc.Checkout(ctx, userID, role, checkout.CheckoutInput{
			DeliveryAddressID: addressID,
			CouponCode:        payload.CouponCode,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
