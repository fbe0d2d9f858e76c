package controllers

import (
	"io"
	"net/http"

	"github.com/bazario/bazario-backend/api/responses"
	"github.com/bazario/bazario-backend/internal/payments"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
)

const razorpaySignatureHeader = "X-Razorpay-Signature"

// RazorpayWebhook receives gateway events. The raw body must reach the
// service untouched because the signature covers the exact bytes sent.
func RazorpayWebhook(svc payments.WebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "could not read webhook body"))
			return
		}

		outcome, err := svc.HandleWebhook(ctx, body, r.Header.Get(razorpaySignatureHeader))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}
