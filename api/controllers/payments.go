package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/farmconnect/farmconnect-backend/api/responses"
	"github.com/farmconnect/farmconnect-backend/api/validators"
	"github.com/farmconnect/farmconnect-backend/internal/ledger"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
)

// Amount accepts either a JSON number or a decimal string.
type recordPaymentRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	TransactionID string           `json:"transaction_id" validate:"required,max=200"`
}

// BuyerRecordPayment records a payment against a confirmed order; the amount
// must equal the order total exactly.
func BuyerRecordPayment(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req recordPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Amount == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]any{"amount": "is required"}))
			return
		}

		payment, err := svc.RecordPayment(r.Context(), buyerID, orderID, ledger.RecordPaymentInput{
			Amount:        *req.Amount,
			TransactionID: req.TransactionID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

// OrderLedger lists the audit trail of an order the caller takes part in.
func OrderLedger(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.ListEvents(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, events)
	}
}
