package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
)

// RecordPaymentInput is what the buyer reports having paid.
type RecordPaymentInput struct {
	Amount        decimal.Decimal
	TransactionID string
}

type PaymentDTO struct {
	ID            uuid.UUID           `json:"id"`
	OrderID       uuid.UUID           `json:"order_id"`
	TransactionID string              `json:"transaction_id"`
	Amount        decimal.Decimal     `json:"amount"`
	Status        enums.PaymentStatus `json:"status"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	OrderStatus   enums.OrderStatus   `json:"order_status"`
}

// EventDTO is one row of an order's ledger trail.
type EventDTO struct {
	ID          uuid.UUID             `json:"id"`
	Type        enums.LedgerEventType `json:"type"`
	ActorUserID *uuid.UUID            `json:"actor_user_id,omitempty"`
	Amount      *decimal.Decimal      `json:"amount,omitempty"`
	FromStatus  *enums.OrderStatus    `json:"from_status,omitempty"`
	ToStatus    *enums.OrderStatus    `json:"to_status,omitempty"`
	Metadata    json.RawMessage       `json:"metadata,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

func newPaymentDTO(payment models.Payment, status enums.OrderStatus) PaymentDTO {
	dto := PaymentDTO{
		ID:          payment.ID,
		OrderID:     payment.OrderID,
		Amount:      payment.Amount,
		Status:      payment.Status,
		PaidAt:      payment.PaidAt,
		OrderStatus: status,
	}
	if payment.TransactionID != nil {
		dto.TransactionID = *payment.TransactionID
	}
	return dto
}

func newEventDTO(event models.LedgerEvent) EventDTO {
	return EventDTO{
		ID:          event.ID,
		Type:        event.Type,
		ActorUserID: event.ActorUserID,
		Amount:      event.Amount,
		FromStatus:  event.FromStatus,
		ToStatus:    event.ToStatus,
		Metadata:    event.Metadata,
		CreatedAt:   event.CreatedAt,
	}
}
