package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
)

// ItemDTO is one order line with its price snapshot.
type ItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// PaymentDTO summarizes the settlement recorded for an order.
type PaymentDTO struct {
	ID            uuid.UUID           `json:"id"`
	TransactionID *string             `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal     `json:"amount"`
	Status        enums.PaymentStatus `json:"status"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
}

// OrderDTO is the order as returned to buyers and farmers.
type OrderDTO struct {
	ID          uuid.UUID         `json:"id"`
	BuyerID     uuid.UUID         `json:"buyer_id"`
	FarmerID    uuid.UUID         `json:"farmer_id"`
	Status      enums.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
	Items       []ItemDTO         `json:"items"`
	Payment     *PaymentDTO       `json:"payment,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ListInput filters order listings.
type ListInput struct {
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

// ListFilter is the repository form of ListInput.
type ListFilter struct {
	Status *enums.OrderStatus
}

func NewOrderDTO(order models.Order) OrderDTO {
	dto := OrderDTO{
		ID:          order.ID,
		BuyerID:     order.BuyerID,
		FarmerID:    order.FarmerID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		CancelledAt: order.CancelledAt,
		Items:       make([]ItemDTO, 0, len(order.Items)),
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	for _, item := range order.Items {
		line := ItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime,
			Subtotal:    item.Subtotal(),
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
		}
		dto.Items = append(dto.Items, line)
	}
	if order.Payment != nil {
		dto.Payment = &PaymentDTO{
			ID:            order.Payment.ID,
			TransactionID: order.Payment.TransactionID,
			Amount:        order.Payment.Amount,
			Status:        order.Payment.Status,
			PaidAt:        order.Payment.PaidAt,
		}
	}
	return dto
}
