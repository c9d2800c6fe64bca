package payloads

import (
	"time"

	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLine is the item snapshot carried by order events.
type OrderLine struct {
	ProductID   uuid.UUID       `json:"product_id"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
}

// OrderCreatedEvent is emitted once per order produced by checkout.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	FarmerID    uuid.UUID       `json:"farmer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderLine     `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderStatusChangedEvent records one forward step of the workflow.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	BuyerID    uuid.UUID         `json:"buyer_id"`
	FarmerID   uuid.UUID         `json:"farmer_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ChangedAt  time.Time         `json:"changed_at"`
}

// OrderCancelledEvent reports a cancelled order and the stock it returned.
type OrderCancelledEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	BuyerID       uuid.UUID         `json:"buyer_id"`
	FarmerID      uuid.UUID         `json:"farmer_id"`
	FromStatus    enums.OrderStatus `json:"from_status"`
	RestoredItems []OrderLine       `json:"restored_items"`
	Reason        string            `json:"reason,omitempty"`
	CancelledAt   time.Time         `json:"cancelled_at"`
}

// PaymentRecordedEvent is emitted when the ledger settles an order.
type PaymentRecordedEvent struct {
	PaymentID     uuid.UUID       `json:"payment_id"`
	OrderID       uuid.UUID       `json:"order_id"`
	BuyerID       uuid.UUID       `json:"buyer_id"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	PaidAt        time.Time       `json:"paid_at"`
}

// ReviewSubmittedEvent announces a new verified review.
type ReviewSubmittedEvent struct {
	ReviewID  uuid.UUID `json:"review_id"`
	ProductID uuid.UUID `json:"product_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	Rating    int       `json:"rating"`
}

// MessageSentEvent hands a buyer message to the automation webhook.
type MessageSentEvent struct {
	MessageID      uuid.UUID  `json:"message_id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	SenderUsername string     `json:"sender_username"`
	RecipientID    uuid.UUID  `json:"recipient_id"`
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	ProductName    string     `json:"product_name,omitempty"`
	Content        string     `json:"content"`
	SentAt         time.Time  `json:"sent_at"`
}
