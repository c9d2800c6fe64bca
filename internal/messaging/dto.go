package messaging

import (
	"time"

	"github.com/google/uuid"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
)

type StartInput struct {
	ProductID    uuid.UUID `json:"product_id" validate:"required"`
	FirstMessage *string   `json:"first_message,omitempty" validate:"omitempty,max=5000"`
}

type SendInput struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// AutomatedInput is posted by the automation webhook consumer.
type AutomatedInput struct {
	ConversationID uuid.UUID `json:"conversation_id" validate:"required"`
	Content        string    `json:"content" validate:"required,max=5000"`
}

type MessageDTO struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"is_read"`
	IsAutomated    bool      `json:"is_automated"`
	CreatedAt      time.Time `json:"created_at"`
}

type ConversationDTO struct {
	ID             uuid.UUID   `json:"id"`
	BuyerID        uuid.UUID   `json:"buyer_id"`
	BuyerUsername  string      `json:"buyer_username,omitempty"`
	FarmerID       uuid.UUID   `json:"farmer_id"`
	FarmerUsername string      `json:"farmer_username,omitempty"`
	ProductID      *uuid.UUID  `json:"product_id,omitempty"`
	ProductName    string      `json:"product_name,omitempty"`
	UnreadCount    int64       `json:"unread_count"`
	LastMessage    *MessageDTO `json:"last_message,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type ConversationDetailDTO struct {
	ConversationDTO
	Messages []MessageDTO `json:"messages"`
}

type UnreadDTO struct {
	Unread int64 `json:"unread"`
}

func newMessageDTO(m models.Message) MessageDTO {
	return MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		IsRead:         m.IsRead,
		IsAutomated:    m.IsAutomated,
		CreatedAt:      m.CreatedAt,
	}
}

func newConversationDTO(c models.Conversation) ConversationDTO {
	dto := ConversationDTO{
		ID:        c.ID,
		BuyerID:   c.BuyerID,
		FarmerID:  c.FarmerID,
		ProductID: c.ProductID,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Buyer != nil {
		dto.BuyerUsername = c.Buyer.Username
	}
	if c.Farmer != nil {
		dto.FarmerUsername = c.Farmer.Username
	}
	if c.Product != nil {
		dto.ProductName = c.Product.Name
	}
	return dto
}
