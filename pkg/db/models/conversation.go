package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a buyer/farmer thread, optionally about one product.
type Conversation struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID   uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null"`
	FarmerID  uuid.UUID  `gorm:"column:farmer_id;type:uuid;not null"`
	ProductID *uuid.UUID `gorm:"column:product_id;type:uuid"`
	Buyer     *User      `gorm:"foreignKey:BuyerID"`
	Farmer    *User      `gorm:"foreignKey:FarmerID"`
	Product   *Product   `gorm:"foreignKey:ProductID"`
	Messages  []Message  `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Participant reports whether userID is one side of the conversation.
func (c *Conversation) Participant(userID uuid.UUID) bool {
	return c.BuyerID == userID || c.FarmerID == userID
}

// OtherParticipant returns the counterpart of userID.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.BuyerID == userID {
		return c.FarmerID
	}
	return c.BuyerID
}
