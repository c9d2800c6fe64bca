package models

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ConversationID uuid.UUID `gorm:"column:conversation_id;type:uuid;not null"`
	SenderID       uuid.UUID `gorm:"column:sender_id;type:uuid;not null"`
	Content        string    `gorm:"column:content;not null"`
	IsRead         bool      `gorm:"column:is_read;not null;default:false"`
	IsAutomated    bool      `gorm:"column:is_automated;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
