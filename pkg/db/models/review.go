package models

import (
	"time"

	"github.com/google/uuid"
)

type Review struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	BuyerID   uuid.UUID `gorm:"column:buyer_id;type:uuid;not null"`
	Rating    int       `gorm:"column:rating;not null"`
	Comment   *string   `gorm:"column:comment"`
	Buyer     *User     `gorm:"foreignKey:BuyerID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
