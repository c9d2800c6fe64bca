package models

import (
	"time"

	"github.com/google/uuid"
)

// FarmerProfile owns the products a farmer lists.
type FarmerProfile struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	FarmName    string    `gorm:"column:farm_name;not null"`
	Location    string    `gorm:"column:location;not null"`
	Description *string   `gorm:"column:description"`
	User        *User     `gorm:"foreignKey:UserID"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
