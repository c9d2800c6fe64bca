package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a farmer listing with its sellable stock.
type Product struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmerID          uuid.UUID       `gorm:"column:farmer_id;type:uuid;not null"`
	CategoryID        *uuid.UUID      `gorm:"column:category_id;type:uuid"`
	Name              string          `gorm:"column:name;not null"`
	Description       *string         `gorm:"column:description"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	QuantityAvailable int             `gorm:"column:quantity_available;not null"`
	ImageURL          *string         `gorm:"column:image_url"`
	Farmer            *FarmerProfile  `gorm:"foreignKey:FarmerID"`
	Category          *Category       `gorm:"foreignKey:CategoryID"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
