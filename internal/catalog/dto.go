package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
)

// CategoryDTO is the public shape of a category.
type CategoryDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// RatingSummary aggregates the reviews left on a product.
type RatingSummary struct {
	AvgRating   float64 `json:"avg_rating"`
	ReviewCount int64   `json:"review_count"`
}

// ProductDTO is the public shape of a product listing.
type ProductDTO struct {
	ID                uuid.UUID       `json:"id"`
	FarmerID          uuid.UUID       `json:"farmer_id"`
	FarmName          string          `json:"farm_name,omitempty"`
	CategoryID        *uuid.UUID      `json:"category_id,omitempty"`
	CategoryName      string          `json:"category_name,omitempty"`
	Name              string          `json:"name"`
	Description       *string         `json:"description,omitempty"`
	Price             decimal.Decimal `json:"price"`
	QuantityAvailable int             `json:"quantity_available"`
	ImageURL          *string         `json:"image_url,omitempty"`
	Rating            RatingSummary   `json:"rating"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CreateProductInput holds the validated payload for a new listing.
type CreateProductInput struct {
	CategoryID        *uuid.UUID
	Name              string
	Description       *string
	Price             decimal.Decimal
	QuantityAvailable int
	ImageURL          *string
}

// UpdateProductInput carries optional changes; nil leaves a field untouched.
type UpdateProductInput struct {
	CategoryID        *uuid.UUID
	ClearCategory     bool
	Name              *string
	Description       *string
	Price             *decimal.Decimal
	QuantityAvailable *int
	ImageURL          *string
}

// ListProductsInput filters the public listing.
type ListProductsInput struct {
	CategoryID *uuid.UUID
	Limit      int
	Cursor     string
}

func newCategoryDTO(c models.Category) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name}
}

func newProductDTO(p models.Product, rating RatingSummary) ProductDTO {
	dto := ProductDTO{
		ID:                p.ID,
		FarmerID:          p.FarmerID,
		CategoryID:        p.CategoryID,
		Name:              p.Name,
		Description:       p.Description,
		Price:             p.Price,
		QuantityAvailable: p.QuantityAvailable,
		ImageURL:          p.ImageURL,
		Rating:            rating,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if p.Farmer != nil {
		dto.FarmName = p.Farmer.FarmName
	}
	if p.Category != nil {
		dto.CategoryName = p.Category.Name
	}
	return dto
}
