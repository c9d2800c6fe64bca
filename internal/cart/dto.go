package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/farmconnect-backend/pkg/enums"
)

// View is the validated cart returned to the buyer.
type View struct {
	Items    []LineView      `json:"items"`
	Total    decimal.Decimal `json:"total"`
	Warnings []Warning       `json:"warnings"`
}

// LineView prices a line at the product's current price.
type LineView struct {
	ProductID         uuid.UUID       `json:"product_id"`
	FarmerID          uuid.UUID       `json:"farmer_id"`
	Name              string          `json:"name"`
	ImageURL          *string         `json:"image_url,omitempty"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Quantity          int             `json:"quantity"`
	QuantityAvailable int             `json:"quantity_available"`
	Subtotal          decimal.Decimal `json:"subtotal"`
}

// Warning reports an adjustment made while validating against live stock.
type Warning struct {
	Type      enums.CartWarningType `json:"type"`
	ProductID uuid.UUID             `json:"product_id"`
	Requested int                   `json:"requested,omitempty"`
	Adjusted  int                   `json:"adjusted,omitempty"`
	Message   string                `json:"message"`
}
