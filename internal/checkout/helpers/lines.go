// Package helpers normalizes checkout input and partitions it per farmer.
package helpers

import (
	"sort"

	"github.com/google/uuid"

	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
)

// MaxLineQuantity bounds a single product line at checkout.
const MaxLineQuantity = 10000

// Line is one requested (product, quantity) pair.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// NormalizeLines rejects empty input and bad quantities and sums duplicate
// products. The result is sorted by product id.
func NormalizeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	totals := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
		}
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		totals[line.ProductID] += line.Quantity
		if totals[line.ProductID] > MaxLineQuantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity too large").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
	}

	out := make([]Line, 0, len(totals))
	for id, qty := range totals {
		out = append(out, Line{ProductID: id, Quantity: qty})
	}
	SortByProduct(out)
	return out, nil
}

// SortByProduct orders lines by product id, the order stock rows are locked in.
func SortByProduct(lines []Line) {
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})
}
