// Package reservation takes stock for checkout with conditional decrements.
package reservation

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
)

// StockRequest asks for qty units of one product.
type StockRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// DecrementStock takes every request inside tx, in product id order so
// concurrent checkouts lock rows consistently. The first shortfall returns an
// INSUFFICIENT_STOCK error; the caller rolls tx back so nothing is taken.
func DecrementStock(ctx context.Context, tx *gorm.DB, requests []StockRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	ordered := make([]StockRequest, len(requests))
	copy(ordered, requests)
	for _, req := range ordered {
		if req.ProductID == uuid.Nil || req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid stock request").
				WithDetails(map[string]any{"product_id": req.ProductID, "requested": req.Qty})
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ProductID.String() < ordered[j].ProductID.String()
	})

	for _, req := range ordered {
		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND quantity_available >= ?", req.ProductID, req.Qty).
			Update("quantity_available", gorm.Expr("quantity_available - ?", req.Qty))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
		}
		if res.RowsAffected == 0 {
			return insufficient(ctx, tx, req)
		}
	}
	return nil
}

func insufficient(ctx context.Context, tx *gorm.DB, req StockRequest) error {
	var available int
	err := tx.WithContext(ctx).
		Model(&models.Product{}).
		Select("quantity_available").
		Where("id = ?", req.ProductID).
		Scan(&available).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"product_id": req.ProductID,
			"requested":  req.Qty,
			"available":  available,
		})
}
