package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/farmconnect-backend/internal/checkout/helpers"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
)

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// Service manages the per-buyer cart. Every mutation re-validates the whole
// cart against live stock before it is stored.
type Service interface {
	Get(ctx context.Context, buyerID uuid.UUID) (*View, error)
	Add(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*View, error)
	Update(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*View, error)
	Remove(ctx context.Context, buyerID, productID uuid.UUID) (*View, error)
	Clear(ctx context.Context, buyerID uuid.UUID) error
	Lines(ctx context.Context, buyerID uuid.UUID) ([]Line, error)
}

type service struct {
	store    Store
	products productLoader
	now      func() time.Time
}

// NewService builds a cart service backed by the provided store.
func NewService(store Store, products productLoader) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{store: store, products: products, now: time.Now}, nil
}

func (s *service) Get(ctx context.Context, buyerID uuid.UUID) (*View, error) {
	lines, err := s.load(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, buyerID, lines, nil)
}

func (s *service) Add(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*View, error) {
	if err := validateQuantity(qty); err != nil {
		return nil, err
	}
	product, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.QuantityAvailable <= 0 {
		return nil, insufficientStock(productID, qty, product.QuantityAvailable)
	}

	lines, err := s.load(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range lines {
		if lines[i].ProductID == productID {
			// a line never grows past MaxLineQuantity; reconcile caps it to stock
			if lines[i].Quantity > helpers.MaxLineQuantity-qty {
				lines[i].Quantity = helpers.MaxLineQuantity
			} else {
				lines[i].Quantity += qty
			}
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, Line{ProductID: productID, Quantity: qty, AddedAt: s.now().UTC()})
	}
	return s.reconcile(ctx, buyerID, lines, nil)
}

// Update sets the quantity exactly; zero or less removes the line.
func (s *service) Update(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*View, error) {
	if qty <= 0 {
		return s.Remove(ctx, buyerID, productID)
	}
	if err := validateQuantity(qty); err != nil {
		return nil, err
	}
	product, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.QuantityAvailable <= 0 {
		return nil, insufficientStock(productID, qty, product.QuantityAvailable)
	}

	lines, err := s.load(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = qty
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, Line{ProductID: productID, Quantity: qty, AddedAt: s.now().UTC()})
	}
	return s.reconcile(ctx, buyerID, lines, nil)
}

func (s *service) Remove(ctx context.Context, buyerID, productID uuid.UUID) (*View, error) {
	lines, err := s.load(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	kept := lines[:0]
	for _, line := range lines {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	return s.reconcile(ctx, buyerID, kept, nil)
}

func (s *service) Clear(ctx context.Context, buyerID uuid.UUID) error {
	if err := s.store.Clear(ctx, buyerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// Lines returns the stored lines without validating them; checkout applies
// its own stock checks.
func (s *service) Lines(ctx context.Context, buyerID uuid.UUID) ([]Line, error) {
	return s.load(ctx, buyerID)
}

// reconcile caps or drops lines that no longer fit live stock, prices the
// remainder and stores the result. Lines without a positive quantity are dropped.
func (s *service) reconcile(ctx context.Context, buyerID uuid.UUID, lines []Line, warnings []Warning) (*View, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}

	view := &View{Items: []LineView{}, Total: decimal.Zero, Warnings: warnings}
	kept := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		product, ok := products[line.ProductID]
		if !ok || product.QuantityAvailable <= 0 {
			view.Warnings = append(view.Warnings, Warning{
				Type:      enums.CartWarningProductUnavailable,
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Message:   "product is no longer available and was removed",
			})
			continue
		}
		if line.Quantity > product.QuantityAvailable {
			view.Warnings = append(view.Warnings, Warning{
				Type:      enums.CartWarningQuantityAdjusted,
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Adjusted:  product.QuantityAvailable,
				Message:   fmt.Sprintf("only %d available", product.QuantityAvailable),
			})
			line.Quantity = product.QuantityAvailable
		}
		kept = append(kept, line)

		subtotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		view.Items = append(view.Items, LineView{
			ProductID:         product.ID,
			FarmerID:          product.FarmerID,
			Name:              product.Name,
			ImageURL:          product.ImageURL,
			UnitPrice:         product.Price,
			Quantity:          line.Quantity,
			QuantityAvailable: product.QuantityAvailable,
			Subtotal:          subtotal,
		})
		view.Total = view.Total.Add(subtotal)
	}
	if view.Warnings == nil {
		view.Warnings = []Warning{}
	}

	if err := s.store.Save(ctx, buyerID, kept); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return view, nil
}

func (s *service) load(ctx context.Context, buyerID uuid.UUID) ([]Line, error) {
	lines, err := s.store.Load(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return lines, nil
}

func (s *service) product(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	products, err := s.products.FindByIDs(ctx, []uuid.UUID{productID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	product, ok := products[productID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &product, nil
}

func validateQuantity(qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if qty > helpers.MaxLineQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity too large").
			WithDetails(map[string]any{"max": helpers.MaxLineQuantity})
	}
	return nil
}

func insufficientStock(productID uuid.UUID, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "product is out of stock").WithDetails(map[string]any{
		"product_id": productID.String(),
		"requested":  requested,
		"available":  available,
	})
}
