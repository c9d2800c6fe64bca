package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/pagination"
)

const (
	maxNameLen        = 200
	maxDescriptionLen = 5000
	maxCategoryLen    = 100
)

// Service exposes the catalog: categories, listings and farmer product management.
type Service interface {
	CreateCategory(ctx context.Context, name string) (*CategoryDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	CreateProduct(ctx context.Context, farmerUserID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, farmerUserID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, farmerUserID, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*pagination.Page[ProductDTO], error)
	ListFarmerProducts(ctx context.Context, farmerUserID uuid.UUID) ([]ProductDTO, error)
}

type service struct {
	repo *Repository
}

// NewService constructs the catalog service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateCategory(ctx context.Context, name string) (*CategoryDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxCategoryLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name must be 1-100 characters")
	}

	if _, err := s.repo.FindCategoryByName(ctx, name); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "category already exists").WithDetails(map[string]any{"name": name})
	} else if !isNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup category")
	}

	category := &models.Category{Name: strings.ToLower(name)}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	dto := newCategoryDTO(*category)
	return &dto, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, newCategoryDTO(c))
	}
	return out, nil
}

func (s *service) CreateProduct(ctx context.Context, farmerUserID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	profile, err := s.farmerProfile(ctx, farmerUserID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if err := validateQuantity(input.QuantityAvailable); err != nil {
		return nil, err
	}
	if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	product := &models.Product{
		FarmerID:          profile.ID,
		CategoryID:        input.CategoryID,
		Name:              name,
		Description:       trimOptional(input.Description),
		Price:             input.Price,
		QuantityAvailable: input.QuantityAvailable,
		ImageURL:          trimOptional(input.ImageURL),
	}
	if product.Description != nil && len(*product.Description) > maxDescriptionLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is too long")
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *service) UpdateProduct(ctx context.Context, farmerUserID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if _, err := s.ownedProduct(ctx, farmerUserID, productID); err != nil {
		return nil, err
	}

	columns := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		columns["name"] = name
	}
	if input.Description != nil {
		description := trimOptional(input.Description)
		if description != nil && len(*description) > maxDescriptionLen {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is too long")
		}
		columns["description"] = description
	}
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return nil, err
		}
		columns["price"] = *input.Price
	}
	// stock is only written when the farmer sets it explicitly
	if input.QuantityAvailable != nil {
		if err := validateQuantity(*input.QuantityAvailable); err != nil {
			return nil, err
		}
		columns["quantity_available"] = *input.QuantityAvailable
	}
	if input.ImageURL != nil {
		columns["image_url"] = trimOptional(input.ImageURL)
	}
	switch {
	case input.ClearCategory:
		columns["category_id"] = nil
	case input.CategoryID != nil:
		if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
			return nil, err
		}
		columns["category_id"] = *input.CategoryID
	}

	if err := s.repo.UpdateProductColumns(ctx, productID, columns); err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return s.GetProduct(ctx, productID)
}

func (s *service) DeleteProduct(ctx context.Context, farmerUserID, productID uuid.UUID) error {
	if _, err := s.ownedProduct(ctx, farmerUserID, productID); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		if isNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		// order_items keep a reference for sold products
		if db.IsForeignKeyViolation(err) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product has orders and cannot be deleted")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindDetail(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	ratings, err := s.repo.RatingSummaries(ctx, []uuid.UUID{product.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rating summary")
	}
	dto := newProductDTO(*product, ratings[product.ID])
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*pagination.Page[ProductDTO], error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListAvailable(ctx, input.CategoryID, cursor, input.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	dtos, err := s.withRatings(ctx, rows)
	if err != nil {
		return nil, err
	}
	page := pagination.BuildPage(dtos, input.Limit, func(p ProductDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &page, nil
}

func (s *service) ListFarmerProducts(ctx context.Context, farmerUserID uuid.UUID) ([]ProductDTO, error) {
	profile, err := s.farmerProfile(ctx, farmerUserID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByFarmer(ctx, profile.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list farmer products")
	}
	for i := range rows {
		rows[i].Farmer = profile
	}
	return s.withRatings(ctx, rows)
}

func (s *service) withRatings(ctx context.Context, rows []models.Product) ([]ProductDTO, error) {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.ID)
	}
	ratings, err := s.repo.RatingSummaries(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rating summaries")
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, newProductDTO(p, ratings[p.ID]))
	}
	return out, nil
}

func (s *service) farmerProfile(ctx context.Context, farmerUserID uuid.UUID) (*models.FarmerProfile, error) {
	profile, err := s.repo.FindFarmerProfileByUserID(ctx, farmerUserID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "farmer profile required")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farmer profile")
	}
	return profile, nil
}

func (s *service) ownedProduct(ctx context.Context, farmerUserID, productID uuid.UUID) (*models.Product, error) {
	profile, err := s.farmerProfile(ctx, farmerUserID)
	if err != nil {
		return nil, err
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.FarmerID != profile.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another farmer")
	}
	return product, nil
}

func (s *service) ensureCategory(ctx context.Context, categoryID *uuid.UUID) error {
	if categoryID == nil {
		return nil
	}
	if _, err := s.repo.FindCategoryByID(ctx, *categoryID); err != nil {
		if isNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist").WithDetails(map[string]any{"category_id": categoryID.String()})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return nil
}

func validateName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "name must be 1-200 characters")
	}
	return nil
}

// validatePrice accepts positive amounts with at most two decimal places.
func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
	}
	if !price.Equal(price.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must have at most two decimal places")
	}
	if price.GreaterThanOrEqual(decimal.NewFromInt(100_000_000)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "price is too large")
	}
	return nil
}

func validateQuantity(qty int) error {
	if qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity_available cannot be negative")
	}
	return nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
