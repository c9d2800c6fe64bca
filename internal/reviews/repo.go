package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	"github.com/farmconnect/farmconnect-backend/pkg/pagination"
)

// Repository persists reviews and answers purchase-verification queries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, review *models.Review) error
	Exists(ctx context.Context, buyerID, productID uuid.UUID) (bool, error)
	ProductExists(ctx context.Context, productID uuid.UUID) (bool, error)
	HasDeliveredPurchase(ctx context.Context, buyerID, productID uuid.UUID) (bool, error)
	ListForProduct(ctx context.Context, productID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Review, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit("Buyer").Create(review).Error
}

func (r *repository) Exists(ctx context.Context, buyerID, productID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("buyer_id = ? AND product_id = ?", buyerID, productID).
		Count(&n).Error
	return n > 0, err
}

func (r *repository) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Count(&n).Error
	return n > 0, err
}

// HasDeliveredPurchase reports whether buyerID received productID on any delivered order.
func (r *repository) HasDeliveredPurchase(ctx context.Context, buyerID, productID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.buyer_id = ? AND orders.status = ? AND order_items.product_id = ?",
			buyerID, enums.OrderStatusDelivered, productID).
		Count(&n).Error
	return n > 0, err
}

func (r *repository) ListForProduct(ctx context.Context, productID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Review, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Preload("Buyer").
		Where("reviews.product_id = ?", productID)

	var rows []models.Review
	if err := pagination.ApplyNewestFirst(query, "reviews", cursor, limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
