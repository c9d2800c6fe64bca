package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	"github.com/farmconnect/farmconnect-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.created_at ASC, order_items.id ASC") }).
		Preload("Items.Product").
		Preload("Payment").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindFarmerProfileIDByUserID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var profile models.FarmerProfile
	if err := r.db.WithContext(ctx).
		Select("id").
		Where("user_id = ?", userID).
		First(&profile).Error; err != nil {
		return uuid.Nil, err
	}
	return profile.ID, nil
}

// UpdateStatus moves the order only if it is still in from; false means another
// writer got there first.
func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": at.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkCancelled(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": at.UTC(),
			"updated_at":   at.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) RestoreStock(ctx context.Context, productID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("quantity_available", gorm.Expr("quantity_available + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	return r.list(ctx, "buyer_id", buyerID, filter, cursor, limit)
}

func (r *repository) ListByFarmer(ctx context.Context, farmerID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	return r.list(ctx, "farmer_id", farmerID, filter, cursor, limit)
}

func (r *repository) list(ctx context.Context, ownerColumn string, ownerID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Items").
		Preload("Items.Product").
		Preload("Payment").
		Where("orders."+ownerColumn+" = ?", ownerID)
	if filter.Status != nil {
		query = query.Where("orders.status = ?", *filter.Status)
	}

	var rows []models.Order
	if err := pagination.ApplyNewestFirst(query, "orders", cursor, limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPendingBefore returns pending orders created before cutoff, oldest first.
func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff.UTC()).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
