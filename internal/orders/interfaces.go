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

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindFarmerProfileIDByUserID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, at time.Time) (bool, error)
	RestoreStock(ctx context.Context, productID uuid.UUID, qty int) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}
