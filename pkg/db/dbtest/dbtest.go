// Package dbtest opens isolated in-memory SQLite databases carrying the
// marketplace schema, for repository and service tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open returns a fresh database with every table created.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	require.NoError(t, db.ApplySQLiteSchema(context.Background(), conn))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return conn
}

// MustCreateUser inserts a user of the given type.
func MustCreateUser(t *testing.T, conn *gorm.DB, userType enums.UserType) *models.User {
	t.Helper()
	suffix := uuid.NewString()[:8]
	user := &models.User{
		ID:           uuid.New(),
		Username:     fmt.Sprintf("%s_%s", userType, suffix),
		Email:        fmt.Sprintf("%s_%s@example.com", userType, suffix),
		PasswordHash: "hash",
		UserType:     userType,
	}
	require.NoError(t, conn.Create(user).Error)
	return user
}

// MustCreateFarmer inserts a farmer user together with its profile.
func MustCreateFarmer(t *testing.T, conn *gorm.DB) (*models.User, *models.FarmerProfile) {
	t.Helper()
	user := MustCreateUser(t, conn, enums.UserTypeFarmer)
	profile := &models.FarmerProfile{
		ID:       uuid.New(),
		UserID:   user.ID,
		FarmName: user.Username + "'s Farm",
		Location: "Not Set",
	}
	require.NoError(t, conn.Create(profile).Error)
	return user, profile
}

// MustCreateCategory inserts a category with the given name.
func MustCreateCategory(t *testing.T, conn *gorm.DB, name string) *models.Category {
	t.Helper()
	category := &models.Category{ID: uuid.New(), Name: name}
	require.NoError(t, conn.Create(category).Error)
	return category
}

// MustCreateProduct inserts a product owned by farmerID with the given price and stock.
func MustCreateProduct(t *testing.T, conn *gorm.DB, farmerID uuid.UUID, price string, qty int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:                uuid.New(),
		FarmerID:          farmerID,
		Name:              "Product " + uuid.NewString()[:6],
		Price:             decimal.RequireFromString(price),
		QuantityAvailable: qty,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

// MustCreateOrder inserts an order in status with one item per product at its current price.
func MustCreateOrder(t *testing.T, conn *gorm.DB, buyerID, farmerID uuid.UUID, status enums.OrderStatus, lines map[*models.Product]int) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:       uuid.New(),
		BuyerID:  buyerID,
		FarmerID: farmerID,
		Status:   status,
	}
	for product, qty := range lines {
		order.Items = append(order.Items, models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   product.ID,
			Quantity:    qty,
			PriceAtTime: product.Price,
		})
	}
	order.TotalAmount = order.ItemsTotal()
	require.NoError(t, conn.Create(order).Error)
	return order
}

// ProductStock reloads the current stock of a product.
func ProductStock(t *testing.T, conn *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	require.NoError(t, conn.First(&product, "id = ?", productID).Error)
	return product.QuantityAvailable
}

// Count returns the row count of model filtered by the optional where clause.
func Count(t *testing.T, conn *gorm.DB, model any, where ...any) int64 {
	t.Helper()
	q := conn.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	var n int64
	require.NoError(t, q.Count(&n).Error)
	return n
}
