package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
)

// DefaultLocation is stored on new farmer profiles until the farmer edits it.
const DefaultLocation = "Not Set"

// Repository reads and writes users and farmer profiles.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a copy bound to tx. A nil tx keeps the current handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func firstWhere[T any](ctx context.Context, db *gorm.DB, query string, args ...any) (*T, error) {
	var row T
	if err := db.WithContext(ctx).Where(query, args...).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail expects an already normalized address.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return firstWhere[models.User](ctx, r.db, "email = ?", email)
}

// FindByUsername matches case-insensitively.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return firstWhere[models.User](ctx, r.db, "LOWER(username) = LOWER(?)", username)
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return firstWhere[models.User](ctx, r.db, "id = ?", id)
}

// RecordLogin stamps last_login_at. A non-empty rehash replaces the stored
// password hash in the same statement.
func (r *Repository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time, rehash string) error {
	columns := map[string]any{"last_login_at": at.UTC()}
	if rehash != "" {
		columns["password_hash"] = rehash
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(columns).Error
}

// CreateDefaultFarmerProfile gives a new farmer the placeholder profile products hang off.
func (r *Repository) CreateDefaultFarmerProfile(ctx context.Context, user *models.User) (*models.FarmerProfile, error) {
	profile := &models.FarmerProfile{
		ID:       uuid.New(),
		UserID:   user.ID,
		FarmName: user.Username + "'s Farm",
		Location: DefaultLocation,
	}
	if err := r.db.WithContext(ctx).Omit("User").Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *Repository) FindFarmerProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.FarmerProfile, error) {
	return firstWhere[models.FarmerProfile](ctx, r.db, "user_id = ?", userID)
}

func (r *Repository) SaveFarmerProfile(ctx context.Context, profile *models.FarmerProfile) error {
	return r.db.WithContext(ctx).Omit("User").Save(profile).Error
}
