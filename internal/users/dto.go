package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID            uuid.UUID         `json:"id"`
	Username      string            `json:"username"`
	Email         string            `json:"email"`
	UserType      enums.UserType    `json:"user_type"`
	Phone         *string           `json:"phone,omitempty"`
	LastLoginAt   *time.Time        `json:"last_login_at,omitempty"`
	FarmerProfile *FarmerProfileDTO `json:"farmer_profile,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

type FarmerProfileDTO struct {
	ID          uuid.UUID `json:"id"`
	FarmName    string    `json:"farm_name"`
	Location    string    `json:"location"`
	Description *string   `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username     string
	Email        string
	PasswordHash string
	UserType     enums.UserType
	Phone        *string
}

// UpdateFarmerProfileInput replaces the editable farm fields.
type UpdateFarmerProfileInput struct {
	FarmName    string  `json:"farm_name" validate:"required,max=200"`
	Location    string  `json:"location" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		UserType:    u.UserType,
		Phone:       u.Phone,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func ProfileFromModel(p *models.FarmerProfile) *FarmerProfileDTO {
	if p == nil {
		return nil
	}
	return &FarmerProfileDTO{
		ID:          p.ID,
		FarmName:    p.FarmName,
		Location:    p.Location,
		Description: p.Description,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:           uuid.New(),
		Username:     c.Username,
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		UserType:     c.UserType,
		Phone:        c.Phone,
	}
}
