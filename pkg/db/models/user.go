package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/farmconnect/farmconnect-backend/pkg/enums"
)

// User is the login identity for both farmers and buyers.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Username     string         `gorm:"column:username;not null;uniqueIndex"`
	Email        string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	UserType     enums.UserType `gorm:"column:user_type;type:user_type;not null"`
	Phone        *string        `gorm:"column:phone"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
