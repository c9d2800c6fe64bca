package auth

import (
	"context"
	"testing"

	"github.com/farmconnect/farmconnect-backend/internal/users"
	"github.com/farmconnect/farmconnect-backend/pkg/config"
	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/db/dbtest"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/security"
	"gorm.io/gorm"
)

func newRegisterService(t *testing.T) (RegisterService, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewRegisterService(RegisterServiceParams{
		DB:             db.Wrap(conn),
		Users:          users.NewRepository(conn),
		SessionManager: newStubSessionManager(),
		JWTConfig:      testJWTConfig,
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("build register service: %v", err)
	}
	return svc, conn
}

func TestRegisterFarmerCreatesDefaultProfile(t *testing.T) {
	svc, conn := newRegisterService(t)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Username: "greenacres",
		Email:    " Green@Example.com ",
		Password: "harvest-2024",
		UserType: enums.UserTypeFarmer,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("expected tokens, got %+v", resp)
	}
	if resp.User.Email != "green@example.com" {
		t.Fatalf("expected normalized email, got %s", resp.User.Email)
	}

	var stored models.User
	if err := conn.First(&stored, "id = ?", resp.User.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	ok, err := security.VerifyPassword("harvest-2024", stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("expected stored argon2 hash to verify")
	}

	var profile models.FarmerProfile
	if err := conn.First(&profile, "user_id = ?", stored.ID).Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if profile.FarmName != "greenacres's Farm" || profile.Location != users.DefaultLocation {
		t.Fatalf("unexpected default profile: %+v", profile)
	}
}

func TestRegisterBuyerHasNoProfile(t *testing.T) {
	svc, conn := newRegisterService(t)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Username: "shopper",
		Email:    "shopper@example.com",
		Password: "basket-123",
		UserType: enums.UserTypeBuyer,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if n := dbtest.Count(t, conn, &models.FarmerProfile{}, "user_id = ?", resp.User.ID); n != 0 {
		t.Fatalf("expected no farmer profile, got %d", n)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, _ := newRegisterService(t)
	ctx := context.Background()
	base := RegisterRequest{Username: "shopper", Email: "shopper@example.com", Password: "basket-123", UserType: enums.UserTypeBuyer}
	if _, err := svc.Register(ctx, base); err != nil {
		t.Fatalf("register: %v", err)
	}

	sameEmail := base
	sameEmail.Username = "other"
	_, err := svc.Register(ctx, sameEmail)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for email, got %v", err)
	}

	sameUsername := base
	sameUsername.Email = "other@example.com"
	sameUsername.Username = "Shopper"
	_, err = svc.Register(ctx, sameUsername)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for username, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newRegisterService(t)
	cases := map[string]RegisterRequest{
		"weak password": {Username: "abc", Email: "a@example.com", Password: "short", UserType: enums.UserTypeBuyer},
		"bad username":  {Username: "a b", Email: "a@example.com", Password: "basket-123", UserType: enums.UserTypeBuyer},
		"bad type":      {Username: "abc", Email: "a@example.com", Password: "basket-123", UserType: "admin"},
		"no email":      {Username: "abc", Email: " ", Password: "basket-123", UserType: enums.UserTypeBuyer},
	}
	for name, req := range cases {
		_, err := svc.Register(context.Background(), req)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}
