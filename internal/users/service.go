// Package users serves the account and farmer-profile reads and edits that
// sit outside authentication.
package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
)

const (
	maxFarmFieldLen   = 200
	maxDescriptionLen = 2000
)

type Service interface {
	GetMe(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateFarmerProfile(ctx context.Context, userID uuid.UUID, input UpdateFarmerProfileInput) (*FarmerProfileDTO, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetMe(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	dto := FromModel(user)
	if user.UserType == enums.UserTypeFarmer {
		profile, err := s.repo.FindFarmerProfileByUserID(ctx, userID)
		if err != nil && !db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farmer profile")
		}
		dto.FarmerProfile = ProfileFromModel(profile)
	}
	return dto, nil
}

func (s *service) UpdateFarmerProfile(ctx context.Context, userID uuid.UUID, input UpdateFarmerProfileInput) (*FarmerProfileDTO, error) {
	farmName := strings.TrimSpace(input.FarmName)
	location := strings.TrimSpace(input.Location)
	if farmName == "" || len(farmName) > maxFarmFieldLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm_name must be 1-200 characters")
	}
	if location == "" || len(location) > maxFarmFieldLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location must be 1-200 characters")
	}
	var description *string
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		if len(trimmed) > maxDescriptionLen {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "description too long")
		}
		if trimmed != "" {
			description = &trimmed
		}
	}

	profile, err := s.repo.FindFarmerProfileByUserID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "farmer profile required")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farmer profile")
	}
	profile.FarmName = farmName
	profile.Location = location
	profile.Description = description
	if err := s.repo.SaveFarmerProfile(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save farmer profile")
	}
	return ProfileFromModel(profile), nil
}
