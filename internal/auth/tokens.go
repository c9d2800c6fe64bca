package auth

import (
	"context"
	"time"

	pkgAuth "github.com/farmconnect/farmconnect-backend/pkg/auth"
	"github.com/farmconnect/farmconnect-backend/pkg/auth/session"
	"github.com/farmconnect/farmconnect-backend/pkg/config"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/google/uuid"
)

type sessionManager interface {
	Generate(ctx context.Context, accessID string, userID uuid.UUID) (string, error)
	Rotate(ctx context.Context, oldAccessID string, userID uuid.UUID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// issueTokens mints an access token under accessID and, when refresh is empty,
// opens a new refresh session for it.
func issueTokens(ctx context.Context, sessions sessionManager, cfg config.JWTConfig, user *models.User, now time.Time, accessID, refresh string) (string, string, error) {
	if accessID == "" {
		accessID = session.NewAccessID()
	}
	accessToken, err := pkgAuth.MintAccessToken(cfg, now, pkgAuth.AccessTokenPayload{
		UserID:   user.ID,
		UserType: user.UserType,
		Username: user.Username,
		JTI:      accessID,
	})
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	if refresh == "" {
		refresh, err = sessions.Generate(ctx, accessID, user.ID)
		if err != nil {
			return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
		}
	}
	return accessToken, refresh, nil
}
