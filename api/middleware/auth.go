package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/farmconnect/farmconnect-backend/api/responses"
	pkgAuth "github.com/farmconnect/farmconnect-backend/pkg/auth"
	"github.com/farmconnect/farmconnect-backend/pkg/auth/session"
	"github.com/farmconnect/farmconnect-backend/pkg/config"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
)

type tokenParser func(config.JWTConfig, string) (*pkgAuth.AccessTokenClaims, error)

// tokenGate turns a bearer token into claims. sessions may be nil, in which
// case a revoked but unexpired token is still accepted.
type tokenGate struct {
	cfg      config.JWTConfig
	parse    tokenParser
	sessions session.AccessSessionChecker
}

// Auth requires a valid, unexpired access token backed by a live session.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return tokenGate{cfg: cfg, parse: pkgAuth.ParseAccessToken, sessions: sessions}.middleware(logg)
}

// AuthAllowExpired accepts expired tokens with a valid signature. Refresh and
// logout sit behind it and let the session store decide.
func AuthAllowExpired(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return tokenGate{cfg: cfg, parse: pkgAuth.ParseAccessTokenAllowExpired}.middleware(logg)
}

func (g tokenGate) verify(ctx context.Context, token string) (*pkgAuth.AccessTokenClaims, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := g.parse(g.cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no session id")
	}
	if g.sessions == nil {
		return claims, nil
	}

	live, err := g.sessions.HasSession(ctx, claims.ID)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	case !live:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired or revoked")
	}
	return claims, nil
}

func (g tokenGate) middleware(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			claims, err := g.verify(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			userID := claims.UserID.String()
			ctx := WithUserID(r.Context(), userID)
			ctx = WithRole(ctx, claims.UserType)
			ctx = WithAccessToken(ctx, token)
			if logg != nil {
				ctx = logg.WithActor(ctx, userID, string(claims.UserType))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
