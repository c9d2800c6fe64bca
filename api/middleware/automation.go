package middleware

import (
	"net/http"
	"strings"

	"github.com/farmconnect/farmconnect-backend/api/responses"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
	"github.com/farmconnect/farmconnect-backend/pkg/security"
)

const automationSecretHeader = "X-AUTO-SECRET"

// AutomationSecret guards machine-to-machine routes. With no secret configured
// every request is rejected.
func AutomationSecret(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	secret = strings.TrimSpace(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := strings.TrimSpace(r.Header.Get(automationSecretHeader))
			if secret == "" || provided == "" || !security.SecretsEqual(secret, provided) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid automation secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
