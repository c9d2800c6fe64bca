package middleware

import (
	"fmt"
	"net/http"

	"github.com/farmconnect/farmconnect-backend/api/responses"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
)

// RequireRole must run after Auth. Callers whose token was issued for a
// different user type get 403.
func RequireRole(role enums.UserType, logg *logger.Logger) func(http.Handler) http.Handler {
	message := fmt.Sprintf("endpoint is restricted to %s accounts", role)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch got := RoleFromContext(r.Context()); got {
			case string(role):
				next.ServeHTTP(w, r)
			case "":
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			default:
				err := pkgerrors.New(pkgerrors.CodeForbidden, message).
					WithDetails(map[string]any{"required_role": string(role)})
				responses.WriteError(r.Context(), logg, w, err)
			}
		})
	}
}
