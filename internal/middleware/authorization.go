package middleware

import (
	"net/http"
	"slices"

	"go.uber.org/zap"
)

// StaffRoles may change the catalog
var StaffRoles = []string{"admin", "employee"}

// RequireRole lets through only users whose role is one of allowedRoles.
// It must run after AuthMiddleware.
func RequireRole(logger *zap.Logger, allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Error("Role check used without authentication", zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			if !slices.Contains(allowedRoles, role) {
				logger.Warn("User role not authorized",
					zap.String("role", role),
					zap.Strings("allowed_roles", allowedRoles),
				)
				RespondWithError(w, http.StatusUnauthorized, "You are not allowed to do that!")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
