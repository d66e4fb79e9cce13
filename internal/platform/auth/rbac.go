package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Role names used across the API.
const (
	RoleAdmin     = "admin"
	RoleVet       = "vet"
	RoleAssistant = "assistant"
)

// RequireRole rejects requests whose token does not carry at least one of
// the given roles. Admin always passes.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			have := RolesFromContext(c.Request().Context())
			for _, r := range have {
				if r == RoleAdmin || allowed[r] {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		}
	}
}
