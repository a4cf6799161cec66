package auth

import (
	"slices"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

// RequireRole lets the request through when the principal holds one of roles.
// With no roles it only demands an authenticated principal.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(roles) > 0 && !slices.Contains(roles, principal.User.Role) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

func RequireAuthenticated() fiber.Handler {
	return RequireRole()
}
