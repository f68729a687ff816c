package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civic-kit/report-service/internal/domain"
	apperrors "github.com/civic-kit/report-service/pkg/util/errorutil"
)

// RequireRole ensures the caller holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		actor := ActorFromContext(c)
		if _, exists := allowedSet[actor.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireStaff ensures the caller holds a municipal or liaison role.
func RequireStaff() fiber.Handler {
	return RequireRole(domain.StaffRoles...)
}

// RequireAuthenticated ensures the caller is not anonymous.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := ActorFromContext(c)
		if actor.ID == "" || actor.Role == domain.RoleAnonymous {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
