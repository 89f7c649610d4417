package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/repodock/repodock/internal/domain"
)

// TokenValidator checks a bearer token and resolves the caller behind it.
// Implemented by service.AuthService.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*domain.UserContext, error)
}

// Auth creates a Fiber middleware that validates bearer tokens and injects a
// UserContext into the request context.
func Auth(validator TokenValidator) fiber.Handler {
	return func(c fiber.Ctx) error {
		var token string

		// Try Authorization header first
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				token = parts[1]
			}
		}

		// Fallback: ?token= query param (for SSE/EventSource which can't set headers)
		if token == "" {
			token = c.Query("token")
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization",
			})
		}

		uc, err := validator.Validate(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
			})
		}

		c.Locals("user", uc)
		c.Locals("token", token)

		return c.Next()
	}
}

// GetUserContext extracts the UserContext from Fiber locals.
func GetUserContext(c fiber.Ctx) *domain.UserContext {
	u, ok := c.Locals("user").(*domain.UserContext)
	if !ok {
		return nil
	}
	return u
}

// GetToken extracts the raw bearer token from Fiber locals. Logout needs it
// to revoke the session it belongs to.
func GetToken(c fiber.Ctx) string {
	t, _ := c.Locals("token").(string)
	return t
}
