// Package middleware provides the request authentication guards.
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/listkeep/invite-service/internal/auth"
)

// claimsKey is the fiber locals key the parsed claims are stored under.
const claimsKey = "claims"

// TokenParser verifies an access token string.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Protected returns a middleware that requires a valid Bearer token and
// stores its claims in the request locals.
func Protected(parser TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing credentials"})
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		if tokenStr == header {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization header"})
		}

		claims, err := parser.Parse(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// AdminOnly returns a middleware that requires the admin claim.
// Must run after Protected.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := ClaimsFromCtx(c)
		if claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing credentials"})
		}
		if !claims.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
		}
		return c.Next()
	}
}

// ClaimsFromCtx returns the claims stored by Protected, or nil.
func ClaimsFromCtx(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(claimsKey).(*auth.Claims)
	return claims
}

// SetClaims stores claims in the request locals.
// This is primarily used for testing handlers without the full middleware chain.
func SetClaims(c *fiber.Ctx, claims *auth.Claims) {
	c.Locals(claimsKey, claims)
}
