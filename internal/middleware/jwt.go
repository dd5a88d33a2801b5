package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tujenge/tujenge/internal/auth"
)

// LocalPhone is the fiber.Locals key holding the authenticated account phone.
const LocalPhone = "phone"

// JWTAuth validates bearer access tokens and stores the subject phone in locals.
func JWTAuth(issuer *auth.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		phone, err := issuer.Verify(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(LocalPhone, phone)
		return c.Next()
	}
}

// Phone returns the authenticated account phone set by JWTAuth.
func Phone(c *fiber.Ctx) string {
	phone, _ := c.Locals(LocalPhone).(string)
	return phone
}
