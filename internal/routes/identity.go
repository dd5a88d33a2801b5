package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tujenge/tujenge/internal/identity"
)

// RegisterIdentityRoutes wires public registration and login.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler, loginLimiter fiber.Handler) {
	r.Post("/register", h.Register)
	r.Post("/login", loginLimiter, h.Login)
}

// RegisterProfileRoutes wires the authenticated self-service endpoints.
func RegisterProfileRoutes(r fiber.Router, h *identity.Handler) {
	r.Get("/me", h.Me)
	r.Post("/me/pin", h.SetPIN)
	r.Post("/me/notifications/read", h.MarkNotificationsRead)
}
