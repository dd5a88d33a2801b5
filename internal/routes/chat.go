package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tujenge/tujenge/internal/chat"
)

// RegisterChatRoutes wires the community chat.
func RegisterChatRoutes(r fiber.Router, h *chat.Handler) {
	r.Get("/chat", h.History)
	r.Post("/chat", h.Post)
}
