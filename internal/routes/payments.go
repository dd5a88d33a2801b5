package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tujenge/tujenge/internal/payments"
)

// RegisterPaymentRoutes wires payment endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/withdrawals/crypto", h.WithdrawCrypto)
	r.Post("/transfers", h.Transfer)
	r.Post("/conversions", h.Convert)
}
