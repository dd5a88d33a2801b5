package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tujenge/tujenge/internal/funding"
)

// RegisterCallbackRoutes wires the unauthenticated gateway webhook.
func RegisterCallbackRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/payments/callback", h.Callback)
	r.Post("/mpesa/callback", h.Callback)
}

// RegisterFundingRoutes wires STK deposits and KES withdrawals.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/deposits/stk", h.InitiateDeposit)
	r.Post("/withdrawals", h.Withdraw)
}
