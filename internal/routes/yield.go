package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tujenge/tujenge/internal/yield"
)

// RegisterYieldRoutes wires miner and vault purchases.
func RegisterYieldRoutes(r fiber.Router, h *yield.Handler) {
	r.Post("/miners", h.RentMiner)
	r.Post("/investments", h.OpenInvestment)
}
