package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tujenge/tujenge/internal/admin"
)

// RegisterAdminRoutes wires the operator console.
func RegisterAdminRoutes(r fiber.Router, h *admin.Handler) {
	r.Get("/users", h.ListUsers)
	r.Delete("/users/:phone", h.DeleteUser)
	r.Post("/users/:phone/adjust", h.Adjust)
	r.Post("/users/:phone/reserve/release", h.ReleaseReserve)
	r.Post("/users/:phone/transactions/:txId/status", h.SetTransactionStatus)
	r.Post("/broadcast", h.Broadcast)
	r.Get("/sweeps", h.Sweeps)
	r.Post("/sweeps/:name/run", h.RunSweep)
}
