package admin

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/middleware"
	"github.com/tujenge/tujenge/internal/yield"
)

// Handler exposes the admin console under the shared-key guard.
type Handler struct {
	service   *Service
	scheduler *yield.Scheduler
}

// NewHandler constructs an admin handler.
func NewHandler(service *Service, scheduler *yield.Scheduler) *Handler {
	return &Handler{service: service, scheduler: scheduler}
}

type adjustRequest struct {
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

type releaseRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type broadcastRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// ListUsers returns all accounts.
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(c.UserContext())
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(users)
}

// DeleteUser removes an account.
func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	if err := h.service.DeleteUser(c.UserContext(), c.Params("phone")); err != nil {
		return middleware.HTTPError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Adjust applies a signed balance correction.
func (h *Handler) Adjust(c *fiber.Ctx) error {
	var req adjustRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Adjust(c.UserContext(), AdjustInput{
		Phone:  c.Params("phone"),
		Asset:  req.Asset,
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// ReleaseReserve unlocks reserve funds.
func (h *Handler) ReleaseReserve(c *fiber.Ctx) error {
	var req releaseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	remaining, err := h.service.ReleaseReserve(c.UserContext(), c.Params("phone"), req.Amount)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(fiber.Map{"lockedReserve": remaining})
}

// SetTransactionStatus settles a pending transaction.
func (h *Handler) SetTransactionStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.SetTransactionStatus(c.UserContext(), c.Params("phone"), c.Params("txId"), req.Status)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(tx)
}

// Broadcast notifies every account.
func (h *Handler) Broadcast(c *fiber.Ctx) error {
	var req broadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	n, err := h.service.Broadcast(c.UserContext(), req.Title, req.Message)
	if errors.Is(err, ErrEmptyBroadcast) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(fiber.Map{"recipients": n})
}

// Sweeps reports run metadata of the periodic tasks.
func (h *Handler) Sweeps(c *fiber.Ctx) error {
	return c.JSON(h.scheduler.Statuses())
}

// RunSweep triggers a sweep synchronously.
func (h *Handler) RunSweep(c *fiber.Ctx) error {
	task, ok := h.scheduler.Task(c.Params("name"))
	if !ok {
		return fiber.NewError(http.StatusNotFound, "unknown sweep")
	}
	res, err := task.Run(c.UserContext())
	switch {
	case errors.Is(err, yield.ErrAlreadyRunning):
		return fiber.NewError(http.StatusConflict, err.Error())
	case err != nil:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"accounts": res.Accounts,
		"credited": res.Credited,
		"failed":   res.Failed,
		"status":   task.Status(),
	})
}
