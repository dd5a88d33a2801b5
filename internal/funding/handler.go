package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tujenge/tujenge/internal/middleware"
)

// Handler exposes HTTP endpoints for gateway deposits and withdrawals.
type Handler struct {
	service   *Service
	processor *WebhookProcessor
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service, processor *WebhookProcessor) *Handler {
	return &Handler{service: service, processor: processor}
}

// Callback acknowledges a gateway confirmation immediately and processes it
// in the background. The response never depends on the outcome.
func (h *Handler) Callback(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	h.processor.Submit(body)
	return c.Status(http.StatusOK).JSON(accepted)
}

// InitiateDeposit sends an STK push prompt to the caller's phone.
func (h *Handler) InitiateDeposit(c *fiber.Ctx) error {
	var req STKPushRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.service.InitiateDeposit(c.UserContext(), middleware.Phone(c), req.Amount)
	if err != nil {
		if errors.Is(err, ErrUpstreamGateway) {
			return fiber.NewError(http.StatusBadGateway, "payment gateway unavailable, please retry")
		}
		return middleware.HTTPError(err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"reference": resp.Reference,
		"message":   "Check your phone to complete the payment",
	})
}

// Withdraw records a pending KES payout.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		Phone:  middleware.Phone(c),
		Amount: req.Amount,
		PIN:    req.PIN,
	})
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}
