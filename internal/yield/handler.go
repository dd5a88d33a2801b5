package yield

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/middleware"
)

// Handler exposes miner and vault purchases.
type Handler struct {
	service *Service
}

// NewHandler constructs a yield handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type rentMinerRequest struct {
	Plan string `json:"plan"`
}

type investRequest struct {
	Plan   string          `json:"plan"`
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

// Plans lists the catalogue.
func (h *Handler) Plans(c *fiber.Ctx) error {
	return c.JSON(h.service.Catalogue())
}

// RentMiner buys a miner for the caller.
func (h *Handler) RentMiner(c *fiber.Ctx) error {
	var req rentMinerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	miner, err := h.service.RentMiner(c.UserContext(), middleware.Phone(c), req.Plan)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(miner)
}

// OpenInvestment opens a vault for the caller.
func (h *Handler) OpenInvestment(c *fiber.Ctx) error {
	var req investRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.service.OpenInvestment(c.UserContext(), InvestInput{
		Phone:  middleware.Phone(c),
		Plan:   req.Plan,
		Asset:  req.Asset,
		Amount: req.Amount,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(inv)
}

func mapError(err error) error {
	if errors.Is(err, ErrUnknownPlan) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return middleware.HTTPError(err)
}
