package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/middleware"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type cryptoWithdrawRequest struct {
	Asset   string          `json:"asset"`
	Amount  decimal.Decimal `json:"amount"`
	Address string          `json:"address"`
	PIN     string          `json:"pin"`
}

type transferRequest struct {
	To     string          `json:"to"`
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
	PIN    string          `json:"pin"`
}

type convertRequest struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// WithdrawCrypto records a pending crypto payout.
func (h *Handler) WithdrawCrypto(c *fiber.Ctx) error {
	var req cryptoWithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.WithdrawCrypto(c.UserContext(), CryptoWithdrawInput{
		Phone:   middleware.Phone(c),
		Asset:   req.Asset,
		Amount:  req.Amount,
		Address: req.Address,
		PIN:     req.PIN,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// Transfer moves an asset to another account.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Asset == "" {
		req.Asset = "KES"
	}
	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		From:   middleware.Phone(c),
		To:     req.To,
		Asset:  req.Asset,
		Amount: req.Amount,
		PIN:    req.PIN,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transfer_id": res.ID,
		"receiver":    res.Receiver,
		"transaction": res.Debit,
	})
}

// Convert swaps between asset buckets of the caller.
func (h *Handler) Convert(c *fiber.Ctx) error {
	var req convertRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.Convert(c.UserContext(), ConvertInput{
		Phone:  middleware.Phone(c),
		From:   req.From,
		To:     req.To,
		Amount: req.Amount,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"from":     res.From,
		"to":       res.To,
		"debited":  res.Debited,
		"credited": res.Credited,
		"rate":     res.Rate,
	})
}

// Rates lists the conversion table.
func (h *Handler) Rates(c *fiber.Ctx) error {
	out := make(map[string]decimal.Decimal, len(h.service.Rates()))
	for pair, rate := range h.service.Rates() {
		out[pair.String()] = rate
	}
	return c.JSON(out)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrSelfTransfer), errors.Is(err, ErrInvalidAddress):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return middleware.HTTPError(err)
	}
}
