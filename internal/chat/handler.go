package chat

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tujenge/tujenge/internal/ledger"
	"github.com/tujenge/tujenge/internal/middleware"
)

// Handler serves the community chat.
type Handler struct {
	board Board
	store ledger.Store
	limit int
}

// NewHandler constructs a chat handler returning at most limit messages.
func NewHandler(board Board, store ledger.Store, limit int) *Handler {
	if limit <= 0 {
		limit = 50
	}
	return &Handler{board: board, store: store, limit: limit}
}

type postRequest struct {
	Text string `json:"text"`
}

// History returns recent messages, oldest first.
func (h *Handler) History(c *fiber.Ctx) error {
	msgs, err := h.board.Recent(c.UserContext(), h.limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(msgs)
}

// Post appends a message signed with the caller's display name.
func (h *Handler) Post(c *fiber.Ctx) error {
	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acc, err := h.store.Get(c.UserContext(), middleware.Phone(c))
	if err != nil {
		return middleware.HTTPError(err)
	}
	msg, err := NewMessage(acc.Phone, acc.FullName, req.Text, time.Now())
	if errors.Is(err, ErrEmptyMessage) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	if err := h.board.Append(c.UserContext(), msg); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(msg)
}
