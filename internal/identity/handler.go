package identity

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tujenge/tujenge/internal/middleware"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Phone      string `json:"phone"`
	FullName   string `json:"fullName"`
	Password   string `json:"password"`
	ReferredBy string `json:"referredBy"`
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type pinRequest struct {
	CurrentPIN string `json:"currentPin"`
	PIN        string `json:"pin"`
}

// Register handles user onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	profile, err := h.service.Register(c.UserContext(), RegisterInput{
		Phone:      req.Phone,
		FullName:   req.FullName,
		Password:   req.Password,
		ReferredBy: req.ReferredBy,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(profile)
}

// Login verifies credentials and returns a session.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	session, err := h.service.Login(c.UserContext(), req.Phone, req.Password)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(session)
}

// Me returns the caller's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	profile, err := h.service.Profile(c.UserContext(), middleware.Phone(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(profile)
}

// SetPIN sets the caller's withdrawal PIN.
func (h *Handler) SetPIN(c *fiber.Ctx) error {
	var req pinRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.SetPIN(c.UserContext(), middleware.Phone(c), req.CurrentPIN, req.PIN); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// MarkNotificationsRead clears the caller's unread count.
func (h *Handler) MarkNotificationsRead(c *fiber.Ctx) error {
	changed, err := h.service.MarkNotificationsRead(c.UserContext(), middleware.Phone(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"marked": changed})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrInvalidRegistration):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return middleware.HTTPError(err)
	}
}
