package middleware

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tujenge/tujenge/internal/account"
	"github.com/tujenge/tujenge/internal/ledger"
)

// HTTPError maps account and store errors onto fiber errors. Errors that are
// already *fiber.Error pass through unchanged.
func HTTPError(err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	return fiber.NewError(StatusFor(err), err.Error())
}

// StatusFor returns the HTTP status of a domain error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, account.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, account.ErrInvalidAmount),
		errors.Is(err, account.ErrInvalidAsset),
		errors.Is(err, account.ErrInvalidPair),
		errors.Is(err, account.ErrBelowMinimum):
		return http.StatusBadRequest
	case errors.Is(err, account.ErrInsufficientFunds),
		errors.Is(err, account.ErrInsufficientReserve),
		errors.Is(err, account.ErrAccountExists),
		errors.Is(err, account.ErrInvalidStatus),
		errors.Is(err, account.ErrDuplicateExternalEvent):
		return http.StatusConflict
	case errors.Is(err, account.ErrNotActivated),
		errors.Is(err, account.ErrInvalidPIN):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
