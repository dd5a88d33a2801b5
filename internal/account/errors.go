package account

import (
	"errors"

	"github.com/tujenge/tujenge/internal/money"
)

var (
	// ErrNotFound indicates the account or transaction does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAccountExists is returned when registering a phone twice.
	ErrAccountExists = errors.New("account already exists")
	// ErrInsufficientFunds means spendable balance cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientReserve means a reserve release exceeds the locked amount.
	ErrInsufficientReserve = errors.New("insufficient reserve")
	// ErrDuplicateExternalEvent means the transaction id is already recorded.
	ErrDuplicateExternalEvent = errors.New("duplicate external event")
	// ErrNotActivated guards operations that need a qualifying deposit first.
	ErrNotActivated = errors.New("account not activated")
	// ErrBelowMinimum is returned for withdrawals under the configured floor.
	ErrBelowMinimum = errors.New("amount below minimum")
	// ErrInvalidPIN is returned when the withdrawal PIN does not match.
	ErrInvalidPIN = errors.New("invalid withdrawal PIN")
	// ErrInvalidStatus is returned for disallowed transaction status transitions.
	ErrInvalidStatus = errors.New("invalid transaction status")

	ErrInvalidAmount = money.ErrInvalidAmount
	ErrInvalidAsset  = money.ErrInvalidAsset
	ErrInvalidPair   = money.ErrInvalidPair
)
