// Package money holds the asset registry and the fixed-point rules every
// balance-affecting computation goes through.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Asset is an upper-case balance bucket symbol.
type Asset string

const (
	KES  Asset = "KES"
	USDT Asset = "USDT"
	BTC  Asset = "BTC"
	ETH  Asset = "ETH"
)

// Primary is the fiat asset deposits and withdrawals settle in.
const Primary = KES

var (
	// ErrInvalidAmount is returned for zero, negative or malformed amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidAsset is returned for symbols outside the registry.
	ErrInvalidAsset = errors.New("invalid asset")
	// ErrInvalidPair is returned when no exchange rate exists for a pair.
	ErrInvalidPair = errors.New("invalid asset pair")
)

var scales = map[Asset]int32{
	KES:  2,
	USDT: 6,
	BTC:  8,
	ETH:  8,
}

// Assets lists every supported bucket in display order.
func Assets() []Asset {
	return []Asset{KES, USDT, BTC, ETH}
}

// ParseAsset normalises a symbol and checks it against the registry.
func ParseAsset(symbol string) (Asset, error) {
	a := Asset(strings.ToUpper(strings.TrimSpace(symbol)))
	if _, ok := scales[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAsset, symbol)
	}
	return a, nil
}

// Valid reports whether the asset is registered.
func (a Asset) Valid() bool {
	_, ok := scales[a]
	return ok
}

// Scale is the number of decimal places stored for the asset.
func (a Asset) Scale() int32 {
	return scales[a]
}

// Round rounds half away from zero to the asset scale.
func (a Asset) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(a.Scale())
}

// Truncate drops digits beyond the asset scale.
func (a Asset) Truncate(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(a.Scale())
}

// ParseAmount parses a strictly positive decimal.
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a decimal", ErrInvalidAmount, raw)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	return d, nil
}

// Positive checks an already-decoded amount.
func Positive(d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	return nil
}
