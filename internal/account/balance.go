package account

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/money"
)

// Balance returns the gross balance of an asset bucket.
func (a *Account) Balance(asset money.Asset) decimal.Decimal {
	if a.Balances == nil {
		return decimal.Zero
	}
	return a.Balances[asset]
}

// Reserve is the locked floor of an asset. Only the primary fiat asset carries one.
func (a *Account) Reserve(asset money.Asset) decimal.Decimal {
	if asset == money.Primary {
		return a.LockedReserve
	}
	return decimal.Zero
}

// Spendable is balance minus reserve, never negative.
func (a *Account) Spendable(asset money.Asset) decimal.Decimal {
	s := a.Balance(asset).Sub(a.Reserve(asset))
	if s.IsNegative() {
		return decimal.Zero
	}
	return s
}

// Credit increases a bucket by amount rounded to the asset scale.
func (a *Account) Credit(asset money.Asset, amount decimal.Decimal) error {
	amount, err := checkAmount(asset, amount)
	if err != nil {
		return err
	}
	if a.Balances == nil {
		a.Balances = make(map[money.Asset]decimal.Decimal)
	}
	a.Balances[asset] = a.Balances[asset].Add(amount)
	return nil
}

// Debit decreases a bucket, refusing to dip into the reserve.
func (a *Account) Debit(asset money.Asset, amount decimal.Decimal) error {
	amount, err := checkAmount(asset, amount)
	if err != nil {
		return err
	}
	if a.Spendable(asset).LessThan(amount) {
		return fmt.Errorf("%w: %s spendable %s, requested %s", ErrInsufficientFunds, asset, a.Spendable(asset), amount)
	}
	a.Balances[asset] = a.Balances[asset].Sub(amount)
	return nil
}

// LockReserve moves part of the KES balance behind the withdrawal floor. The
// reserve may exceed the balance momentarily only if the caller credits first.
func (a *Account) LockReserve(amount decimal.Decimal) error {
	amount, err := checkAmount(money.Primary, amount)
	if err != nil {
		return err
	}
	a.LockedReserve = a.LockedReserve.Add(amount)
	return nil
}

// ReleaseReserve unlocks part of the reserve back into spendable balance.
func (a *Account) ReleaseReserve(amount decimal.Decimal) error {
	amount, err := checkAmount(money.Primary, amount)
	if err != nil {
		return err
	}
	if a.LockedReserve.LessThan(amount) {
		return fmt.Errorf("%w: locked %s, requested %s", ErrInsufficientReserve, a.LockedReserve, amount)
	}
	a.LockedReserve = a.LockedReserve.Sub(amount)
	return nil
}

// Activate flips the activation gate and locks the reserve. It reports whether
// anything changed; an activated account is never touched again.
func (a *Account) Activate(reserve decimal.Decimal) (bool, error) {
	if a.IsActivated {
		return false, nil
	}
	if reserve.IsPositive() {
		if err := a.LockReserve(reserve); err != nil {
			return false, err
		}
	}
	a.IsActivated = true
	return true, nil
}

func checkAmount(asset money.Asset, amount decimal.Decimal) (decimal.Decimal, error) {
	if !asset.Valid() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAsset, asset)
	}
	amount = asset.Round(amount)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, amount)
	}
	return amount, nil
}
