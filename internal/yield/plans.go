package yield

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/money"
)

// ErrUnknownPlan is returned for a plan name that is not in the catalogue.
var ErrUnknownPlan = errors.New("unknown plan")

// MinerPlan is a rentable miner paying DailyRate KES per full day.
type MinerPlan struct {
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	DailyRate decimal.Decimal `json:"dailyRate"`
}

// VaultPlan is a fixed-term investment product.
type VaultPlan struct {
	Name       string          `json:"name"`
	DailyRate  decimal.Decimal `json:"dailyRate"`
	TenureDays int             `json:"tenureDays"`
	Minimum    decimal.Decimal `json:"minimum"`
}

// Catalogue holds the purchasable plans.
type Catalogue struct {
	Miners []MinerPlan `json:"miners"`
	Vaults []VaultPlan `json:"vaults"`
}

// DefaultCatalogue is the built-in plan list.
func DefaultCatalogue() Catalogue {
	return Catalogue{
		Miners: []MinerPlan{
			{Name: "starter", Price: decimal.NewFromInt(500), DailyRate: decimal.NewFromInt(25)},
			{Name: "pro", Price: decimal.NewFromInt(2000), DailyRate: decimal.NewFromInt(110)},
			{Name: "elite", Price: decimal.NewFromInt(10000), DailyRate: decimal.NewFromInt(600)},
		},
		Vaults: []VaultPlan{
			{Name: "flex-7", DailyRate: decimal.RequireFromString("0.01"), TenureDays: 7, Minimum: decimal.NewFromInt(100)},
			{Name: "lock-30", DailyRate: decimal.RequireFromString("0.015"), TenureDays: 30, Minimum: decimal.NewFromInt(1000)},
		},
	}
}

// Miner looks up a miner plan by name, case-insensitively.
func (c Catalogue) Miner(name string) (MinerPlan, error) {
	for _, p := range c.Miners {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return MinerPlan{}, fmt.Errorf("%w: miner %q", ErrUnknownPlan, name)
}

// Vault looks up a vault plan by name, case-insensitively.
func (c Catalogue) Vault(name string) (VaultPlan, error) {
	for _, p := range c.Vaults {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return VaultPlan{}, fmt.Errorf("%w: vault %q", ErrUnknownPlan, name)
}

// minimumFor scales the KES minimum into another asset. Non-KES vaults only
// need a positive amount when no rate is available.
func (p VaultPlan) minimumFor(asset money.Asset, rates money.Rates) decimal.Decimal {
	if asset == money.Primary {
		return p.Minimum
	}
	converted, err := rates.Convert(money.Primary, asset, p.Minimum)
	if err != nil {
		return decimal.Zero
	}
	return converted
}
