// Package yield sells miners and vaults and runs the periodic sweeps that pay
// them out.
package yield

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/account"
	"github.com/tujenge/tujenge/internal/ledger"
	"github.com/tujenge/tujenge/internal/metrics"
	"github.com/tujenge/tujenge/internal/money"
)

// Service owns yield products and their sweeps.
type Service struct {
	store     ledger.Store
	catalogue Catalogue
	rates     money.Rates
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewService constructs a yield service.
func NewService(store ledger.Store, catalogue Catalogue, rates money.Rates, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:     store,
		catalogue: catalogue,
		rates:     rates,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Catalogue returns the purchasable plans.
func (s *Service) Catalogue() Catalogue {
	return s.catalogue
}

// RentMiner debits the plan price in KES and attaches a new miner.
func (s *Service) RentMiner(ctx context.Context, phone, plan string) (account.Miner, error) {
	miner, err := s.rentMiner(ctx, phone, plan)
	s.metrics.ObserveOperation("miner_rental", err)
	return miner, err
}

func (s *Service) rentMiner(ctx context.Context, phone, plan string) (account.Miner, error) {
	p, err := s.catalogue.Miner(plan)
	if err != nil {
		return account.Miner{}, err
	}
	now := s.now().UTC()
	miner := account.Miner{
		ID:        uuid.NewString(),
		Plan:      p.Name,
		DailyRate: p.DailyRate,
		Price:     p.Price,
		StartTime: now,
	}
	_, err = s.store.Update(ctx, phone, func(acc *account.Account) error {
		if !acc.IsActivated {
			return account.ErrNotActivated
		}
		if err := acc.Debit(money.Primary, p.Price); err != nil {
			return err
		}
		acc.Miners = append(acc.Miners, miner)
		acc.Append(account.Transaction{
			ID:        "MNR-" + miner.ID,
			Type:      account.TypeMinerRental,
			Asset:     money.Primary,
			Amount:    p.Price.Neg(),
			Timestamp: now,
			Detail:    p.Name + " miner",
		})
		return nil
	})
	if err != nil {
		return account.Miner{}, err
	}
	return miner, nil
}

// InvestInput opens a vault of the named plan.
type InvestInput struct {
	Phone  string
	Plan   string
	Asset  string
	Amount decimal.Decimal
}

// OpenInvestment locks principal from the asset bucket into a new vault.
func (s *Service) OpenInvestment(ctx context.Context, in InvestInput) (account.Investment, error) {
	inv, err := s.openInvestment(ctx, in)
	s.metrics.ObserveOperation("investment", err)
	return inv, err
}

func (s *Service) openInvestment(ctx context.Context, in InvestInput) (account.Investment, error) {
	p, err := s.catalogue.Vault(in.Plan)
	if err != nil {
		return account.Investment{}, err
	}
	if in.Asset == "" {
		in.Asset = string(money.Primary)
	}
	asset, err := money.ParseAsset(in.Asset)
	if err != nil {
		return account.Investment{}, err
	}
	amount := asset.Round(in.Amount)
	if err := money.Positive(amount); err != nil {
		return account.Investment{}, err
	}
	if floor := p.minimumFor(asset, s.rates); amount.LessThan(floor) {
		return account.Investment{}, fmt.Errorf("%w: %s needs at least %s %s", account.ErrBelowMinimum, p.Name, floor, asset)
	}
	now := s.now().UTC()
	inv := account.Investment{
		ID:         uuid.NewString(),
		Plan:       p.Name,
		Asset:      asset,
		Principal:  amount,
		DailyRate:  p.DailyRate,
		TenureDays: p.TenureDays,
		StartTime:  now,
		EndTime:    now.Add(time.Duration(p.TenureDays) * Cycle),
	}
	_, err = s.store.Update(ctx, in.Phone, func(acc *account.Account) error {
		if !acc.IsActivated {
			return account.ErrNotActivated
		}
		if err := acc.Debit(asset, amount); err != nil {
			return err
		}
		acc.Investments = append(acc.Investments, inv)
		acc.Append(account.Transaction{
			ID:        "VLT-" + inv.ID,
			Type:      account.TypeInvestment,
			Asset:     asset,
			Amount:    amount.Neg(),
			Timestamp: now,
			Detail:    fmt.Sprintf("%s vault, %d days", p.Name, p.TenureDays),
		})
		return nil
	})
	if err != nil {
		return account.Investment{}, err
	}
	return inv, nil
}
