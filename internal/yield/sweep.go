package yield

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/account"
	"github.com/tujenge/tujenge/internal/money"
)

// Cycle is the mining payout period.
const Cycle = 24 * time.Hour

// SweepResult summarises one pass over the ledger.
type SweepResult struct {
	Accounts int
	Credited int
	Failed   int
}

// MiningSweep pays every miner for each full cycle elapsed since its last
// credit. Failures on one account are logged and counted; the sweep continues.
func (s *Service) MiningSweep(ctx context.Context) (SweepResult, error) {
	accounts, err := s.store.ListWithMiners(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list miners: %w", err)
	}
	now := s.now().UTC()
	res := SweepResult{Accounts: len(accounts)}
	for _, acc := range accounts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		paid, err := s.mineAccount(ctx, acc.Phone, now)
		if err != nil {
			res.Failed++
			s.logger.Warn("mining payout failed", "phone", acc.Phone, "error", err)
			continue
		}
		if paid {
			res.Credited++
		}
	}
	return res, nil
}

func (s *Service) mineAccount(ctx context.Context, phone string, now time.Time) (bool, error) {
	var total decimal.Decimal
	_, err := s.store.Update(ctx, phone, func(acc *account.Account) error {
		total = decimal.Zero
		for i := range acc.Miners {
			m := &acc.Miners[i]
			base := m.StartTime
			if m.LastCredit != nil {
				base = *m.LastCredit
			}
			elapsed := now.Sub(base)
			if elapsed < Cycle {
				continue
			}
			cycles := int64(elapsed / Cycle)
			next := base.Add(time.Duration(cycles) * Cycle)
			m.LastCredit = &next
			amount := money.Primary.Round(m.DailyRate.Mul(decimal.NewFromInt(cycles)))
			if !amount.IsPositive() {
				continue
			}
			_, err := acc.AppendIdempotent(account.Transaction{
				ID:        fmt.Sprintf("MINE-%s-%d", m.ID, next.Unix()),
				Type:      account.TypeMiningPayout,
				Asset:     money.Primary,
				Amount:    amount,
				Timestamp: now,
				Detail:    fmt.Sprintf("%s miner, %d day(s)", m.Plan, cycles),
			})
			if errors.Is(err, account.ErrDuplicateExternalEvent) {
				continue
			}
			if err != nil {
				return err
			}
			if err := acc.Credit(money.Primary, amount); err != nil {
				return err
			}
			total = total.Add(amount)
		}
		if total.IsPositive() {
			acc.Notify(account.Notification{
				ID:        uuid.NewString(),
				Title:     "Mining earnings",
				Message:   fmt.Sprintf("Your miners earned KES %s.", total.StringFixed(2)),
				Timestamp: now,
			})
		}
		return nil
	})
	return total.IsPositive(), err
}

// MaturitySweep pays out and removes every vault whose term has ended.
func (s *Service) MaturitySweep(ctx context.Context) (SweepResult, error) {
	accounts, err := s.store.ListWithInvestments(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list investments: %w", err)
	}
	now := s.now().UTC()
	res := SweepResult{Accounts: len(accounts)}
	for _, acc := range accounts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		paid, err := s.matureAccount(ctx, acc.Phone, now)
		if err != nil {
			res.Failed++
			s.logger.Warn("investment payout failed", "phone", acc.Phone, "error", err)
			continue
		}
		res.Credited += paid
	}
	return res, nil
}

func (s *Service) matureAccount(ctx context.Context, phone string, now time.Time) (int, error) {
	var paid int
	_, err := s.store.Update(ctx, phone, func(acc *account.Account) error {
		paid = 0
		open := acc.Investments[:0:0]
		for _, inv := range acc.Investments {
			if !inv.Matured(now) {
				open = append(open, inv)
				continue
			}
			payout := inv.Payout()
			_, err := acc.AppendIdempotent(account.Transaction{
				ID:        "INV-" + inv.ID,
				Type:      account.TypeInvestmentPayout,
				Asset:     inv.Asset,
				Amount:    payout,
				Timestamp: now,
				Detail:    inv.Plan + " vault matured",
			})
			if errors.Is(err, account.ErrDuplicateExternalEvent) {
				continue
			}
			if err != nil {
				return err
			}
			if err := acc.Credit(inv.Asset, payout); err != nil {
				return err
			}
			paid++
			acc.Notify(account.Notification{
				ID:        uuid.NewString(),
				Title:     "Investment matured",
				Message:   fmt.Sprintf("Your %s vault paid out %s %s.", inv.Plan, payout, inv.Asset),
				Timestamp: now,
			})
		}
		acc.Investments = open
		return nil
	})
	return paid, err
}
