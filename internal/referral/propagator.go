// Package referral pays commissions up the inviter chain and maintains the
// per-account downline lists.
package referral

import (
	"context"
	"errors"
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

// MaxDepth is the hard cutoff of the commission walk.
const MaxDepth = 3

// ErrCycle is reported when the walk meets an account it already visited.
var ErrCycle = errors.New("referral cycle")

// DefaultRates are the commission rates for levels 1, 2 and 3.
var DefaultRates = []decimal.Decimal{
	decimal.RequireFromString("0.10"),
	decimal.RequireFromString("0.04"),
	decimal.RequireFromString("0.01"),
}

// Credit describes one tier of a walk.
type Credit struct {
	Level     int
	Phone     string
	Amount    decimal.Decimal
	Duplicate bool
}

// Result lists the tiers credited by a walk. Truncated is set when the walk
// stopped before MaxDepth for any reason other than reaching a root account.
type Result struct {
	Credits   []Credit
	Truncated error
}

// Propagator credits commissions to up to MaxDepth ancestors.
type Propagator struct {
	store   ledger.Store
	rates   []decimal.Decimal
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewPropagator constructs a Propagator with DefaultRates.
func NewPropagator(store ledger.Store, logger *slog.Logger, m *metrics.Metrics) *Propagator {
	return &Propagator{
		store:   store,
		rates:   DefaultRates,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// CommissionID is the deterministic transaction id of one tier.
func CommissionID(sourceTxID string, level int) string {
	return fmt.Sprintf("COM-%s-L%d", sourceTxID, level)
}

// Propagate walks root's inviter chain and credits each ancestor its share of
// base. Every tier is its own conditional update, so a failure at tier n leaves
// tiers 1..n-1 in place. Replaying the same sourceTxID credits nothing twice.
func (p *Propagator) Propagate(ctx context.Context, root account.Account, base decimal.Decimal, sourceTxID string) Result {
	var res Result
	visited := map[string]bool{root.Phone: true}
	next := root.ReferredBy

	for level := 1; level <= MaxDepth && level <= len(p.rates); level++ {
		if next == "" {
			break
		}
		if visited[next] {
			res.Truncated = fmt.Errorf("level %d ancestor %s: %w", level, next, ErrCycle)
			break
		}
		visited[next] = true

		amount := money.Primary.Round(base.Mul(p.rates[level-1]))
		credit := Credit{Level: level, Phone: next, Amount: amount}

		updated, err := p.credit(ctx, next, level, amount, root.Phone, sourceTxID)
		switch {
		case err == nil:
			p.metrics.IncCommission(level)
		case errors.Is(err, account.ErrDuplicateExternalEvent):
			credit.Duplicate = true
		default:
			res.Truncated = fmt.Errorf("level %d ancestor %s: %w", level, next, err)
		}
		if res.Truncated != nil {
			break
		}
		res.Credits = append(res.Credits, credit)
		next = updated.ReferredBy
	}

	if res.Truncated != nil {
		p.metrics.IncCommissionCutoff()
		p.logger.Warn("commission walk truncated",
			"source_tx", sourceTxID,
			"root", root.Phone,
			"credited_levels", len(res.Credits),
			"error", res.Truncated,
		)
	}
	return res
}

// credit applies one tier. Amounts that round to zero are still walked through
// but leave the ancestor untouched.
func (p *Propagator) credit(ctx context.Context, phone string, level int, amount decimal.Decimal, from, sourceTxID string) (account.Account, error) {
	if !amount.IsPositive() {
		return p.store.Get(ctx, phone)
	}
	now := p.now().UTC()
	return p.store.Update(ctx, phone, func(acc *account.Account) error {
		_, err := acc.AppendIdempotent(account.Transaction{
			ID:        CommissionID(sourceTxID, level),
			Type:      account.TypeCommission,
			Asset:     money.KES,
			Amount:    amount,
			Status:    account.StatusCompleted,
			Timestamp: now,
			Detail:    fmt.Sprintf("Level %d commission from %s", level, from),
		})
		if err != nil {
			return err
		}
		if err := acc.Credit(money.KES, amount); err != nil {
			return err
		}
		acc.ReferralBonus = acc.ReferralBonus.Add(amount)
		acc.Notify(account.Notification{
			ID:        uuid.NewString(),
			Title:     "Referral commission",
			Message:   fmt.Sprintf("You earned KES %s level %d commission from %s.", amount.StringFixed(2), level, from),
			Timestamp: now,
		})
		return nil
	})
}
