// Package admin implements the operator console: account listing, balance
// adjustments, reserve releases, payout settlement and broadcasts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/account"
	"github.com/tujenge/tujenge/internal/ledger"
	"github.com/tujenge/tujenge/internal/metrics"
	"github.com/tujenge/tujenge/internal/money"
)

// ErrEmptyBroadcast is returned for a broadcast without a message.
var ErrEmptyBroadcast = errors.New("broadcast message is required")

// Service runs operator actions against the ledger.
type Service struct {
	store   ledger.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService constructs an admin service.
func NewService(store ledger.Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, logger: logger, metrics: m, now: time.Now}
}

// UserSummary is one row of the account listing.
type UserSummary struct {
	Phone         string                          `json:"phone"`
	FullName      string                          `json:"fullName"`
	Balances      map[money.Asset]decimal.Decimal `json:"balances"`
	LockedReserve decimal.Decimal                 `json:"lockedReserve"`
	IsActivated   bool                            `json:"isActivated"`
	ReferredBy    string                          `json:"referredBy,omitempty"`
	TeamSize      int                             `json:"teamSize"`
	Miners        int                             `json:"miners"`
	Investments   int                             `json:"investments"`
	Pending       int                             `json:"pendingTransactions"`
	CreatedAt     time.Time                       `json:"createdAt"`
}

// ListUsers returns every account, oldest first.
func (s *Service) ListUsers(ctx context.Context) ([]UserSummary, error) {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserSummary, 0, len(accounts))
	for _, acc := range accounts {
		pending := 0
		for _, tx := range acc.Transactions {
			if tx.Status == account.StatusPending {
				pending++
			}
		}
		out = append(out, UserSummary{
			Phone:         acc.Phone,
			FullName:      acc.FullName,
			Balances:      acc.Balances,
			LockedReserve: acc.LockedReserve,
			IsActivated:   acc.IsActivated,
			ReferredBy:    acc.ReferredBy,
			TeamSize:      len(acc.Team),
			Miners:        len(acc.Miners),
			Investments:   len(acc.Investments),
			Pending:       pending,
			CreatedAt:     acc.CreatedAt,
		})
	}
	return out, nil
}

// DeleteUser removes an account document.
func (s *Service) DeleteUser(ctx context.Context, phone string) error {
	err := s.store.Delete(ctx, phone)
	s.metrics.ObserveOperation("admin_delete", err)
	if err == nil {
		s.logger.Warn("account deleted by admin", "phone", phone)
	}
	return err
}

// AdjustInput is a signed balance correction.
type AdjustInput struct {
	Phone  string
	Asset  string
	Amount decimal.Decimal
	Reason string
}

// Adjust credits a positive amount or debits a negative one and records an
// adjustment transaction. Debits respect the reserve like any other debit.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (account.Transaction, error) {
	tx, err := s.adjust(ctx, in)
	s.metrics.ObserveOperation("admin_adjust", err)
	return tx, err
}

func (s *Service) adjust(ctx context.Context, in AdjustInput) (account.Transaction, error) {
	if in.Asset == "" {
		in.Asset = string(money.Primary)
	}
	asset, err := money.ParseAsset(in.Asset)
	if err != nil {
		return account.Transaction{}, err
	}
	amount := asset.Round(in.Amount)
	if amount.IsZero() {
		return account.Transaction{}, fmt.Errorf("%w: adjustment must be non-zero", account.ErrInvalidAmount)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = "Balance adjustment"
	}
	now := s.now().UTC()

	var tx account.Transaction
	_, err = s.store.Update(ctx, in.Phone, func(acc *account.Account) error {
		var err error
		if amount.IsPositive() {
			err = acc.Credit(asset, amount)
		} else {
			err = acc.Debit(asset, amount.Neg())
		}
		if err != nil {
			return err
		}
		tx = acc.Append(account.Transaction{
			ID:        "ADJ-" + uuid.NewString(),
			Type:      account.TypeAdjustment,
			Asset:     asset,
			Amount:    amount,
			Timestamp: now,
			Detail:    reason,
		})
		return nil
	})
	if err != nil {
		return account.Transaction{}, err
	}
	s.logger.Info("balance adjusted", "phone", in.Phone, "asset", asset, "amount", amount.String(), "reason", reason)
	return tx, nil
}

// ReleaseReserve unlocks part of the activation reserve. A zero amount
// releases all of it.
func (s *Service) ReleaseReserve(ctx context.Context, phone string, amount decimal.Decimal) (decimal.Decimal, error) {
	var remaining decimal.Decimal
	_, err := s.store.Update(ctx, phone, func(acc *account.Account) error {
		release := amount
		if release.IsZero() {
			release = acc.LockedReserve
		}
		if !release.IsPositive() {
			return fmt.Errorf("%w: no reserve to release", account.ErrInsufficientReserve)
		}
		if err := acc.ReleaseReserve(release); err != nil {
			return err
		}
		remaining = acc.LockedReserve
		return nil
	})
	s.metrics.ObserveOperation("admin_release_reserve", err)
	if err != nil {
		return decimal.Zero, err
	}
	s.logger.Info("reserve released", "phone", phone, "remaining", remaining.String())
	return remaining, nil
}

// RefundID is the id of the refund recorded when a payout is failed.
func RefundID(txID string) string {
	return "RFD-" + txID
}

// SetTransactionStatus settles a Pending transaction. Failing a withdrawal
// returns the debited amount to its bucket exactly once.
func (s *Service) SetTransactionStatus(ctx context.Context, phone, txID, status string) (account.Transaction, error) {
	tx, err := s.setTransactionStatus(ctx, phone, txID, status)
	s.metrics.ObserveOperation("admin_settle", err)
	return tx, err
}

func (s *Service) setTransactionStatus(ctx context.Context, phone, txID, status string) (account.Transaction, error) {
	now := s.now().UTC()
	var settled account.Transaction
	_, err := s.store.Update(ctx, phone, func(acc *account.Account) error {
		prev, err := acc.SetTransactionStatus(txID, status)
		if err != nil {
			return err
		}
		settled = prev
		settled.Status = status
		if status != account.StatusFailed || !refundable(prev) {
			return nil
		}
		refund := prev.Amount.Abs()
		if _, err := acc.AppendIdempotent(account.Transaction{
			ID:        RefundID(txID),
			Type:      account.TypeRefund,
			Asset:     prev.Asset,
			Amount:    refund,
			Timestamp: now,
			Detail:    prev.Type + " failed",
		}); err != nil {
			return err
		}
		if err := acc.Credit(prev.Asset, refund); err != nil {
			return err
		}
		acc.Notify(account.Notification{
			ID:        uuid.NewString(),
			Title:     "Withdrawal failed",
			Message:   fmt.Sprintf("Your withdrawal of %s %s failed and was refunded.", refund, prev.Asset),
			Timestamp: now,
		})
		return nil
	})
	if err != nil {
		return account.Transaction{}, err
	}
	s.logger.Info("transaction settled", "phone", phone, "tx_id", txID, "status", status)
	return settled, nil
}

func refundable(tx account.Transaction) bool {
	return (tx.Type == account.TypeWithdrawal || tx.Type == account.TypeCryptoWithdrawal) && tx.Amount.IsNegative()
}

// Broadcast pushes one notification into every inbox and returns how many
// accounts received it.
func (s *Service) Broadcast(ctx context.Context, title, message string) (int, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return 0, ErrEmptyBroadcast
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Announcement"
	}
	n, err := s.store.AppendNotificationAll(ctx, account.Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   message,
		Timestamp: s.now().UTC(),
	})
	s.metrics.ObserveOperation("admin_broadcast", err)
	if err != nil {
		return 0, err
	}
	s.logger.Info("broadcast sent", "recipients", n)
	return n, nil
}
