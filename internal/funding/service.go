// Package funding moves KES in and out through the mobile-money gateway:
// deposit callbacks, STK push initiation and withdrawal requests.
package funding

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
	"github.com/tujenge/tujenge/internal/notification"
	"github.com/tujenge/tujenge/internal/referral"
)

// Policy holds the monetary thresholds of the funding flows.
type Policy struct {
	ActivationThreshold decimal.Decimal
	ActivationReserve   decimal.Decimal
	MinWithdrawal       decimal.Decimal
}

// Service applies deposits and withdrawals to accounts.
type Service struct {
	store      ledger.Store
	propagator *referral.Propagator
	gateway    Gateway
	notifier   *notification.Dispatcher
	policy     Policy
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewService wires the funding service. gateway and notifier may be nil.
func NewService(store ledger.Store, propagator *referral.Propagator, gateway Gateway, notifier *notification.Dispatcher, policy Policy, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:      store,
		propagator: propagator,
		gateway:    gateway,
		notifier:   notifier,
		policy:     policy,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// DepositResult reports what a confirmed deposit changed.
type DepositResult struct {
	Account     account.Account
	Transaction account.Transaction
	Activated   bool
	Commissions referral.Result
}

// Deposit credits a confirmed payment exactly once per receipt. The duplicate
// check, activation, credit and history insert share one conditional update;
// commissions run only after it is stored.
func (s *Service) Deposit(ctx context.Context, cb Callback) (DepositResult, error) {
	amount := money.Primary.Round(cb.Amount)
	if !amount.IsPositive() {
		return DepositResult{}, fmt.Errorf("%w: deposit %s", account.ErrInvalidAmount, cb.Amount)
	}
	phone := account.NormalizePhone(cb.Phone)
	now := s.now().UTC()

	var res DepositResult
	updated, err := s.store.Update(ctx, phone, func(acc *account.Account) error {
		res.Activated = false
		if acc.HasTransaction(cb.Receipt) {
			return fmt.Errorf("receipt %s: %w", cb.Receipt, account.ErrDuplicateExternalEvent)
		}
		if !acc.IsActivated && amount.GreaterThanOrEqual(s.policy.ActivationThreshold) {
			changed, err := acc.Activate(s.policy.ActivationReserve)
			if err != nil {
				return err
			}
			res.Activated = changed
		}
		if err := acc.Credit(money.Primary, amount); err != nil {
			return err
		}
		tx, err := acc.AppendIdempotent(account.Transaction{
			ID:        cb.Receipt,
			Type:      account.TypeDeposit,
			Asset:     money.Primary,
			Amount:    amount,
			Status:    account.StatusCompleted,
			Timestamp: now,
			Detail:    "Mobile money deposit",
		})
		if err != nil {
			return err
		}
		res.Transaction = tx
		acc.Notify(account.Notification{
			ID:        uuid.NewString(),
			Title:     "Deposit received",
			Message:   fmt.Sprintf("KES %s has been credited to your account.", amount.StringFixed(2)),
			Timestamp: now,
		})
		if res.Activated {
			acc.Notify(account.Notification{
				ID:        uuid.NewString(),
				Title:     "Account activated",
				Message:   fmt.Sprintf("Your account is active. KES %s is held as a locked reserve.", s.policy.ActivationReserve.StringFixed(2)),
				Timestamp: now,
			})
		}
		return nil
	})
	if err != nil {
		return DepositResult{}, err
	}
	res.Account = updated

	if updated.ReferredBy != "" && s.propagator != nil {
		res.Commissions = s.propagator.Propagate(ctx, updated, amount, cb.Receipt)
	}

	s.notifier.Dispatch(notification.Message{
		Kind:        notification.KindDeposit,
		Destination: updated.Phone,
		Body:        fmt.Sprintf("Deposit %s of KES %s from %s", cb.Receipt, amount.StringFixed(2), updated.FullName),
	})
	return res, nil
}

// WithdrawInput is a KES payout request to the account's own phone.
type WithdrawInput struct {
	Phone  string
	Amount decimal.Decimal
	PIN    string
}

// Withdraw debits spendable KES immediately and records a Pending payout for
// an operator to settle. Rejections leave the account untouched.
func (s *Service) Withdraw(ctx context.Context, in WithdrawInput) (account.Transaction, error) {
	tx, err := s.withdraw(ctx, in)
	s.metrics.ObserveOperation("withdrawal", err)
	return tx, err
}

func (s *Service) withdraw(ctx context.Context, in WithdrawInput) (account.Transaction, error) {
	amount := money.Primary.Round(in.Amount)
	if !amount.IsPositive() {
		return account.Transaction{}, fmt.Errorf("%w: %s", account.ErrInvalidAmount, in.Amount)
	}
	if amount.LessThan(s.policy.MinWithdrawal) {
		return account.Transaction{}, fmt.Errorf("%w: minimum is KES %s", account.ErrBelowMinimum, s.policy.MinWithdrawal.StringFixed(2))
	}
	now := s.now().UTC()

	var tx account.Transaction
	updated, err := s.store.Update(ctx, in.Phone, func(acc *account.Account) error {
		if !acc.IsActivated {
			return account.ErrNotActivated
		}
		if err := acc.VerifyPIN(in.PIN); err != nil {
			return err
		}
		if err := acc.Debit(money.Primary, amount); err != nil {
			return err
		}
		tx = acc.Append(account.Transaction{
			ID:        "WD-" + uuid.NewString(),
			Type:      account.TypeWithdrawal,
			Asset:     money.Primary,
			Amount:    amount.Neg(),
			Status:    account.StatusPending,
			Timestamp: now,
			Detail:    "Withdrawal to " + acc.Phone,
		})
		acc.Notify(account.Notification{
			ID:        uuid.NewString(),
			Title:     "Withdrawal requested",
			Message:   fmt.Sprintf("Your withdrawal of KES %s is being processed.", amount.StringFixed(2)),
			Timestamp: now,
		})
		return nil
	})
	if err != nil {
		return account.Transaction{}, err
	}

	s.notifier.Dispatch(notification.Message{
		Kind:        notification.KindWithdrawal,
		Destination: updated.Phone,
		Body:        fmt.Sprintf("Withdrawal %s of KES %s requested by %s", tx.ID, amount.StringFixed(2), updated.FullName),
	})
	return tx, nil
}

// InitiateDeposit asks the gateway to prompt the account holder for payment.
// Mobile-money prompts are in whole shillings.
func (s *Service) InitiateDeposit(ctx context.Context, phone string, amount decimal.Decimal) (STKResponse, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(0)) {
		return STKResponse{}, fmt.Errorf("%w: %s", account.ErrInvalidAmount, amount)
	}
	if s.gateway == nil {
		return STKResponse{}, fmt.Errorf("%w: not configured", ErrUpstreamGateway)
	}
	if _, err := s.store.Get(ctx, phone); err != nil {
		return STKResponse{}, err
	}

	resp, err := s.gateway.InitiateSTKPush(ctx, STKRequest{
		Phone:     phone,
		Amount:    amount,
		Reference: "DEP-" + uuid.NewString(),
	})
	if err != nil {
		s.metrics.IncGatewayCall("error")
		s.logger.Warn("stk push failed", "phone", phone, "error", err)
		if !errors.Is(err, ErrUpstreamGateway) {
			err = fmt.Errorf("%w: %v", ErrUpstreamGateway, err)
		}
		return STKResponse{}, err
	}
	s.metrics.IncGatewayCall("accepted")
	return resp, nil
}
