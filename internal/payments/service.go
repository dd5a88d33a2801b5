// Package payments holds the client-initiated money movements that never
// touch the mobile-money gateway: crypto withdrawals, peer transfers and
// asset conversions.
package payments

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
	"github.com/tujenge/tujenge/internal/notification"
)

var (
	// ErrSelfTransfer is returned when sender and receiver are the same account.
	ErrSelfTransfer = errors.New("cannot transfer to yourself")
	// ErrInvalidAddress is returned for an empty crypto payout address.
	ErrInvalidAddress = errors.New("invalid wallet address")
)

// Service moves balances within and between accounts.
type Service struct {
	store    ledger.Store
	rates    money.Rates
	notifier *notification.Dispatcher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService constructs a payment service.
func NewService(store ledger.Store, rates money.Rates, notifier *notification.Dispatcher, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		rates:    rates,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// CryptoWithdrawInput requests a payout of a crypto bucket to an external address.
type CryptoWithdrawInput struct {
	Phone   string
	Asset   string
	Amount  decimal.Decimal
	Address string
	PIN     string
}

// WithdrawCrypto debits a crypto bucket and records a Pending payout.
func (s *Service) WithdrawCrypto(ctx context.Context, in CryptoWithdrawInput) (account.Transaction, error) {
	tx, err := s.withdrawCrypto(ctx, in)
	s.metrics.ObserveOperation("crypto_withdrawal", err)
	return tx, err
}

func (s *Service) withdrawCrypto(ctx context.Context, in CryptoWithdrawInput) (account.Transaction, error) {
	asset, err := money.ParseAsset(in.Asset)
	if err != nil {
		return account.Transaction{}, err
	}
	if asset == money.Primary {
		return account.Transaction{}, fmt.Errorf("%w: use a mobile money withdrawal for %s", account.ErrInvalidAsset, asset)
	}
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return account.Transaction{}, ErrInvalidAddress
	}
	amount := asset.Round(in.Amount)
	if err := money.Positive(amount); err != nil {
		return account.Transaction{}, err
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
		if err := acc.Debit(asset, amount); err != nil {
			return err
		}
		tx = acc.Append(account.Transaction{
			ID:        "CWD-" + uuid.NewString(),
			Type:      account.TypeCryptoWithdrawal,
			Asset:     asset,
			Amount:    amount.Neg(),
			Status:    account.StatusPending,
			Timestamp: now,
			Detail:    "Withdrawal to " + address,
		})
		acc.Notify(account.Notification{
			ID:        uuid.NewString(),
			Title:     "Crypto withdrawal requested",
			Message:   fmt.Sprintf("Your withdrawal of %s %s is being processed.", amount, asset),
			Timestamp: now,
		})
		return nil
	})
	if err != nil {
		return account.Transaction{}, err
	}

	s.notifier.Dispatch(notification.Message{
		Kind:        notification.KindCryptoWithdrawal,
		Destination: updated.Phone,
		Body:        fmt.Sprintf("Crypto withdrawal %s: %s %s to %s", tx.ID, amount, asset, address),
	})
	return tx, nil
}

// TransferInput moves an asset from one account to another.
type TransferInput struct {
	From   string
	To     string
	Asset  string
	Amount decimal.Decimal
	PIN    string
}

// TransferResult carries both legs of a completed transfer.
type TransferResult struct {
	ID       string
	Debit    account.Transaction
	Credit   account.Transaction
	Receiver string
}

// Transfer debits the sender then credits the receiver as two conditional
// updates. If the credit leg fails the debit is reversed, so a transfer
// either completes or leaves OUT and REV records that cancel out. A failed
// reversal leaves a lone OUT record for reconciliation.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	res, err := s.transfer(ctx, in)
	s.metrics.ObserveOperation("transfer", err)
	return res, err
}

func (s *Service) transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	asset, err := money.ParseAsset(in.Asset)
	if err != nil {
		return TransferResult{}, err
	}
	amount := asset.Round(in.Amount)
	if err := money.Positive(amount); err != nil {
		return TransferResult{}, err
	}
	to := account.NormalizePhone(in.To)
	if to == "" {
		return TransferResult{}, fmt.Errorf("receiver: %w", account.ErrNotFound)
	}
	if to == in.From {
		return TransferResult{}, ErrSelfTransfer
	}
	receiver, err := s.store.Get(ctx, to)
	if err != nil {
		return TransferResult{}, fmt.Errorf("receiver: %w", err)
	}

	id := uuid.NewString()
	now := s.now().UTC()
	res := TransferResult{ID: id, Receiver: receiver.Phone}

	sender, err := s.store.Update(ctx, in.From, func(acc *account.Account) error {
		if !acc.IsActivated {
			return account.ErrNotActivated
		}
		if err := acc.VerifyPIN(in.PIN); err != nil {
			return err
		}
		if err := acc.Debit(asset, amount); err != nil {
			return err
		}
		res.Debit = acc.Append(account.Transaction{
			ID:        "TRF-" + id + "-OUT",
			Type:      account.TypeTransferOut,
			Asset:     asset,
			Amount:    amount.Neg(),
			Timestamp: now,
			Detail:    "Sent to " + to,
		})
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	_, err = s.store.Update(ctx, to, func(acc *account.Account) error {
		tx, err := acc.AppendIdempotent(account.Transaction{
			ID:        "TRF-" + id + "-IN",
			Type:      account.TypeTransferIn,
			Asset:     asset,
			Amount:    amount,
			Timestamp: now,
			Detail:    "Received from " + sender.Phone,
		})
		if err != nil {
			return err
		}
		if err := acc.Credit(asset, amount); err != nil {
			return err
		}
		res.Credit = tx
		acc.Notify(account.Notification{
			ID:        uuid.NewString(),
			Title:     "Money received",
			Message:   fmt.Sprintf("You received %s %s from %s.", amount, asset, sender.FullName),
			Timestamp: now,
		})
		return nil
	})
	if err != nil {
		s.reverse(ctx, in.From, id, asset, amount, err)
		return TransferResult{}, fmt.Errorf("credit receiver %s: %w", to, err)
	}

	s.notifier.Dispatch(notification.Message{
		Kind:        notification.KindTransfer,
		Destination: sender.Phone,
		Body:        fmt.Sprintf("Transfer %s: %s %s from %s to %s", id, amount, asset, sender.Phone, to),
	})
	return res, nil
}

func (s *Service) reverse(ctx context.Context, from, id string, asset money.Asset, amount decimal.Decimal, cause error) {
	now := s.now().UTC()
	_, err := s.store.Update(ctx, from, func(acc *account.Account) error {
		if _, err := acc.AppendIdempotent(account.Transaction{
			ID:        "TRF-" + id + "-REV",
			Type:      account.TypeTransferReversal,
			Asset:     asset,
			Amount:    amount,
			Timestamp: now,
			Detail:    "Transfer could not be delivered",
		}); err != nil {
			return err
		}
		return acc.Credit(asset, amount)
	})
	if err != nil && !errors.Is(err, account.ErrDuplicateExternalEvent) {
		s.logger.Error("transfer reversal failed, needs reconciliation",
			"transfer_id", id,
			"sender", from,
			"asset", asset,
			"amount", amount.String(),
			"cause", cause,
			"error", err,
		)
		return
	}
	s.logger.Warn("transfer reversed", "transfer_id", id, "sender", from, "cause", cause)
}

// ConvertInput swaps an amount of one asset for another in the same account.
type ConvertInput struct {
	Phone  string
	From   string
	To     string
	Amount decimal.Decimal
}

// ConversionResult reports the two legs of a conversion.
type ConversionResult struct {
	From     money.Asset
	To       money.Asset
	Debited  decimal.Decimal
	Credited decimal.Decimal
	Rate     decimal.Decimal
}

// Convert debits From and credits To at the configured rate in a single
// conditional update, so either both legs land or neither does.
func (s *Service) Convert(ctx context.Context, in ConvertInput) (ConversionResult, error) {
	res, err := s.convert(ctx, in)
	s.metrics.ObserveOperation("conversion", err)
	return res, err
}

func (s *Service) convert(ctx context.Context, in ConvertInput) (ConversionResult, error) {
	from, err := money.ParseAsset(in.From)
	if err != nil {
		return ConversionResult{}, err
	}
	to, err := money.ParseAsset(in.To)
	if err != nil {
		return ConversionResult{}, err
	}
	amount := from.Round(in.Amount)
	if err := money.Positive(amount); err != nil {
		return ConversionResult{}, err
	}
	rate, err := s.rates.Lookup(from, to)
	if err != nil {
		return ConversionResult{}, err
	}
	credited, err := s.rates.Convert(from, to, amount)
	if err != nil {
		return ConversionResult{}, err
	}
	if !credited.IsPositive() {
		return ConversionResult{}, fmt.Errorf("%w: %s %s is worth nothing in %s", account.ErrInvalidAmount, amount, from, to)
	}
	id := uuid.NewString()
	now := s.now().UTC()

	_, err = s.store.Update(ctx, in.Phone, func(acc *account.Account) error {
		if err := acc.Debit(from, amount); err != nil {
			return err
		}
		if err := acc.Credit(to, credited); err != nil {
			return err
		}
		detail := fmt.Sprintf("%s %s to %s %s at %s", amount, from, credited, to, rate)
		acc.Append(account.Transaction{
			ID:        "CNV-" + id + "-OUT",
			Type:      account.TypeConversion,
			Asset:     from,
			Amount:    amount.Neg(),
			Timestamp: now,
			Detail:    detail,
		})
		acc.Append(account.Transaction{
			ID:        "CNV-" + id + "-IN",
			Type:      account.TypeConversion,
			Asset:     to,
			Amount:    credited,
			Timestamp: now,
			Detail:    detail,
		})
		return nil
	})
	if err != nil {
		return ConversionResult{}, err
	}
	return ConversionResult{From: from, To: to, Debited: amount, Credited: credited, Rate: rate}, nil
}

// Rates returns the active conversion table.
func (s *Service) Rates() money.Rates {
	return s.rates
}
