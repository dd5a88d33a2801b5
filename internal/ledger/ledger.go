// Package ledger persists account documents. Every balance-affecting write
// goes through Store.Update, a read-modify-write guarded by a version check.
package ledger

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/tujenge/tujenge/internal/account"
)

// MaxUpdateAttempts bounds the optimistic retry loop of Update.
const MaxUpdateAttempts = 8

// Retry backoff between lost version races.
const (
	retryBaseDelay = 2 * time.Millisecond
	retryMaxDelay  = 50 * time.Millisecond
)

// ErrConflict is returned when an update keeps losing the version race.
var ErrConflict = errors.New("concurrent update conflict")

// UpdateFunc mutates a private copy of the account. Returning an error aborts
// the update without writing anything.
type UpdateFunc func(acc *account.Account) error

// Store is the contract implemented by account backends (memory, Postgres).
type Store interface {
	// Create inserts a new account, failing with account.ErrAccountExists.
	Create(ctx context.Context, acc account.Account) error
	// Get returns the stored account or account.ErrNotFound.
	Get(ctx context.Context, phone string) (account.Account, error)
	// Update runs fn against the freshest copy and writes it only if nobody
	// else wrote in between, re-running fn on conflict.
	Update(ctx context.Context, phone string, fn UpdateFunc) (account.Account, error)
	Delete(ctx context.Context, phone string) error
	List(ctx context.Context) ([]account.Account, error)
	ListWithMiners(ctx context.Context) ([]account.Account, error)
	ListWithInvestments(ctx context.Context) ([]account.Account, error)
	// AppendNotificationAll pushes one inbox entry onto every account and
	// returns how many accounts were touched.
	AppendNotificationAll(ctx context.Context, n account.Notification) (int, error)
}

// retryDelay doubles per attempt up to retryMaxDelay with +/-50% jitter.
func retryDelay(attempt int) time.Duration {
	if attempt > 8 {
		attempt = 8
	}
	backoff := retryBaseDelay << uint(attempt)
	if backoff > retryMaxDelay {
		backoff = retryMaxDelay
	}
	jitter := float64(backoff) * 0.5 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// waitRetry sleeps before attempt n of an update loop. The first attempt runs
// immediately; a done context ends the loop with its error.
func waitRetry(ctx context.Context, attempt int) error {
	if attempt == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(retryDelay(attempt - 1))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
