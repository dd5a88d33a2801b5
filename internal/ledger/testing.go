package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/account"
	"github.com/tujenge/tujenge/internal/money"
)

// Seed creates an account with the given KES balance. Intended for tests and
// development fixtures; it panics on failure.
func Seed(store Store, phone string, kes decimal.Decimal, opts ...func(*account.Account)) account.Account {
	acc := account.New(phone, "Test "+phone, nil, time.Now())
	if kes.IsPositive() {
		if err := acc.Credit(money.KES, kes); err != nil {
			panic(err)
		}
	}
	for _, opt := range opts {
		opt(&acc)
	}
	if err := store.Create(context.Background(), acc); err != nil {
		panic(err)
	}
	stored, err := store.Get(context.Background(), phone)
	if err != nil {
		panic(err)
	}
	return stored
}
