package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/account"
	"github.com/tujenge/tujenge/internal/money"
)

func TestInMemoryStore_CreateAndGet(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	acc := account.New("0700000001", "Amina", nil, time.Now())
	if err := s.Create(ctx, acc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, acc); !errors.Is(err, account.ErrAccountExists) {
		t.Fatalf("expected exists error, got %v", err)
	}
	if _, err := s.Get(ctx, "0799999999"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	got, err := s.Get(ctx, "0700000001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 1 {
		t.Fatalf("expected version 1, got %d", got.Version)
	}
}

func TestInMemoryStore_UpdateAbortsOnError(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	Seed(s, "0700000001", decimal.NewFromInt(100))

	boom := errors.New("boom")
	_, err := s.Update(ctx, "0700000001", func(a *account.Account) error {
		_ = a.Credit(money.KES, decimal.NewFromInt(50))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	got, _ := s.Get(ctx, "0700000001")
	if !got.Balance(money.KES).Equal(decimal.NewFromInt(100)) {
		t.Fatalf("aborted update leaked: %s", got.Balance(money.KES))
	}
}

func TestInMemoryStore_ConcurrentCreditsAreNotLost(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	Seed(s, "0700000001", decimal.Zero)

	const workers = 4
	const perWorker = 25

	var wg sync.WaitGroup
	var mu sync.Mutex
	conflicts := 0
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := s.Update(ctx, "0700000001", func(a *account.Account) error {
					return a.Credit(money.KES, decimal.NewFromInt(1))
				})
				if errors.Is(err, ErrConflict) {
					mu.Lock()
					conflicts++
					mu.Unlock()
					continue
				}
				if err != nil {
					t.Errorf("update: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, "0700000001")
	want := decimal.NewFromInt(int64(workers*perWorker - conflicts))
	if !got.Balance(money.KES).Equal(want) {
		t.Fatalf("expected balance %s, got %s", want, got.Balance(money.KES))
	}
}

func TestInMemoryStore_DuplicateIDRace(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	Seed(s, "0700000001", decimal.Zero)

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "0700000001", func(a *account.Account) error {
				if _, err := a.AppendIdempotent(account.Transaction{ID: "RCPT-1", Type: account.TypeDeposit, Asset: money.KES, Amount: decimal.NewFromInt(500)}); err != nil {
					return err
				}
				return a.Credit(money.KES, decimal.NewFromInt(500))
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	applied := 0
	for err := range results {
		switch {
		case err == nil:
			applied++
		case errors.Is(err, account.ErrDuplicateExternalEvent), errors.Is(err, ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if applied != 1 {
		t.Fatalf("expected exactly one applied deposit, got %d", applied)
	}
	got, _ := s.Get(ctx, "0700000001")
	if !got.Balance(money.KES).Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected balance 500, got %s", got.Balance(money.KES))
	}
}

func TestInMemoryStore_ListFilters(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	Seed(s, "0700000001", decimal.Zero, func(a *account.Account) {
		a.Miners = append(a.Miners, account.Miner{ID: "m1"})
	})
	Seed(s, "0700000002", decimal.Zero, func(a *account.Account) {
		a.Investments = append(a.Investments, account.Investment{ID: "v1", Asset: money.KES})
	})
	Seed(s, "0700000003", decimal.Zero)

	all, _ := s.List(ctx)
	miners, _ := s.ListWithMiners(ctx)
	vaults, _ := s.ListWithInvestments(ctx)
	if len(all) != 3 || len(miners) != 1 || len(vaults) != 1 {
		t.Fatalf("unexpected counts all=%d miners=%d vaults=%d", len(all), len(miners), len(vaults))
	}
	if miners[0].Phone != "0700000001" || vaults[0].Phone != "0700000002" {
		t.Fatalf("filters returned wrong accounts")
	}
}

func TestInMemoryStore_AppendNotificationAll(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		Seed(s, fmt.Sprintf("070000000%d", i), decimal.Zero)
	}
	n, err := s.AppendNotificationAll(ctx, account.Notification{ID: "b1", Title: "Maintenance"})
	if err != nil || n != 3 {
		t.Fatalf("broadcast: n=%d err=%v", n, err)
	}
	got, _ := s.Get(ctx, "0700000002")
	if len(got.Notifications) != 1 || got.Notifications[0].Title != "Maintenance" {
		t.Fatalf("notification not delivered: %+v", got.Notifications)
	}
	if got.Version != 2 {
		t.Fatalf("broadcast must bump version, got %d", got.Version)
	}
}

func TestInMemoryStore_Delete(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	Seed(s, "0700000001", decimal.Zero)
	if err := s.Delete(ctx, "0700000001"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "0700000001"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInMemoryStore_UpdateRetriesLostRace(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	Seed(s, "0700000001", decimal.NewFromInt(100))

	calls := 0
	got, err := s.Update(ctx, "0700000001", func(a *account.Account) error {
		calls++
		if calls == 1 {
			if _, err := s.Update(ctx, "0700000001", func(b *account.Account) error {
				return b.Credit(money.KES, decimal.NewFromInt(1))
			}); err != nil {
				return err
			}
		}
		return a.Credit(money.KES, decimal.NewFromInt(50))
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	if !got.Balance(money.KES).Equal(decimal.NewFromInt(151)) {
		t.Fatalf("expected 151, got %s", got.Balance(money.KES))
	}
}

func TestInMemoryStore_UpdateHonoursCancelledContext(t *testing.T) {
	s := NewInMemory()
	Seed(s, "0700000001", decimal.NewFromInt(100))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Update(ctx, "0700000001", func(a *account.Account) error {
		t.Fatalf("fn ran under a cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestRetryBackoff(t *testing.T) {
	for attempt := 0; attempt < MaxUpdateAttempts; attempt++ {
		d := retryDelay(attempt)
		if d < retryBaseDelay/2 || d > retryMaxDelay+retryMaxDelay/2 {
			t.Fatalf("attempt %d: delay %s out of bounds", attempt, d)
		}
	}
	if d := retryDelay(60); d > retryMaxDelay+retryMaxDelay/2 {
		t.Fatalf("delay not capped: %s", d)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitRetry(ctx, 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if err := waitRetry(context.Background(), 1); err != nil {
		t.Fatalf("wait: %v", err)
	}
}
