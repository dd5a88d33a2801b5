package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/account"
	"github.com/tujenge/tujenge/internal/ledger"
	"github.com/tujenge/tujenge/internal/logging"
	"github.com/tujenge/tujenge/internal/middleware"
	"github.com/tujenge/tujenge/internal/money"
	"github.com/tujenge/tujenge/internal/yield"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func withReserve(amount string) func(*account.Account) {
	return func(a *account.Account) {
		a.IsActivated = true
		a.LockedReserve = d(amount)
	}
}

func withPending(id, txType string, asset money.Asset, amount string) func(*account.Account) {
	return func(a *account.Account) {
		a.Append(account.Transaction{ID: id, Type: txType, Asset: asset, Amount: d(amount), Status: account.StatusPending})
	}
}

func TestAdjust(t *testing.T) {
	store := ledger.NewInMemory()
	ledger.Seed(store, "0700000001", d("300"), withReserve("200"))
	svc := NewService(store, logging.Discard(), nil)
	ctx := context.Background()

	if _, err := svc.Adjust(ctx, AdjustInput{Phone: "0700000001", Amount: d("-100.01")}); !errors.Is(err, account.ErrInsufficientFunds) {
		t.Fatalf("debit must respect the reserve, got %v", err)
	}
	if _, err := svc.Adjust(ctx, AdjustInput{Phone: "0700000001", Amount: decimal.Zero}); !errors.Is(err, account.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	tx, err := svc.Adjust(ctx, AdjustInput{Phone: "0700000001", Asset: "usdt", Amount: d("5"), Reason: "promo"})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if tx.Type != account.TypeAdjustment || tx.Detail != "promo" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if _, err := svc.Adjust(ctx, AdjustInput{Phone: "0700000001", Amount: d("-100")}); err != nil {
		t.Fatalf("debit: %v", err)
	}
	acc, _ := store.Get(ctx, "0700000001")
	if !acc.Balance(money.KES).Equal(d("200")) || !acc.Balance(money.USDT).Equal(d("5")) {
		t.Fatalf("unexpected balances KES %s USDT %s", acc.Balance(money.KES), acc.Balance(money.USDT))
	}
}

func TestReleaseReserve(t *testing.T) {
	store := ledger.NewInMemory()
	ledger.Seed(store, "0700000001", d("500"), withReserve("200"))
	svc := NewService(store, logging.Discard(), nil)
	ctx := context.Background()

	if _, err := svc.ReleaseReserve(ctx, "0700000001", d("250")); !errors.Is(err, account.ErrInsufficientReserve) {
		t.Fatalf("expected insufficient reserve, got %v", err)
	}
	remaining, err := svc.ReleaseReserve(ctx, "0700000001", d("50"))
	if err != nil || !remaining.Equal(d("150")) {
		t.Fatalf("partial release: %s %v", remaining, err)
	}
	remaining, err = svc.ReleaseReserve(ctx, "0700000001", decimal.Zero)
	if err != nil || !remaining.IsZero() {
		t.Fatalf("full release: %s %v", remaining, err)
	}
	if _, err := svc.ReleaseReserve(ctx, "0700000001", decimal.Zero); !errors.Is(err, account.ErrInsufficientReserve) {
		t.Fatalf("nothing left to release, got %v", err)
	}
}

func TestFailedWithdrawalRefundsOnce(t *testing.T) {
	store := ledger.NewInMemory()
	ledger.Seed(store, "0700000001", d("100"),
		withPending("WD-1", account.TypeWithdrawal, money.KES, "-300"),
		withPending("CWD-1", account.TypeCryptoWithdrawal, money.USDT, "-10"),
		withPending("WD-2", account.TypeWithdrawal, money.KES, "-50"),
	)
	svc := NewService(store, logging.Discard(), nil)
	ctx := context.Background()

	tx, err := svc.SetTransactionStatus(ctx, "0700000001", "WD-1", account.StatusFailed)
	if err != nil {
		t.Fatalf("fail WD-1: %v", err)
	}
	if tx.Status != account.StatusFailed {
		t.Fatalf("expected failed status, got %s", tx.Status)
	}
	if _, err := svc.SetTransactionStatus(ctx, "0700000001", "WD-1", account.StatusFailed); !errors.Is(err, account.ErrInvalidStatus) {
		t.Fatalf("second settlement must be refused, got %v", err)
	}
	if _, err := svc.SetTransactionStatus(ctx, "0700000001", "CWD-1", account.StatusFailed); err != nil {
		t.Fatalf("fail CWD-1: %v", err)
	}
	if _, err := svc.SetTransactionStatus(ctx, "0700000001", "WD-2", account.StatusCompleted); err != nil {
		t.Fatalf("complete WD-2: %v", err)
	}
	if _, err := svc.SetTransactionStatus(ctx, "0700000001", "WD-2", "Reversed"); !errors.Is(err, account.ErrInvalidStatus) {
		t.Fatalf("unknown status must be refused, got %v", err)
	}
	if _, err := svc.SetTransactionStatus(ctx, "0700000001", "nope", account.StatusFailed); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	acc, _ := store.Get(ctx, "0700000001")
	if !acc.Balance(money.KES).Equal(d("400")) || !acc.Balance(money.USDT).Equal(d("10")) {
		t.Fatalf("unexpected balances KES %s USDT %s", acc.Balance(money.KES), acc.Balance(money.USDT))
	}
	if !acc.HasTransaction(RefundID("WD-1")) || acc.HasTransaction(RefundID("WD-2")) {
		t.Fatalf("refund records wrong: %+v", acc.Transactions)
	}
}

func TestBroadcast(t *testing.T) {
	store := ledger.NewInMemory()
	ledger.Seed(store, "0700000001", decimal.Zero)
	ledger.Seed(store, "0700000002", decimal.Zero)
	svc := NewService(store, logging.Discard(), nil)
	ctx := context.Background()

	if _, err := svc.Broadcast(ctx, "", "  "); !errors.Is(err, ErrEmptyBroadcast) {
		t.Fatalf("expected empty broadcast error, got %v", err)
	}
	n, err := svc.Broadcast(ctx, "", "Maintenance tonight")
	if err != nil || n != 2 {
		t.Fatalf("broadcast: %d %v", n, err)
	}
	acc, _ := store.Get(ctx, "0700000002")
	if len(acc.Notifications) != 1 || acc.Notifications[0].Title != "Announcement" {
		t.Fatalf("unexpected inbox %+v", acc.Notifications)
	}
}

func TestHandlerRequiresKeyAndRunsSweeps(t *testing.T) {
	store := ledger.NewInMemory()
	ledger.Seed(store, "0700000001", decimal.Zero)
	scheduler := yield.NewScheduler(logging.Discard())
	calls := 0
	task := yield.NewTask("mining", func(context.Context) (yield.SweepResult, error) {
		calls++
		return yield.SweepResult{Accounts: 1, Credited: 1}, nil
	}, time.Second, logging.Discard(), nil)
	if err := scheduler.Register(context.Background(), task, 0); err != nil {
		t.Fatalf("register: %v", err)
	}
	h := NewHandler(NewService(store, logging.Discard(), nil), scheduler)

	app := fiber.New()
	grp := app.Group("/admin", middleware.AdminKey("k3y"))
	grp.Get("/users", h.ListUsers)
	grp.Get("/sweeps", h.Sweeps)
	grp.Post("/sweeps/:name/run", h.RunSweep)
	grp.Post("/users/:phone/adjust", h.Adjust)

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing key status %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/sweeps/mining/run", nil)
	req.Header.Set("X-Admin-Key", "k3y")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK || calls != 1 {
		t.Fatalf("run sweep status %d calls %d", resp.StatusCode, calls)
	}
	req = httptest.NewRequest(http.MethodPost, "/admin/sweeps/unknown/run", nil)
	req.Header.Set("X-Admin-Key", "k3y")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown sweep status %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/users/0700000001/adjust", strings.NewReader(`{"amount":"-5"}`))
	req.Header.Set("X-Admin-Key", "k3y")
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("overdraft adjust status %d", resp.StatusCode)
	}
}
