package funding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/account"
	"github.com/tujenge/tujenge/internal/ledger"
	"github.com/tujenge/tujenge/internal/logging"
	"github.com/tujenge/tujenge/internal/money"
)

func TestCallbackAcknowledgesEverything(t *testing.T) {
	store := ledger.NewInMemory()
	ledger.Seed(store, "0712345678", decimal.Zero)
	svc := newTestService(store)
	processor := NewWebhookProcessor(svc, logging.Discard(), nil, 0, 0)
	h := NewHandler(svc, processor)

	app := fiber.New()
	app.Post("/callback", h.Callback)

	bodies := []string{
		`{"TransID":"QKX1","TransAmount":"250","MSISDN":"254712345678"}`,
		`{"TransID":"QKX1","TransAmount":"250","MSISDN":"254712345678"}`,
		`garbage`,
		`{"TransID":"QKX2","TransAmount":"250","MSISDN":"254799999999"}`,
	}
	for _, body := range bodies {
		req := httptest.NewRequest(fiber.MethodPost, "/callback", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		raw, _ := io.ReadAll(resp.Body)
		var ack CallbackAck
		if resp.StatusCode != fiber.StatusOK || json.Unmarshal(raw, &ack) != nil || ack != accepted {
			t.Fatalf("expected constant ack, got %d %s", resp.StatusCode, raw)
		}
	}
	processor.Wait()

	acc, _ := store.Get(context.Background(), "0712345678")
	if !acc.Balance(money.KES).Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected one credit of 250, got %s", acc.Balance(money.KES))
	}
}

func TestProcessOutcomes(t *testing.T) {
	store := ledger.NewInMemory()
	ledger.Seed(store, "0712345678", decimal.Zero)
	p := NewWebhookProcessor(newTestService(store), logging.Discard(), nil, 0, 0)
	ctx := context.Background()

	cases := []struct {
		body string
		want string
	}{
		{`{"TransID":"A1","Amount":100,"MSISDN":"254712345678"}`, "credited"},
		{`{"TransID":"A1","Amount":100,"MSISDN":"254712345678"}`, "duplicate"},
		{`{"TransID":"A2","Amount":100,"MSISDN":"254700000000"}`, "unknown_account"},
		{`{"ResultCode":1,"TransID":"A3","Amount":100,"MSISDN":"254712345678"}`, "payment_failed"},
		{`{"Amount":100}`, "unparseable"},
	}
	for _, tc := range cases {
		if got := p.Process(ctx, []byte(tc.body)); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.body, tc.want, got)
		}
	}
}

func TestHTTPGatewaySTKPush(t *testing.T) {
	var payload stkPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"message":"queued"}`))
	}))
	defer srv.Close()

	gw := NewHTTPGateway(GatewayConfig{URL: srv.URL, APIKey: "k", CallbackURL: "https://cb"})
	resp, err := gw.InitiateSTKPush(context.Background(), STKRequest{Phone: "0712345678", Amount: decimal.NewFromInt(100), Reference: "DEP-1"})
	if err != nil {
		t.Fatalf("stk push: %v", err)
	}
	if resp.Reference != "DEP-1" || resp.Message != "queued" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if payload.Phone != "254712345678" || payload.APIKey != "k" || payload.CallbackURL != "https://cb" || payload.Amount != "100" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestHTTPGatewayUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(GatewayConfig{URL: srv.URL})
	_, err := gw.InitiateSTKPush(context.Background(), STKRequest{Phone: "0712345678", Amount: decimal.NewFromInt(100)})
	if !errors.Is(err, ErrUpstreamGateway) {
		t.Fatalf("expected upstream gateway error, got %v", err)
	}
}

// busyStore holds every Update briefly and records how many overlap.
type busyStore struct {
	ledger.Store
	mu      sync.Mutex
	active  int
	highest int
}

func (s *busyStore) Update(ctx context.Context, phone string, fn ledger.UpdateFunc) (account.Account, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.highest {
		s.highest = s.active
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()
	time.Sleep(5 * time.Millisecond)
	return s.Store.Update(ctx, phone, fn)
}

func TestWebhookProcessorBoundsWorkers(t *testing.T) {
	store := &busyStore{Store: ledger.NewInMemory()}
	ledger.Seed(store.Store, "0712345678", decimal.Zero)
	p := NewWebhookProcessor(newTestService(store), logging.Discard(), nil, 0, 2)

	for i := 0; i < 8; i++ {
		body := fmt.Sprintf(`{"TransID":"B%d","Amount":100,"MSISDN":"254712345678"}`, i)
		if !p.Submit([]byte(body)) {
			t.Fatalf("submit %d rejected", i)
		}
	}
	p.Wait()

	if store.highest > 2 {
		t.Fatalf("expected at most 2 concurrent callbacks, saw %d", store.highest)
	}
	acc, _ := store.Get(context.Background(), "0712345678")
	if !acc.Balance(money.KES).Equal(decimal.NewFromInt(800)) {
		t.Fatalf("expected 800 credited, got %s", acc.Balance(money.KES))
	}
}

func TestWebhookProcessorDropsAfterClose(t *testing.T) {
	store := ledger.NewInMemory()
	ledger.Seed(store, "0712345678", decimal.Zero)
	p := NewWebhookProcessor(newTestService(store), logging.Discard(), nil, 0, 0)

	p.Close()
	if p.Submit([]byte(`{"TransID":"C1","Amount":100,"MSISDN":"254712345678"}`)) {
		t.Fatalf("closed processor accepted a callback")
	}
	p.Wait()

	acc, _ := store.Get(context.Background(), "0712345678")
	if !acc.Balance(money.KES).IsZero() {
		t.Fatalf("closed processor credited %s", acc.Balance(money.KES))
	}
}
