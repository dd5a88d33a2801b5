package funding

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tujenge/tujenge/internal/account"
	"github.com/tujenge/tujenge/internal/metrics"
)

// WebhookProcessor applies gateway callbacks in the background so the HTTP
// acknowledgement never waits on ledger work. At most workers callbacks run at
// once; Submit blocks for a free slot when all are busy.
type WebhookProcessor struct {
	service *Service
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	slots   chan struct{}

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewWebhookProcessor bounds each callback's processing by timeout and the
// number of concurrent callbacks by workers.
func NewWebhookProcessor(service *Service, logger *slog.Logger, m *metrics.Metrics, timeout time.Duration, workers int) *WebhookProcessor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if workers <= 0 {
		workers = 32
	}
	return &WebhookProcessor{
		service: service,
		logger:  logger,
		metrics: m,
		timeout: timeout,
		slots:   make(chan struct{}, workers),
	}
}

// Submit schedules body for processing and reports whether it was accepted.
// After Close every body is dropped. body must not be reused by the caller.
func (p *WebhookProcessor) Submit(body []byte) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.metrics.IncDeposit("dropped_closed")
		p.logger.Error("callback dropped during shutdown", "bytes", len(body))
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.slots <- struct{}{}
	go func() {
		defer func() {
			<-p.slots
			p.wg.Done()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		p.Process(ctx, body)
	}()
	return true
}

// Process parses and applies one callback, returning the outcome label that
// was recorded.
func (p *WebhookProcessor) Process(ctx context.Context, body []byte) string {
	outcome := "credited"
	defer func() { p.metrics.IncDeposit(outcome) }()

	cb, err := ParseCallback(body)
	if err != nil {
		if errors.Is(err, ErrPaymentFailed) {
			outcome = "payment_failed"
			p.logger.Info("payment not completed", "receipt", cb.Receipt, "phone", cb.Phone, "error", err)
		} else {
			outcome = "unparseable"
			p.logger.Warn("dropping callback", "error", err)
		}
		return outcome
	}

	res, err := p.service.Deposit(ctx, cb)
	switch {
	case err == nil:
		p.logger.Info("deposit credited",
			"receipt", cb.Receipt,
			"phone", cb.Phone,
			"amount", cb.Amount.String(),
			"activated", res.Activated,
			"commission_levels", len(res.Commissions.Credits),
		)
	case errors.Is(err, account.ErrDuplicateExternalEvent):
		outcome = "duplicate"
		p.logger.Info("duplicate callback ignored", "receipt", cb.Receipt, "phone", cb.Phone)
	case errors.Is(err, account.ErrNotFound):
		outcome = "unknown_account"
		p.logger.Warn("callback for unknown account", "receipt", cb.Receipt, "phone", cb.Phone)
	default:
		outcome = "error"
		p.logger.Error("deposit processing failed", "receipt", cb.Receipt, "phone", cb.Phone, "error", err)
	}
	return outcome
}

// Close stops accepting callbacks. Callbacks already submitted still run.
func (p *WebhookProcessor) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Wait blocks until every submitted callback has finished.
func (p *WebhookProcessor) Wait() {
	p.wg.Wait()
}
