package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tujenge/tujenge/internal/metrics"
)

// Dispatcher sends messages in the background. Delivery is best effort: errors
// are logged and counted, never returned to the money path.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher wraps notifier. A zero timeout defaults to five seconds.
func NewDispatcher(notifier Notifier, logger *slog.Logger, m *metrics.Metrics, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{notifier: notifier, logger: logger, metrics: m, timeout: timeout}
}

// Dispatch queues message for delivery and returns immediately.
func (d *Dispatcher) Dispatch(message Message) {
	if d == nil || d.notifier == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.notifier.Send(ctx, message); err != nil {
			d.metrics.IncNotification(message.Kind, "error")
			d.logger.Warn("notification failed", "kind", message.Kind, "destination", message.Destination, "error", err)
			return
		}
		d.metrics.IncNotification(message.Kind, "sent")
	}()
}

// Wait blocks until every queued message has been attempted.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
