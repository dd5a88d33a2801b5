// Package metrics holds the prometheus collectors of the service. Every method
// is safe on a nil *Metrics so tests can skip instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	Deposits          *prometheus.CounterVec
	Commissions       *prometheus.CounterVec
	CommissionCutoffs prometheus.Counter
	Operations        *prometheus.CounterVec

	SweepRuns     *prometheus.CounterVec
	SweepFailures *prometheus.CounterVec
	SweepDuration *prometheus.HistogramVec
	GatewayCalls  *prometheus.CounterVec
	Notifications *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		Deposits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tujenge_deposit_callbacks_total",
				Help: "Deposit callbacks by outcome.",
			},
			[]string{"outcome"},
		),
		Commissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tujenge_referral_commissions_total",
				Help: "Referral commissions credited per tier.",
			},
			[]string{"level"},
		),
		CommissionCutoffs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tujenge_referral_walk_truncations_total",
				Help: "Commission walks stopped early by a missing ancestor, a cycle or a store error.",
			},
		),
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tujenge_money_operations_total",
				Help: "Client money operations by kind and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		SweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tujenge_sweep_runs_total",
				Help: "Periodic sweep runs by task and outcome.",
			},
			[]string{"task", "outcome"},
		),
		SweepFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tujenge_sweep_account_failures_total",
				Help: "Accounts a sweep failed to process.",
			},
			[]string{"task"},
		),
		SweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tujenge_sweep_duration_seconds",
				Help:    "Sweep run duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task"},
		),
		GatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tujenge_gateway_calls_total",
				Help: "Outbound payment gateway calls by outcome.",
			},
			[]string{"outcome"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tujenge_notifications_total",
				Help: "Outbound notifications by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCount,
		m.RequestDuration,
		m.Deposits,
		m.Commissions,
		m.CommissionCutoffs,
		m.Operations,
		m.SweepRuns,
		m.SweepFailures,
		m.SweepDuration,
		m.GatewayCalls,
		m.Notifications,
	)
	return m
}

// Handler exposes registry in the prometheus text format.
func Handler(registry *prometheus.Registry) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path
		m.RequestCount.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

func (m *Metrics) IncDeposit(outcome string) {
	if m == nil {
		return
	}
	m.Deposits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCommission(level int) {
	if m == nil {
		return
	}
	m.Commissions.WithLabelValues(strconv.Itoa(level)).Inc()
}

func (m *Metrics) IncCommissionCutoff() {
	if m == nil {
		return
	}
	m.CommissionCutoffs.Inc()
}

// ObserveOperation counts a client money operation; err == nil is "ok".
func (m *Metrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveSweep(task string, duration time.Duration, failed int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.SweepRuns.WithLabelValues(task, outcome).Inc()
	m.SweepDuration.WithLabelValues(task).Observe(duration.Seconds())
	if failed > 0 {
		m.SweepFailures.WithLabelValues(task).Add(float64(failed))
	}
}

func (m *Metrics) IncGatewayCall(outcome string) {
	if m == nil {
		return
	}
	m.GatewayCalls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, outcome).Inc()
}
