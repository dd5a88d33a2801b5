package yield

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tujenge/tujenge/internal/metrics"
)

// ErrAlreadyRunning is returned when a sweep is triggered while one is active.
var ErrAlreadyRunning = errors.New("sweep already running")

// SweepFunc performs one pass of a sweep.
type SweepFunc func(ctx context.Context) (SweepResult, error)

// Status is the run metadata exposed to operators.
type Status struct {
	Name         string     `json:"name"`
	Running      bool       `json:"running"`
	Runs         int64      `json:"runs"`
	Processed    int64      `json:"processed"`
	Failed       int64      `json:"failed"`
	LastStarted  *time.Time `json:"lastStarted,omitempty"`
	LastFinished *time.Time `json:"lastFinished,omitempty"`
	LastSuccess  *time.Time `json:"lastSuccess,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
}

// Task runs a sweep with at most one active run at a time.
type Task struct {
	name    string
	sweep   SweepFunc
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.Mutex
	status Status
}

// NewTask wraps a sweep. A zero timeout leaves the run bounded only by ctx.
func NewTask(name string, sweep SweepFunc, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Task {
	return &Task{
		name:    name,
		sweep:   sweep,
		timeout: timeout,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		status:  Status{Name: name},
	}
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Run executes the sweep unless a run is already in flight.
func (t *Task) Run(ctx context.Context) (SweepResult, error) {
	t.mu.Lock()
	if t.status.Running {
		t.mu.Unlock()
		return SweepResult{}, ErrAlreadyRunning
	}
	started := t.now().UTC()
	t.status.Running = true
	t.status.LastStarted = &started
	t.mu.Unlock()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	res, err := t.sweep(ctx)
	finished := t.now().UTC()

	t.mu.Lock()
	t.status.Running = false
	t.status.Runs++
	t.status.Processed += int64(res.Accounts)
	t.status.Failed += int64(res.Failed)
	t.status.LastFinished = &finished
	if err != nil {
		t.status.LastError = err.Error()
	} else {
		t.status.LastError = ""
		t.status.LastSuccess = &finished
	}
	t.mu.Unlock()

	duration := finished.Sub(started)
	t.metrics.ObserveSweep(t.name, duration, res.Failed, err)
	if err != nil {
		t.logger.Error("sweep failed", "task", t.name, "duration", duration, "error", err)
	} else {
		t.logger.Info("sweep finished",
			"task", t.name,
			"duration", duration,
			"accounts", res.Accounts,
			"credited", res.Credited,
			"failed", res.Failed,
		)
	}
	return res, err
}

// Status returns a snapshot of the run metadata.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
