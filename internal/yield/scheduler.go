package yield

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers tasks on fixed intervals and looks them up for manual runs.
type Scheduler struct {
	cron   *cron.Cron
	tasks  map[string]*Task
	logger *slog.Logger
}

// NewScheduler constructs an idle scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger{logger})),
		tasks:  make(map[string]*Task),
		logger: logger,
	}
}

// Register adds a task to run every interval. A non-positive interval
// registers the task for manual runs only.
func (s *Scheduler) Register(ctx context.Context, task *Task, every time.Duration) error {
	if _, exists := s.tasks[task.Name()]; exists {
		return fmt.Errorf("task %s already registered", task.Name())
	}
	s.tasks[task.Name()] = task
	if every <= 0 {
		return nil
	}
	_, err := s.cron.AddFunc("@every "+every.String(), func() {
		if _, err := task.Run(ctx); errors.Is(err, ErrAlreadyRunning) {
			s.logger.Warn("sweep tick skipped", "task", task.Name())
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", task.Name(), err)
	}
	return nil
}

// Task returns a registered task by name.
func (s *Scheduler) Task(name string) (*Task, bool) {
	t, ok := s.tasks[name]
	return t, ok
}

// Statuses lists run metadata for every task, sorted by name.
func (s *Scheduler) Statuses() []Status {
	out := make([]Status, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start begins the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts new ticks and waits for running sweeps or ctx expiry.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
