package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/tujenge/tujenge/internal/config"
	"github.com/tujenge/tujenge/internal/middleware"
	"github.com/tujenge/tujenge/internal/routes"
)

// Server wraps the Fiber application, its background workers and shared dependencies.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	runtime *routes.Runtime
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger, registry *prometheus.Registry) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler(logger),
	})

	ctx, cancel := context.WithCancel(context.Background())
	rt, err := routes.Setup(ctx, app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger, Registry: registry})
	if err != nil {
		cancel()
		return nil, err
	}

	return &Server{app: app, cfg: cfg, runtime: rt, logger: logger, cancel: cancel}, nil
}

// App exposes the fiber application for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the sweep scheduler and the HTTP server.
func (s *Server) Listen() error {
	s.runtime.Scheduler.Start()
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops new sweeps and requests, then drains webhook and
// notification work until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.runtime.Scheduler.Stop(ctx)
	err := s.app.ShutdownWithContext(ctx)
	s.runtime.Webhooks.Close()

	drained := make(chan struct{})
	go func() {
		s.runtime.Webhooks.Wait()
		s.runtime.Notifier.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		s.logger.Warn("shutdown deadline reached with background work pending")
	}
	s.cancel()
	return err
}

func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		msg := err.Error()
		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"request_id", middleware.RequestIDFrom(c),
				"error", err,
			)
			if fe == nil {
				msg = "internal server error"
			}
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
