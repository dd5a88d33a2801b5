package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/tujenge/tujenge/internal/admin"
	"github.com/tujenge/tujenge/internal/auth"
	"github.com/tujenge/tujenge/internal/chat"
	"github.com/tujenge/tujenge/internal/config"
	"github.com/tujenge/tujenge/internal/funding"
	"github.com/tujenge/tujenge/internal/identity"
	"github.com/tujenge/tujenge/internal/ledger"
	"github.com/tujenge/tujenge/internal/metrics"
	"github.com/tujenge/tujenge/internal/middleware"
	"github.com/tujenge/tujenge/internal/notification"
	"github.com/tujenge/tujenge/internal/payments"
	"github.com/tujenge/tujenge/internal/referral"
	"github.com/tujenge/tujenge/internal/yield"
)

// Sweep task names, also used in the admin run endpoint.
const (
	MiningSweep   = "mining"
	MaturitySweep = "maturity"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Registry *prometheus.Registry
}

// Runtime holds the background workers the server must start and drain.
type Runtime struct {
	Store     ledger.Store
	Scheduler *yield.Scheduler
	Webhooks  *funding.WebhookProcessor
	Notifier  *notification.Dispatcher
}

// Setup builds the service graph, configures middlewares and registers all
// application routes. ctx bounds the scheduled sweeps.
func Setup(ctx context.Context, app *fiber.App, d Deps) (*Runtime, error) {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.Development() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	m := metrics.New(d.Registry)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	app.Use(m.Middleware())

	// Health and metrics
	RegisterHealthRoutes(app, d)
	app.Get("/metrics", metrics.Handler(d.Registry))

	// Services and handlers
	var store ledger.Store
	if d.DB != nil {
		pg := ledger.NewPostgresStore(d.DB)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		store = pg
	} else {
		d.Logger.Warn("no DATABASE_URL, using in-memory ledger")
		store = ledger.NewInMemory()
	}

	var board chat.Board
	if d.Cache != nil {
		board = chat.NewRedisBoard(d.Cache, d.Cfg.ChatHistoryLimit)
	} else {
		board = chat.NewMemoryBoard(d.Cfg.ChatHistoryLimit)
	}

	var notifier notification.Notifier = notification.NewLoggerNotifier(d.Logger)
	if d.Cfg.Telegram.BotToken != "" && d.Cfg.Telegram.ChatID != "" {
		notifier = notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken: d.Cfg.Telegram.BotToken,
			ChatID:   d.Cfg.Telegram.ChatID,
			Timeout:  d.Cfg.Telegram.Timeout,
		})
	}
	dispatcher := notification.NewDispatcher(notifier, d.Logger, m, d.Cfg.Telegram.Timeout)

	var gateway funding.Gateway
	if d.Cfg.Gateway.URL != "" {
		gateway = funding.NewHTTPGateway(funding.GatewayConfig{
			URL:         d.Cfg.Gateway.URL,
			APIKey:      d.Cfg.Gateway.APIKey,
			CallbackURL: d.Cfg.Gateway.CallbackURL,
			Timeout:     d.Cfg.Gateway.Timeout,
		})
	}

	issuer := auth.NewIssuer(d.Cfg.JWTSecret, d.Cfg.AccessTokenTTL)
	propagator := referral.NewPropagator(store, d.Logger, m)
	identitySvc := identity.NewService(store, propagator, issuer, dispatcher, d.Cfg.Policy.SignupBonus, d.Logger)
	fundingSvc := funding.NewService(store, propagator, gateway, dispatcher, funding.Policy{
		ActivationThreshold: d.Cfg.Policy.ActivationThreshold,
		ActivationReserve:   d.Cfg.Policy.ActivationReserve,
		MinWithdrawal:       d.Cfg.Policy.MinWithdrawal,
	}, d.Logger, m)
	webhooks := funding.NewWebhookProcessor(fundingSvc, d.Logger, m, d.Cfg.WebhookTimeout, d.Cfg.WebhookWorkers)
	paymentSvc := payments.NewService(store, d.Cfg.Rates, dispatcher, d.Logger, m)
	yieldSvc := yield.NewService(store, yield.DefaultCatalogue(), d.Cfg.Rates, d.Logger, m)
	adminSvc := admin.NewService(store, d.Logger, m)

	scheduler := yield.NewScheduler(d.Logger)
	sweeps := []struct {
		name  string
		run   yield.SweepFunc
		every time.Duration
	}{
		{MiningSweep, yieldSvc.MiningSweep, d.Cfg.MiningSweepEvery},
		{MaturitySweep, yieldSvc.MaturitySweep, d.Cfg.MaturitySweepEvery},
	}
	for _, s := range sweeps {
		task := yield.NewTask(s.name, s.run, s.every, d.Logger, m)
		if err := scheduler.Register(ctx, task, s.every); err != nil {
			return nil, err
		}
	}

	identityHandler := identity.NewHandler(identitySvc)
	fundingHandler := funding.NewHandler(fundingSvc, webhooks)
	paymentHandler := payments.NewHandler(paymentSvc)
	yieldHandler := yield.NewHandler(yieldSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterIdentityRoutes(api, identityHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginPerMinute))
	RegisterCallbackRoutes(api, fundingHandler)
	api.Get("/plans", yieldHandler.Plans)
	api.Get("/rates", paymentHandler.Rates)

	// Admin routes
	RegisterAdminRoutes(api.Group("/admin", middleware.AdminKey(d.Cfg.AdminAPIKey)), admin.NewHandler(adminSvc, scheduler))

	// Protected routes. Groups without a prefix install their middleware on
	// everything registered after them, so public and admin routes come first.
	protected := api.Group("", middleware.JWTAuth(issuer))
	RegisterProfileRoutes(protected, identityHandler)
	RegisterChatRoutes(protected, chat.NewHandler(board, store, d.Cfg.ChatHistoryLimit))

	transact := protected.Group("", middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	RegisterFundingRoutes(transact, fundingHandler)
	RegisterPaymentRoutes(transact, paymentHandler)
	RegisterYieldRoutes(transact, yieldHandler)

	return &Runtime{Store: store, Scheduler: scheduler, Webhooks: webhooks, Notifier: dispatcher}, nil
}
