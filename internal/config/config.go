package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/money"
)

const (
	defaultAppName         = "Tujenge"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAccessTokenTTL  = 24 * time.Hour
	defaultGatewayTimeout  = 5 * time.Second
	defaultNotifyTimeout   = 5 * time.Second
	defaultWebhookTimeout  = 30 * time.Second
	defaultMiningEvery     = 10 * time.Minute
	defaultMaturityEvery   = 30 * time.Minute
	defaultChatLimit       = 50
	defaultWebhookWorkers  = 32
	defaultLoginPerMinute  = 10
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Policy holds the monetary thresholds.
type Policy struct {
	ActivationThreshold decimal.Decimal
	ActivationReserve   decimal.Decimal
	MinWithdrawal       decimal.Decimal
	SignupBonus         decimal.Decimal
}

// Gateway configures the mobile-money aggregator.
type Gateway struct {
	URL         string
	APIKey      string
	CallbackURL string
	Timeout     time.Duration
}

// Telegram configures operator notifications.
type Telegram struct {
	BotToken string
	ChatID   string
	Timeout  time.Duration
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret      string
	AccessTokenTTL time.Duration
	AdminAPIKey    string
	LoginPerMinute int

	Policy             Policy
	Rates              money.Rates
	MiningSweepEvery   time.Duration
	MaturitySweepEvery time.Duration
	WebhookTimeout     time.Duration
	WebhookWorkers     int
	ChatHistoryLimit   int

	Gateway  Gateway
	Telegram Telegram
}

// Load reads an optional .env file and then the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration values from the environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AdminAPIKey:    os.Getenv("ADMIN_API_KEY"),
		Gateway: Gateway{
			URL:         os.Getenv("GATEWAY_URL"),
			APIKey:      os.Getenv("GATEWAY_API_KEY"),
			CallbackURL: os.Getenv("GATEWAY_CALLBACK_URL"),
		},
		Telegram: Telegram{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		},
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	var err error
	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"ACCESS_TOKEN_TTL", defaultAccessTokenTTL, &cfg.AccessTokenTTL},
		{"MINING_SWEEP_EVERY", defaultMiningEvery, &cfg.MiningSweepEvery},
		{"MATURITY_SWEEP_EVERY", defaultMaturityEvery, &cfg.MaturitySweepEvery},
		{"WEBHOOK_TIMEOUT", defaultWebhookTimeout, &cfg.WebhookTimeout},
		{"GATEWAY_TIMEOUT", defaultGatewayTimeout, &cfg.Gateway.Timeout},
		{"NOTIFY_TIMEOUT", defaultNotifyTimeout, &cfg.Telegram.Timeout},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.fallback); err != nil {
			return Config{}, err
		}
	}

	amounts := []struct {
		key      string
		fallback string
		dst      *decimal.Decimal
	}{
		{"ACTIVATION_THRESHOLD", "500", &cfg.Policy.ActivationThreshold},
		{"ACTIVATION_RESERVE", "200", &cfg.Policy.ActivationReserve},
		{"MIN_WITHDRAWAL", "200", &cfg.Policy.MinWithdrawal},
		{"SIGNUP_BONUS", "20", &cfg.Policy.SignupBonus},
	}
	for _, a := range amounts {
		if *a.dst, err = getDecimal(a.key, a.fallback); err != nil {
			return Config{}, err
		}
	}

	if cfg.ChatHistoryLimit, err = getInt("CHAT_HISTORY_LIMIT", defaultChatLimit); err != nil {
		return Config{}, err
	}
	if cfg.WebhookWorkers, err = getInt("WEBHOOK_WORKERS", defaultWebhookWorkers); err != nil {
		return Config{}, err
	}
	if cfg.LoginPerMinute, err = getInt("LOGIN_RATE_PER_MINUTE", defaultLoginPerMinute); err != nil {
		return Config{}, err
	}

	cfg.Rates = money.DefaultRates()
	if v := os.Getenv("CONVERSION_RATES"); v != "" {
		if cfg.Rates, err = money.ParseRates(v); err != nil {
			return Config{}, fmt.Errorf("invalid CONVERSION_RATES: %w", err)
		}
	}

	if cfg.JWTSecret == "" {
		if !cfg.Development() {
			return Config{}, fmt.Errorf("JWT_SECRET must be set")
		}
		cfg.JWTSecret = "dev-insecure-secret"
	}

	if cfg.Development() {
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	return cfg, nil
}

// Development reports whether the process may run without Postgres and Redis.
func (c Config) Development() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev" || c.AppEnv == "local"
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDecimal(key, fallback string) (decimal.Decimal, error) {
	v := getEnv(key, fallback)
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}
