package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/money"
)

func TestFromEnvDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Policy.ActivationThreshold.Equal(decimal.NewFromInt(500)) || !cfg.Policy.ActivationReserve.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("unexpected policy %+v", cfg.Policy)
	}
	if cfg.MiningSweepEvery != 10*time.Minute || cfg.MaturitySweepEvery != 30*time.Minute {
		t.Fatalf("unexpected sweep intervals %v %v", cfg.MiningSweepEvery, cfg.MaturitySweepEvery)
	}
	if cfg.JWTSecret == "" {
		t.Fatalf("development should fall back to a dev secret")
	}
	if _, err := cfg.Rates.Lookup(money.KES, money.USDT); err != nil {
		t.Fatalf("default rates missing: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}

func TestFromEnvProductionRequiresBackends(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected DATABASE_URL error")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/tujenge")
	t.Setenv("JWT_SECRET", "")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected JWT_SECRET error")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("MIN_WITHDRAWAL", "150.50")
	t.Setenv("CONVERSION_RATES", "USDT:KES=128")
	t.Setenv("MINING_SWEEP_EVERY", "1m")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Policy.MinWithdrawal.Equal(decimal.RequireFromString("150.5")) {
		t.Fatalf("min withdrawal %s", cfg.Policy.MinWithdrawal)
	}
	rate, err := cfg.Rates.Lookup(money.USDT, money.KES)
	if err != nil || !rate.Equal(decimal.NewFromInt(128)) {
		t.Fatalf("rate %s err %v", rate, err)
	}
	if _, err := cfg.Rates.Lookup(money.BTC, money.USDT); err == nil {
		t.Fatalf("explicit table should replace the defaults")
	}
	if cfg.MiningSweepEvery != time.Minute || cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("unexpected durations %v %v", cfg.MiningSweepEvery, cfg.ShutdownPeriod)
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	for key, value := range map[string]string{
		"ACTIVATION_RESERVE": "-1",
		"WEBHOOK_TIMEOUT":    "soon",
		"CHAT_HISTORY_LIMIT": "many",
		"CONVERSION_RATES":   "KES:KES=1",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("%s=%s should fail", key, value)
			}
		})
	}
}
