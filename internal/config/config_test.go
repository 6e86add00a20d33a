package config

import (
	"testing"
	"time"

	"github.com/congo-pay/ledger/internal/money"
)

// clearEnv blanks every key FromEnv reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_NAME", "APP_ENV", "PORT", "LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL", "REDIS_URL",
		"JWT_SECRET", "DEFAULT_CURRENCY", "NOTIFY_BACKEND", "EVENTS_CHANNEL", "AMQP_URL", "AMQP_EXCHANGE",
		"DEFAULT_WITHDRAWAL_LIMIT", "RATE_LIMIT_PER_MINUTE",
		idemTTLSecondsEnvVar, idemTTLDurEnvVar, shutdownSecondsEnvVar, shutdownDurationEnvVar,
		lockSecondsEnvVar, lockDurationEnvVar,
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDevDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "development")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Address() != ":8080" || cfg.LogFormat != "json" || cfg.NotifyBackend != NotifyLog {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.LockTimeout != 5*time.Second || cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("unexpected durations %+v", cfg)
	}
	want, _ := money.FromMajor(50_000)
	if cfg.WithdrawalLimit != want || cfg.DefaultCurrency != "INR" {
		t.Fatalf("unexpected account defaults %+v", cfg)
	}
	if cfg.JWTSecret == "" {
		t.Fatalf("expected a development secret")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("PORT", ":9090")
	t.Setenv("LEDGER_LOCK_TIMEOUT", "250ms")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("DEFAULT_WITHDRAWAL_LIMIT", "1000.50")
	t.Setenv("DEFAULT_CURRENCY", "usd")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Address() != ":9090" || cfg.LockTimeout != 250*time.Millisecond || cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.WithdrawalLimit != money.FromMinor(100_050) || cfg.DefaultCurrency != "USD" || cfg.RateLimit != 0 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestFromEnvProductionRequirements(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected missing DATABASE_URL to fail")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected missing JWT_SECRET to fail")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	if _, err := FromEnv(); err != nil {
		t.Fatalf("from env: %v", err)
	}
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"LEDGER_LOCK_TIMEOUT":      "soon",
		"DEFAULT_WITHDRAWAL_LIMIT": "-5",
		"NOTIFY_BACKEND":           "carrier-pigeon",
		"RATE_LIMIT_PER_MINUTE":    "many",
		"DEFAULT_CURRENCY":         "RUPEE",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("APP_ENV", "dev")
			t.Setenv(key, value)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected %s=%q to fail", key, value)
			}
		})
	}
}
