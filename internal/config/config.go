package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/congo-pay/ledger/internal/money"
)

const (
	defaultAppName         = "CongoLedger"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultLockTimeout     = 5 * time.Second
	defaultCurrency        = "INR"
	defaultWithdrawalLimit = "50000"
	defaultRateLimit       = 60
	defaultNotifyBackend   = NotifyLog
	defaultEventsChannel   = "ledger_events"
	defaultAMQPExchange    = "ledger_events"
	devJWTSecret           = "dev-only-insecure-secret"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	lockSecondsEnvVar      = "LEDGER_LOCK_TIMEOUT_SECONDS"
	lockDurationEnvVar     = "LEDGER_LOCK_TIMEOUT"
)

// Notification backends.
const (
	NotifyLog   = "log"
	NotifyRedis = "redis"
	NotifyAMQP  = "amqp"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	LogFormat       string
	DatabaseURL     string
	RedisURL        string
	JWTSecret       string
	ShutdownPeriod  time.Duration
	IdempotencyTTL  time.Duration
	LockTimeout     time.Duration
	DefaultCurrency string
	WithdrawalLimit money.Money
	RateLimit       int
	NotifyBackend   string
	EventsChannel   string
	AMQPURL         string
	AMQPExchange    string
}

// Load reads an optional .env file, then configuration values from the environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv populates a Config from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", defaultCurrency)),
		NotifyBackend:   strings.ToLower(getEnv("NOTIFY_BACKEND", defaultNotifyBackend)),
		EventsChannel:   getEnv("EVENTS_CHANNEL", defaultEventsChannel),
		AMQPURL:         os.Getenv("AMQP_URL"),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", defaultAMQPExchange),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout, err = durationEnv(lockSecondsEnvVar, lockDurationEnvVar, defaultLockTimeout); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout <= 0 {
		return Config{}, fmt.Errorf("%s must be positive", lockDurationEnvVar)
	}

	limit, err := money.Parse(getEnv("DEFAULT_WITHDRAWAL_LIMIT", defaultWithdrawalLimit))
	if err != nil || !limit.IsPositive() {
		return Config{}, fmt.Errorf("invalid DEFAULT_WITHDRAWAL_LIMIT: must be a positive amount")
	}
	cfg.WithdrawalLimit = limit

	cfg.RateLimit = defaultRateLimit
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %q", v)
		}
		cfg.RateLimit = n
	}

	if len(cfg.DefaultCurrency) != 3 {
		return Config{}, fmt.Errorf("invalid DEFAULT_CURRENCY: %q", cfg.DefaultCurrency)
	}

	switch cfg.NotifyBackend {
	case NotifyLog:
	case NotifyRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("NOTIFY_BACKEND=redis requires REDIS_URL")
		}
	case NotifyAMQP:
		if cfg.AMQPURL == "" {
			return Config{}, fmt.Errorf("NOTIFY_BACKEND=amqp requires AMQP_URL")
		}
	default:
		return Config{}, fmt.Errorf("invalid NOTIFY_BACKEND: %q", cfg.NotifyBackend)
	}

	if cfg.IsDev() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devJWTSecret
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	return cfg, nil
}

// IsDev reports whether the environment allows in-memory backends.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
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

// durationEnv reads whole seconds from secondsKey, or a Go duration string from durationKey.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}
