package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/ledger/internal/account"
	"github.com/congo-pay/ledger/internal/config"
	"github.com/congo-pay/ledger/internal/history"
	"github.com/congo-pay/ledger/internal/ledger"
	"github.com/congo-pay/ledger/internal/metrics"
	"github.com/congo-pay/ledger/internal/middleware"
	"github.com/congo-pay/ledger/internal/notification"
	"github.com/congo-pay/ledger/internal/txlog"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache may
// be nil in development, in which case in-memory backends are used.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Notifier notification.Notifier
	Metrics  *metrics.Metrics
	Tokens   middleware.TokenVerifier
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Tokens == nil {
		return fmt.Errorf("token verifier is required")
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))

	var (
		accountStore account.Store
		log          txlog.Log
	)
	if d.DB != nil {
		accountStore = account.NewPostgresStore(d.DB, d.Cfg.LockTimeout)
		log = txlog.NewPostgresLog(d.DB)
	} else {
		d.Logger.Warn("no database configured, using in-memory ledger")
		accountStore = account.NewMemoryStore(d.Cfg.LockTimeout)
		log = txlog.NewMemoryLog()
	}

	accountSvc := account.NewService(accountStore, account.Defaults{
		Currency:        d.Cfg.DefaultCurrency,
		WithdrawalLimit: d.Cfg.WithdrawalLimit,
	})
	engine := ledger.NewEngine(accountStore, log, d.Notifier, d.Metrics, d.Logger)
	historySvc := history.NewService(accountStore, log)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("", middleware.ActorAuth(d.Tokens), middleware.MutationRateLimit(d.Cache, d.Cfg.RateLimit, d.Logger))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	ledgerHandler := ledger.NewHandler(engine, accountSvc)
	RegisterAccountRoutes(protected, account.NewHandler(accountSvc), ledgerHandler)
	RegisterTransactionRoutes(protected, ledgerHandler, history.NewHandler(historySvc, accountSvc))

	return nil
}
