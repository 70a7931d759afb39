package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/paywave/paywave/internal/config"
	"github.com/paywave/paywave/internal/directory"
	"github.com/paywave/paywave/internal/ledger"
	"github.com/paywave/paywave/internal/middleware"
	"github.com/paywave/paywave/internal/notification"
	"github.com/paywave/paywave/internal/paycode"
	"github.com/paywave/paywave/internal/payments"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Stores: Postgres in real deployments, in-memory in dev.
	var ledgerBackend ledger.Ledger
	var codeRepo paycode.Repository
	var dir directory.Directory
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		codeRepo = paycode.NewPostgresRepository(d.DB)
		dir = directory.NewPostgresDirectory(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
		codeRepo = paycode.NewMemoryRepository(ledgerBackend)
		dir = directory.NewMemory()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	paymentSvc := payments.NewService(ledgerBackend, dir, notifier, d.Cfg.DepositCeiling, d.Cfg.StoreTimeout)
	codeSvc := paycode.NewService(codeRepo, ledgerBackend, dir, notifier, d.Cfg.CodeTTL, d.Cfg.StoreTimeout)

	paymentHandler := payments.NewHandler(paymentSvc)
	codeHandler := paycode.NewHandler(codeSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Every business route requires the gateway-authenticated caller identity.
	protected := api.Group("", middleware.CallerIdentity())
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterAccountRoutes(protected, dir, ledgerBackend)
	RegisterPaymentRoutes(protected, paymentHandler)
	RegisterCodeRoutes(protected, codeHandler, middleware.RedeemRateLimit(d.Cache, d.Cfg.RedeemRatePerMin))

	return nil
}
