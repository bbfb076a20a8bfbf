package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kulicha-project/kulicha/internal/access"
	"github.com/kulicha-project/kulicha/internal/apperr"
	"github.com/kulicha-project/kulicha/internal/audit"
	"github.com/kulicha-project/kulicha/internal/auth"
	"github.com/kulicha-project/kulicha/internal/benefit"
	"github.com/kulicha-project/kulicha/internal/config"
	"github.com/kulicha-project/kulicha/internal/middleware"
	"github.com/kulicha-project/kulicha/internal/notification"
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
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var (
		authRepo    auth.Repository
		benefitRepo benefit.Repository
		auditRepo   audit.Repository
	)
	if d.DB != nil {
		authRepo = auth.NewPostgresRepository(d.DB)
		benefitRepo = benefit.NewPostgresRepository(d.DB)
		auditRepo = audit.NewPostgresRepository(d.DB)
	} else {
		authRepo = auth.NewMemoryRepository()
		benefitRepo = benefit.NewMemoryRepository()
		auditRepo = audit.NewMemoryRepository()
	}

	auditSvc := audit.NewService(auditRepo, d.Logger)

	var notifier notification.Notifier
	if d.Cfg.SMTPHost != "" {
		notifier = notification.NewSMTPNotifier(d.Cfg.SMTPHost, d.Cfg.SMTPPort, d.Cfg.SMTPUser, d.Cfg.SMTPPassword, d.Cfg.SMTPFrom)
	} else {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	authSvc := auth.NewService(authRepo, auditSvc, notifier, nil, d.Cfg.VerificationTTL, d.Logger)
	benefitSvc := benefit.NewService(benefitRepo, auditSvc)
	guard := access.NewGuard(authRepo, auditSvc)

	api := app.Group("/api/v1")

	rateLimiter := middleware.VerificationRateLimit(d.Cache, d.Cfg.VerifyPerMinute)
	RegisterAuthRoutes(api, guard, authSvc, rateLimiter)
	RegisterBenefitRoutes(api, guard, benefitSvc)
	RegisterAuditRoutes(api, guard, auditSvc)

	return nil
}

// fail converts a service error into the fiber error the client sees.
func fail(err error) error {
	return fiber.NewError(apperr.Status(err), err.Error())
}
