package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/acctly/internal/auth/guard"
	httpapi "github.com/aussiebroadwan/acctly/internal/auth/http"
	"github.com/aussiebroadwan/acctly/internal/auth/service"
	"github.com/aussiebroadwan/acctly/internal/auth/store"
	"github.com/aussiebroadwan/acctly/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/acctly/pkg/mailx"
	"github.com/aussiebroadwan/acctly/pkg/otpx"
	"github.com/aussiebroadwan/acctly/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db     store.Store
	keys   *AuthKeys
	redis  *redis.Client // nil without REDIS_ADDR
	mailer mailx.Sender

	attempts guard.Attempts
	denylist guard.Denylist

	// Services
	userService         *service.UserService
	enrollmentService   *service.EnrollmentService
	loginService        *service.LoginService
	verificationService *service.VerificationService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	keys, err := InitAuthKeys(app.cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keys: %w", err)
	}
	app.keys = keys

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initGuards()
	app.initMailer()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	version, dirty, err := db.SchemaVersion()
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	app.logger.Info("database migrations applied successfully", "schema_version", version, "dirty", dirty)
	return nil
}

// initGuards connects the Redis backed attempt counter and token denylist.
// Without Redis both are no-ops and login tokens stay valid until expiry.
func (app *Application) initGuards() {
	if app.cfg.RedisAddr == "" {
		app.attempts = guard.Nop{}
		app.denylist = guard.Nop{}
		app.logger.Warn("REDIS_ADDR not set, attempt limiting and token revocation disabled")
		return
	}

	app.redis = redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
	app.attempts = guard.NewRedisAttempts(app.redis, guard.AttemptsConfig{
		MaxAttempts: app.cfg.MaxCodeAttempts,
	})
	app.denylist = guard.NewRedisDenylist(app.redis, "")
	app.logger.Info("redis guards enabled", "addr", app.cfg.RedisAddr, "max_attempts", app.cfg.MaxCodeAttempts)
}

// initMailer picks SMTP delivery, or logs codes when no relay is configured.
func (app *Application) initMailer() {
	if app.cfg.SMTP.Host == "" {
		app.mailer = mailx.LogSender{Logger: app.logger}
		app.logger.Warn("SMTP_HOST not set, email codes will be written to the log")
		return
	}

	app.mailer = mailx.NewSMTPSender(mailx.SMTPConfig{
		Host:        app.cfg.SMTP.Host,
		Port:        app.cfg.SMTP.Port,
		Username:    app.cfg.SMTP.Username,
		Password:    app.cfg.SMTP.Password,
		From:        app.cfg.SMTP.From,
		ImplicitTLS: app.cfg.SMTP.ImplicitTLS,
	})
	app.logger.Info("smtp delivery enabled", "host", app.cfg.SMTP.Host, "port", app.cfg.SMTP.Port)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.userService = &service.UserService{
		Store:     app.db,
		Passwords: app.keys.Passwords,
	}

	app.enrollmentService = &service.EnrollmentService{
		Store:     app.db,
		Passwords: app.keys.Passwords,
		TOTP:      &otpx.Generator{Issuer: app.cfg.TOTPIssuer},
		StepUp:    app.keys.StepUp,
		Attempts:  app.attempts,
	}

	app.loginService = &service.LoginService{
		Store:     app.db,
		Passwords: app.keys.Passwords,
		StepUp:    app.keys.StepUp,
		Codes: &service.EmailCodeIssuer{
			Store:  app.db,
			Hasher: app.keys.Codes,
			Mailer: app.mailer,
			TTL:    app.cfg.EmailCodeTTL,
		},
		Sessions: &service.SessionService{
			Signer: app.keys.Signer,
			Issuer: app.cfg.Issuer,
			TTL:    app.cfg.SessionTTL,
		},
		Attempts: app.attempts,
		Denylist: app.denylist,
	}

	app.verificationService = &service.VerificationService{
		Store:    app.db,
		Hasher:   app.keys.Codes,
		Mailer:   app.mailer,
		Attempts: app.attempts,
		TTL:      app.cfg.VerificationTTL,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys.KeySet,
		app.keys.Verifier,
		app.cfg.Issuer,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.Users = app.userService
	router.Login = app.loginService
	router.Enrollment = app.enrollmentService
	router.Verification = app.verificationService
	if app.redis != nil {
		router.CachePing = func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		}
	}
	if app.cfg.CredentialLimit > 0 {
		router.Limits.Credential.Requests = app.cfg.CredentialLimit
	}
	router.EnableCORS(app.cfg.CORSOrigins)
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
