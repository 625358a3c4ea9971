package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/patientportal/portal/internal/config"
	"github.com/patientportal/portal/internal/domain/identity"
	"github.com/patientportal/portal/internal/domain/messaging"
	"github.com/patientportal/portal/internal/domain/notification"
	"github.com/patientportal/portal/internal/platform/auth"
	"github.com/patientportal/portal/internal/platform/authz"
	"github.com/patientportal/portal/internal/platform/db"
	"github.com/patientportal/portal/internal/platform/envelope"
	"github.com/patientportal/portal/internal/platform/middleware"
)

const shutdownTimeout = 10 * time.Second

func runServer(logger zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	revoked := auth.NewRevocationList(time.Minute)
	defer revoked.Close()

	e, err := newServer(cfg, pool, revoked, logger)
	if err != nil {
		return err
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Str("env", cfg.Env).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires the repositories, services and handlers onto a new echo
// instance. Nothing here touches the database until a request arrives.
func newServer(cfg *config.Config, pool *pgxpool.Pool, revoked *auth.RevocationList, logger zerolog.Logger) (*echo.Echo, error) {
	ttl, err := cfg.JWTExpiry()
	if err != nil {
		return nil, err
	}

	// Repositories
	patients := identity.NewPatientRepo(pool)
	providers := identity.NewProviderRepo(pool)
	conversations := messaging.NewConversationRepo(pool)
	messages := messaging.NewMessageRepo(pool)
	notifications := notification.NewRepo(pool)

	guard := authz.NewGuard()
	messaging.RegisterOwnership(guard, conversations, messages)
	notification.RegisterOwnership(guard, notifications)

	// Services
	demoPassword := ""
	if cfg.DemoLoginActive() {
		demoPassword = cfg.DemoPassword
	}
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, ttl)
	identitySvc := identity.NewService(patients, providers, auth.NewPasswordHasher(0, demoPassword), tokens)
	identitySvc.SetRevoker(revoked)
	notificationSvc := notification.NewService(notifications, guard)
	messagingSvc := messaging.NewService(conversations, messages, providers, notificationSvc, db.NewTxRunner(pool), guard)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = envelope.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	var recorders []middleware.AuditRecorder
	if cfg.AuditLogFile != "" {
		f, err := os.OpenFile(cfg.AuditLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		e.Server.RegisterOnShutdown(func() { _ = f.Close() })
		recorders = append(recorders, middleware.LogRecorder(zerolog.New(f)))
	}
	e.Use(middleware.Audit(logger, recorders...))

	api := e.Group("/api", middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	limitCredentials := middleware.RateLimit(middleware.CredentialRateLimitConfig(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst))

	requireAuth := auth.BearerMiddleware(auth.BearerConfig{
		Tokens:   tokens,
		Patients: identitySvc,
		Revoked:  revoked,
		Skipper:  auth.AuthSkipper,
	})

	api.GET("/health", db.HealthHandler(pool))
	identity.NewHandler(identitySvc).RegisterRoutes(api, requireAuth, limitCredentials)
	messaging.NewHandler(messagingSvc).RegisterRoutes(api, requireAuth)
	notification.NewHandler(notificationSvc).RegisterRoutes(api, requireAuth)

	return e, nil
}
