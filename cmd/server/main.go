// Package main runs the provider back-office API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/providerdesk/backoffice/internal/config"
	"github.com/providerdesk/backoffice/internal/logging"
	"github.com/providerdesk/backoffice/internal/mailer"
	"github.com/providerdesk/backoffice/internal/middleware"
	"github.com/providerdesk/backoffice/internal/objectstore"
	"github.com/providerdesk/backoffice/internal/platform/migrations"

	"github.com/providerdesk/backoffice/internal/app"
	"github.com/providerdesk/backoffice/internal/app/httpapi"
	"github.com/providerdesk/backoffice/internal/app/metrics"
	"github.com/providerdesk/backoffice/internal/app/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	auditPath := flag.String("audit-log", "", "Optional JSONL file for the API audit trail")
	flag.Parse()

	// .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewDefault("server").WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	log := logging.New("server", cfg.LogLevel, os.Stdout)

	stores := app.Stores{}
	var db *sql.DB
	if cfg.Database.DSN != "" {
		db, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.WithError(err).Error("failed to open database")
			os.Exit(1)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := migrations.Apply(migrateCtx, db); err != nil {
			cancel()
			log.WithError(err).Error("failed to run migrations")
			os.Exit(1)
		}
		cancel()

		pg := postgres.New(db)
		stores = app.Stores{
			Orgs:          pg,
			Users:         pg,
			Houses:        pg,
			Residents:     pg,
			Contracts:     pg,
			Transactions:  pg,
			Claims:        pg,
			Notifications: pg,
			Documents:     pg,
			Automation:    pg,
		}
	} else {
		log.Warn("DATABASE_DSN not set; using in-memory storage")
	}

	deps := app.Dependencies{
		TokenTTL:         cfg.Auth.TokenTTL,
		SignedURLTTL:     cfg.Storage.SignedURLTTL,
		CacheTTL:         cfg.Redis.CacheTTL,
		CatchUpLimitDays: cfg.Billing.CatchUpLimitDays,
		BillingSchedule:  cfg.Billing.Schedule,
	}

	skipPaths := []string{"/healthz", "/metrics", "/api/auth/login", "/api/auth/signup", "/api/cron/billing"}
	auth := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, log, skipPaths)
	deps.TokenIssuer = auth

	if cfg.Mailer.BaseURL != "" {
		sender, err := mailer.New(mailer.Config{
			BaseURL:     cfg.Mailer.BaseURL,
			APIKey:      cfg.Mailer.APIKey,
			FromAddress: cfg.Mailer.FromAddress,
			Timeout:     cfg.Mailer.Timeout,
			MaxRetries:  cfg.Mailer.MaxRetries,
		}, log)
		if err != nil {
			log.WithError(err).Error("failed to configure mailer")
			os.Exit(1)
		}
		deps.Mailer = sender
	} else {
		log.Warn("MAILER_BASE_URL not set; email delivery disabled")
	}

	if cfg.Storage.BaseURL != "" {
		objects, err := objectstore.New(objectstore.Config{
			BaseURL: cfg.Storage.BaseURL,
			APIKey:  cfg.Storage.APIKey,
			Bucket:  cfg.Storage.Bucket,
			Timeout: cfg.Storage.UploadTimeout,
		}, log)
		if err != nil {
			log.WithError(err).Error("failed to configure object storage")
			os.Exit(1)
		}
		deps.Objects = objects
	} else {
		log.Warn("STORAGE_BASE_URL not set; contract documents disabled")
	}

	if cfg.Redis.Addr != "" {
		deps.Cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	application, err := app.New(stores, deps, log)
	if err != nil {
		log.WithError(err).Error("failed to build application")
		os.Exit(1)
	}

	apiHandler, err := httpapi.NewHandler(application, httpapi.Options{
		CronSecret: cfg.Billing.CronSecret,
		AuditPath:  *auditPath,
	})
	if err != nil {
		log.WithError(err).Error("failed to build API handler")
		os.Exit(1)
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst, log)
	limiter.StartCleanup(5 * time.Minute)
	cors := middleware.NewCORSMiddleware(nil)
	tracing := middleware.NewTracingMiddleware(log)

	var handler http.Handler = apiHandler
	handler = auth.Handler(handler)
	handler = limiter.Handler(handler)
	handler = cors.Handler(handler)
	handler = metrics.InstrumentHandler(handler)
	handler = tracing.Handler(handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start background services")
		os.Exit(1)
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server error")
			cancel()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("service shutdown")
	}
	if db != nil {
		_ = db.Close()
	}
	log.Info("shutdown complete")
}
