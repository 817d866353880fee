// Package main is the entry point for the DueWatch admin API server.
//
// It hosts the administrative surface of the billing reminder scheduler:
// the manual sweep trigger, notification settings management, and read-only
// views over billing records and sweep history. The daily automatic trigger
// runs in the separate scheduler binary; both share the database lease so
// they never sweep concurrently.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"duewatch/internal/api/handlers"
	"duewatch/internal/config"
	"duewatch/internal/core"
	"duewatch/internal/db"
	"duewatch/internal/external"
	"duewatch/internal/notifications/email"
	"duewatch/internal/scheduler"
	"duewatch/internal/settings"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("duewatch API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	location, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("loading reference timezone: %w", err)
	}

	// Repositories.
	recordRepo := db.NewBillingRecordRepository(pool)
	settingsRepo := db.NewSettingsRepository(pool)
	sweepRepo := db.NewSweepRepository(pool)
	notificationRepo := db.NewNotificationRepository(pool)

	// Settings and dispatch.
	provider := settings.NewProvider(settingsRepo, notificationRepo)
	sender := external.NewSendGridClient(
		&http.Client{Timeout: 10 * time.Second},
		external.SendGridConfig{
			APIKey:      cfg.Email.SendGridAPIKey.Reveal(),
			FromAddress: cfg.Email.FromAddress,
			FromName:    cfg.Email.FromName,
			Logger:      logger,
		},
	)
	dispatcher := email.NewDispatcher(sender, notificationRepo, logger, cfg.Email.DispatchTimeout)

	// Sweep machinery for the manual trigger.
	sweeper := scheduler.NewSweeper(recordRepo, provider, dispatcher, location, logger, nil)
	driver := scheduler.NewDriver(sweeper, sweepRepo, provider, location, logger, nil,
		workerID("api"), cfg.Scheduler.SweepLockTTL)

	// HTTP chassis and handlers.
	srv, err := core.NewServer(cfg, logger, pool)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	schedulerHandler := handlers.NewSchedulerHandler(driver, sweepRepo, logger)
	settingsHandler := handlers.NewSettingsHandler(provider, logger)
	recordsHandler := handlers.NewRecordsHandler(recordRepo)

	srv.MountRoutes(func(r chi.Router) {
		schedulerHandler.RegisterRoutes(r)
		settingsHandler.RegisterRoutes(r)
		recordsHandler.RegisterRoutes(r)
	})

	return runHTTPServer(ctx, srv, cfg, logger)
}

// newLogger builds the process-wide structured JSON logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// workerID names this instance in the sweep lease.
func workerID(role string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%s-%d", role, host, os.Getpid())
}

// runHTTPServer serves until a shutdown signal arrives, then drains with a
// 10-second deadline.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server shutdown complete")
	return nil
}
