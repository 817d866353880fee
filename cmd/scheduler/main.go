// Package main is the entry point for the DueWatch scheduler worker.
//
// It runs the trigger driver on a minute tick in the reference timezone and
// fires the daily billing reminder sweep when the configured time of day is
// reached. A small HTTP listener exposes liveness for orchestrators.
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

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"duewatch/internal/config"
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
	logger.Info("duewatch scheduler starting",
		"environment", cfg.Environment,
		"timezone", cfg.Scheduler.ReferenceTimezone,
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

	recordRepo := db.NewBillingRecordRepository(pool)
	settingsRepo := db.NewSettingsRepository(pool)
	sweepRepo := db.NewSweepRepository(pool)
	notificationRepo := db.NewNotificationRepository(pool)

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

	sweeper := scheduler.NewSweeper(recordRepo, provider, dispatcher, location, logger, nil)
	driver := scheduler.NewDriver(sweeper, sweepRepo, provider, location, logger, nil,
		workerID("scheduler"), cfg.Scheduler.SweepLockTTL)

	g, ctx := errgroup.WithContext(ctx)

	// Minute tick in the reference timezone. The driver decides whether a
	// sweep is actually due.
	engine := cron.New(cron.WithLocation(location))
	if _, err := engine.AddFunc("* * * * *", func() {
		driver.Tick(ctx)
	}); err != nil {
		return fmt.Errorf("registering tick schedule: %w", err)
	}

	g.Go(func() error {
		engine.Start()
		<-ctx.Done()
		stopCtx := engine.Stop()
		// Wait out an in-flight tick before exiting.
		select {
		case <-stopCtx.Done():
		case <-time.After(30 * time.Second):
			logger.Warn("timed out waiting for in-flight tick")
		}
		return nil
	})

	g.Go(func() error {
		return runHealthServer(ctx, cfg, pool, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("scheduler shutdown complete")
	return nil
}

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

func workerID(role string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%s-%d", role, host, os.Getpid())
}

type pinger interface {
	Ping(ctx context.Context) error
}

// runHealthServer exposes /health for liveness probes.
func runHealthServer(ctx context.Context, cfg *config.Config, pool pinger, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := pool.Ping(pingCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded","database":"unreachable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("health server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("health server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
