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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/handler"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/observability"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/scheduler"
	"github.com/boddenberg/dealdesk-bfa/internal/service"
)

var flagPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "listen port (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, logger := loadConfig()
	if flagPort != 0 {
		cfg.Port = flagPort
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("backend_api_url", cfg.BackendAPIURL),
		zap.Bool("session_tokens_verified", cfg.SessionJWTSecret != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.String("notification_poll_schedule", cfg.NotificationPollSchedule),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "dealdesk-bfa")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	// --- Scheduler ---
	sched := scheduler.New(logger, cfg.HTTPTimeout*2)
	if cfg.NotificationPollSchedule != "" {
		if err := sched.Add("notification-poll", cfg.NotificationPollSchedule, a.notifications.Poll); err != nil {
			return err
		}
	}
	sched.Start()

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Pipeline:      a.pipeline,
		Collections:   a.collections,
		Notifications: a.notifications,
		Dashboard:     a.dashboard,
		Session:       service.NewSessionVerifier(cfg.SessionJWTSecret),
		Backend:       a.backend,
		Presentation:  a.presentation,
		DefaultTenant: cfg.TenantID,
	}, a.metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := sched.Stop(ctx); err != nil {
		logger.Warn("scheduler did not stop in time", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
