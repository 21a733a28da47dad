package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dukerupert/eventpilot/internal/jobs"
	"github.com/dukerupert/eventpilot/internal/middleware"
	"github.com/dukerupert/eventpilot/internal/notify"
	"github.com/dukerupert/eventpilot/internal/server"
	"github.com/dukerupert/eventpilot/internal/telemetry"
	ws "github.com/dukerupert/eventpilot/internal/websocket"
)

func (a *App) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *App) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	hub := ws.NewHub(logger.With("component", "websocket"))
	notifiers := notify.Multi{hub}
	if len(cfg.Kafka.Brokers) > 0 {
		kn := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kn.Close()
		notifiers = append(notifiers, kn)
		logger.Info("kafka notifications enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	svc, err := a.service(notifiers)
	if err != nil {
		return err
	}
	defer a.Close()

	runner := jobs.NewRunner(time.Minute, logger.With("component", "jobs"))
	if err := runner.Add(jobs.PruneOrphans(cfg.Jobs.PruneCron, svc, logger.With("component", "jobs"))); err != nil {
		return err
	}

	var limiter middleware.Limiter
	if cfg.RateLimit.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		defer rdb.Close()
		limiter = middleware.NewRedisRateLimiter(rdb, "")
		logger.Info("rate limiting enabled (redis)", "requests", cfg.RateLimit.Requests, "window", cfg.RateWindow(), "redis_addr", cfg.RateLimit.RedisAddr)
	} else {
		mem := middleware.NewRateLimiter()
		limiter = mem
		if err := runner.Add(jobs.RateLimitCleanup(cfg.Jobs.CleanupCron, mem, logger.With("component", "jobs"))); err != nil {
			return err
		}
		logger.Info("rate limiting enabled (in-memory)", "requests", cfg.RateLimit.Requests, "window", cfg.RateWindow())
	}

	srv := server.New(svc, hub, server.RateLimit{
		Limiter:  limiter,
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateWindow(),
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      telemetry.Middleware(srv.Router(), cfg.Telemetry.ServiceName),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	runner.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("eventpilot listening", "addr", httpServer.Addr, "version", Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runner.Stop(sctx)
	if err := httpServer.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}
