package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/dental-assistant-bot/cmd/mainconfig"
	"github.com/wolfman30/dental-assistant-bot/internal/api/router"
	"github.com/wolfman30/dental-assistant-bot/internal/app/bootstrap"
	appconfig "github.com/wolfman30/dental-assistant-bot/internal/config"
	"github.com/wolfman30/dental-assistant-bot/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/dental-assistant-bot/internal/http/middleware"
	"github.com/wolfman30/dental-assistant-bot/internal/observability/metrics"
	"github.com/wolfman30/dental-assistant-bot/internal/webchat"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

const (
	processedRetention = 7 * 24 * time.Hour
	purgeInterval      = time.Hour
)

func main() {
	cfg := appconfig.Load()

	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting dental assistant bot",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	metricsHandler, routingMetrics := setupMetrics()
	rt, err := bootstrap.BuildRuntime(ctx, cfg, awsCfg, routingMetrics, logger)
	if err != nil {
		logger.Error("failed to build bot runtime", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("failed to release resources", "error", err)
		}
	}()

	go purgeProcessed(ctx, rt.Processed, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           buildHandler(cfg, rt, metricsHandler, logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// setupMetrics uses a private registry so tests can build it repeatedly.
func setupMetrics() (http.Handler, *metrics.RoutingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewRoutingMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

func buildHandler(cfg *appconfig.Config, rt *bootstrap.Runtime, metricsHandler http.Handler, logger *logging.Logger) http.Handler {
	return router.New(&router.Config{
		Logger:          logger,
		Messages:        handlers.NewMessagesHandler(rt.Bot, logger),
		Webchat:         webchat.NewHandler(rt.Bot, logger),
		Scheduler:       rt.SchedulerHandler,
		MetricsHandler:  metricsHandler,
		ChannelSecret:   cfg.BotAppSecret,
		BotID:           cfg.BotID,
		RateLimitPerMin: cfg.RateLimitRPM,
		CORS: httpmiddleware.CORSConfig{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedHeaders: cfg.CORSHeaders,
			AllowedMethods: cfg.CORSMethods,
			MaxAge:         cfg.CORSMaxAge,
		},
	})
}

type purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// purgeProcessed trims old redelivery records when the store keeps them
// indefinitely. The in-memory store expires entries on its own.
func purgeProcessed(ctx context.Context, store any, logger *logging.Logger) {
	p, ok := store.(purger)
	if !ok {
		return
	}
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeBefore(ctx, time.Now().Add(-processedRetention))
			if err != nil {
				logger.Warn("failed to purge processed activities", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged processed activities", "count", n)
			}
		}
	}
}
