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
	"go.uber.org/zap"

	"github.com/user/scraper-service/internal/api"
	"github.com/user/scraper-service/internal/config"
	"github.com/user/scraper-service/internal/monitoring"
	"github.com/user/scraper-service/internal/provider"
	"github.com/user/scraper-service/internal/proxy"
	"github.com/user/scraper-service/internal/retry"
	"github.com/user/scraper-service/internal/scraper"
	"github.com/user/scraper-service/internal/storage"
	"github.com/user/scraper-service/internal/telemetry"
	"github.com/user/scraper-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("could not load config: " + err.Error())
	}

	// Initialize structured logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic("could not build logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	// Initialize Storage Layer
	pgStore, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pgStore.Close()

	redisStore := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = redisStore.Close() }()

	// Initialize Monitoring, Telemetry, Proxies
	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	tel := telemetry.NewLogger(pgStore, redisStore, metrics, cfg.TelemetryTimeout, log)

	directory := storage.NewCachedDirectory(pgStore, redisStore, cfg.ProxyCacheTTL, log)
	proxyManager := proxy.NewManager(directory, log)

	// Initialize Fetch Engine and Retry Orchestrator
	opts := scraper.Options{
		HTTP:    scraper.NewHTTPRetriever(cfg.HTTPTimeout),
		Browser: scraper.NewBrowserRetriever(cfg.BrowserTimeout, cfg.ChromePath, log),
		Metrics: metrics,
	}
	if cfg.ProviderURL != "" {
		opts.Provider = provider.NewClient(cfg.ProviderURL, cfg.ProviderAPIKey, cfg.ProviderTimeout)
	} else {
		log.Warn("PROVIDER_URL not set, marketplace sources will fail")
	}
	engine := scraper.New(proxyManager, tel, opts, log)
	orchestrator := retry.New(engine, retry.Config{MaxAttempts: cfg.MaxAttempts, Delay: cfg.RetryDelay}, metrics, log)

	// Initialize API Server
	checks := map[string]api.Pinger{"postgres": pgStore, "redis": redisStore}
	server := api.NewServer(cfg.ServerPort, orchestrator, checks, directory, metrics, prometheus.DefaultGatherer, log)

	// Graceful Shutdown
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("could not start server", zap.Error(err))
		}
	}()

	log.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// Drain pending telemetry writes before the stores close.
	tel.Wait()

	log.Info("server exiting")
}
