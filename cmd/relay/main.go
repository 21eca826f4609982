package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"pinworld/internal/config"
	handlers "pinworld/internal/http/handler"
	"pinworld/internal/http/middleware"
	"pinworld/internal/logging"
	tracing "pinworld/internal/otel"
	"pinworld/internal/service"
	"pinworld/internal/storage"
)

// @title PinWorld Upload Relay
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logging.Stdout(cfg.Location())
	defer func() { _ = log.Sync() }()

	// A relay without its credential must not start.
	if err := cfg.Validate(); err != nil {
		log.Fatal("config_invalid", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, "pinworld-relay", log)
	if err != nil {
		log.Fatal("tracing_init_failed", zap.Error(err))
	}

	host, err := newContentHost(ctx, cfg)
	if err != nil {
		log.Fatal("content_host_init_failed", zap.String("backend", cfg.Relay.Backend), zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	relaySvc, err := service.NewRelayService(host, cfg.Relay.DefaultMessage, log, reg)
	if err != nil {
		log.Fatal("relay_service_init_failed", zap.Error(err))
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatal("metrics_init_failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(cfg.Relay.AllowedOrigins...),
		BodyLimit:             cfg.Relay.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(app, handlers.NewRelayHandler(relaySvc, cfg.Relay.AllowedOrigins, log), handlers.RouteOptions{
		Gatherer:   reg,
		RateLimit:  cfg.Relay.RateLimit,
		RateWindow: cfg.Relay.RateWindow,
	})

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server_shutdown_failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	log.Info("server_starting",
		zap.String("addr", addr),
		zap.String("backend", host.Name()),
		zap.Strings("allowed_origins", cfg.Relay.AllowedOrigins),
	)
	if err := app.Listen(addr); err != nil {
		log.Fatal("server_failed", zap.Error(err))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Error("tracing_shutdown_failed", zap.Error(err))
	}
	log.Info("server_stopped")
}

func newContentHost(ctx context.Context, cfg *config.AppConfig) (storage.ContentHost, error) {
	if cfg.Relay.Backend == config.BackendMinIO {
		return storage.NewMinIO(ctx, cfg.MinIO)
	}
	return storage.NewGitHub(cfg.GitHub, nil), nil
}
