// Quayer Hooks API
//
// Webhook delivery engine: fans domain events out to subscriber endpoints
// with per-subscription filtering, URL templating, HMAC signing, and
// per-dispatch bookkeeping.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.quayer.tech/hooks/internal/api"
	"go.quayer.tech/hooks/internal/common/health"
	"go.quayer.tech/hooks/internal/common/lifecycle"
	"go.quayer.tech/hooks/internal/config"
	"go.quayer.tech/hooks/internal/delivery"
	"go.quayer.tech/hooks/internal/dispatch"
	"go.quayer.tech/hooks/internal/webhook"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	setupLogging()

	slog.Info("Starting Quayer Hooks",
		"version", version,
		"build_time", buildTime)

	ctx := context.Background()

	app, cleanup, err := lifecycle.Initialize(ctx)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Health checker
	healthChecker := health.NewChecker()
	healthChecker.AddReadinessCheck(health.MongoDBCheck(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return app.Mongo.Ping(pingCtx)
	}))

	// Repositories
	webhookRepo := webhook.NewRepository(app.Mongo.Database())
	deliveryRepo := delivery.NewRepository(app.Mongo.Database())

	// Dispatch engine
	dispatcher := dispatch.NewDispatcher(app.Config.Dispatch)
	engine := dispatch.NewEngine(webhookRepo, deliveryRepo, dispatcher, app.Config.Engine)

	// API handlers
	handlers := api.NewHandlers(engine, webhookRepo, deliveryRepo, app.Config)

	// HTTP router
	router := setupHTTPRouter(app.Config, healthChecker, handlers)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.Config.HTTP.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	httpService := lifecycle.NewHTTPService("hooks-api", httpServer)

	slog.Info("Quayer Hooks ready", "port", app.Config.HTTP.Port)

	if err := lifecycle.Run(ctx, httpService); err != nil {
		slog.Error("Service error", "error", err)
		os.Exit(1)
	}

	slog.Info("Quayer Hooks stopped")
}

// setupLogging configures the slog default logger.
func setupLogging() {
	logLevel := slog.LevelInfo
	if os.Getenv("QUAYER_HOOKS_DEV") == "true" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// setupHTTPRouter creates the HTTP router with all routes and middleware.
func setupHTTPRouter(cfg *config.Config, healthChecker *health.Checker, handlers *api.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/q/health", healthChecker.HandleHealth)
	r.Get("/q/health/live", healthChecker.HandleLive)
	r.Get("/q/health/ready", healthChecker.HandleReady)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/q/metrics", promhttp.Handler())

	// API routes
	handlers.Mount(r)

	return r
}
