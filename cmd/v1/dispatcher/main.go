package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamhub-labs/streamhub/internal/v1/api"
	"github.com/streamhub-labs/streamhub/internal/v1/config"
	"github.com/streamhub-labs/streamhub/internal/v1/health"
	"github.com/streamhub-labs/streamhub/internal/v1/logging"
	"github.com/streamhub-labs/streamhub/internal/v1/middleware"
	"github.com/streamhub-labs/streamhub/internal/v1/task"
	"github.com/streamhub-labs/streamhub/internal/v1/tracing"
)

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	// Validate environment variables before starting the server
	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Tracing (Optional) ---
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(context.Background(), "streamhub-dispatcher", cfg.CollectorAddr)
		if err != nil {
			slog.Error("Failed to initialize tracer, continuing without tracing", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					slog.Error("Failed to shut down tracer provider", "error", err)
				}
			}()
		}
	}

	// --- Build the dispatcher core ---
	table := task.NewTable()
	dispatcher := task.NewDispatcher(table, task.NewProcessor(), cfg.SLA)

	// --- Set up Server ---
	router := gin.Default()

	// Cors
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.ParseAllowedOrigins(cfg.AllowedOrigins, []string{"http://localhost:3000"})
	router.Use(cors.New(corsConfig))

	// Error handling and request correlation
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	// Routing
	api.NewHandler(dispatcher, table).Register(router)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	healthHandler := health.NewHandler(nil)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		slog.Info("Dispatcher server starting", "port", cfg.HTTPPort, "sla_ms", cfg.SLA.Milliseconds())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down dispatcher...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	// Stop accepting requests first, then let in-flight tasks drain
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	if err := dispatcher.Shutdown(ctx); err != nil {
		slog.Error("Dispatcher drain incomplete:", "error", err)
	}

	slog.Info("Dispatcher exiting")
}
