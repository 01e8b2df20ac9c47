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

	"github.com/streamhub-labs/streamhub/internal/v1/chat"
	"github.com/streamhub-labs/streamhub/internal/v1/config"
	"github.com/streamhub-labs/streamhub/internal/v1/health"
	"github.com/streamhub-labs/streamhub/internal/v1/logging"
	"github.com/streamhub-labs/streamhub/internal/v1/middleware"
	"github.com/streamhub-labs/streamhub/internal/v1/tracing"
)

func main() {
	// Load .env file for local development.
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
		tp, err := tracing.InitTracer(context.Background(), "streamhub-chat", cfg.CollectorAddr)
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

	allowedOrigins := config.ParseAllowedOrigins(cfg.AllowedOrigins, []string{"http://localhost:3000"})

	// --- Create the Hub ---
	hub := chat.NewHub(chat.Options{
		SessionBufferSize: cfg.SessionBufferSize,
		RoomBufferSize:    cfg.RoomBufferSize,
		AllowedOrigins:    allowedOrigins,
	})

	// --- Set up Server ---
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	router.Use(cors.New(corsConfig))

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	// Routing
	router.GET("/chat", hub.ServeWs)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	healthHandler := health.NewHandler(map[string]health.Check{
		"hub": hub.Ready,
	})
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ChatPort),
		Handler: router,
	}

	// --- Graceful Shutdown ---
	go func() {
		slog.Info("Chat server starting", "port", cfg.ChatPort,
			"room_buffer", cfg.RoomBufferSize, "session_buffer", cfg.SessionBufferSize)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down chat server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	// Notify sessions and close WebSocket connections gracefully
	if err := hub.Shutdown(ctx); err != nil {
		slog.Error("Error during Hub shutdown:", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	slog.Info("Chat server exiting")
}
