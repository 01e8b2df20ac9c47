package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration
type Config struct {
	// Ports
	HTTPPort int
	ChatPort int

	// Dispatcher
	SLA           time.Duration
	ShutdownGrace time.Duration

	// Chat buffers
	RoomBufferSize    int
	SessionBufferSize int

	// Optional variables with defaults
	GoEnv           string
	LogLevel        string
	DevelopmentMode bool
	AllowedOrigins  string

	// Tracing
	TracingEnabled bool
	CollectorAddr  string
}

const (
	defaultHTTPPort          = 8081
	defaultChatPort          = 8082
	defaultSLAMillis         = 30000
	defaultShutdownGraceMs   = 30000
	defaultRoomBufferSize    = 256
	defaultSessionBufferSize = 64
)

// ValidateEnv validates all recognized environment variables and returns a Config object
// Returns an error if any variable is present but invalid
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	// Optional: HTTP_PORT (defaults to 8081)
	cfg.HTTPPort = defaultHTTPPort
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("HTTP_PORT must be a valid port number between 1 and 65535 (got '%s')", v))
		} else {
			cfg.HTTPPort = port
		}
	}

	// Optional: CHAT_PORT (defaults to 8082)
	cfg.ChatPort = defaultChatPort
	if v := os.Getenv("CHAT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("CHAT_PORT must be a valid port number between 1 and 65535 (got '%s')", v))
		} else {
			cfg.ChatPort = port
		}
	}

	// Optional: DISPATCHER_SLA_MS (defaults to 30000)
	slaMs, err := positiveIntEnv("DISPATCHER_SLA_MS", defaultSLAMillis)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.SLA = time.Duration(slaMs) * time.Millisecond

	// Optional: SHUTDOWN_GRACE_MS (defaults to 30000)
	graceMs, err := positiveIntEnv("SHUTDOWN_GRACE_MS", defaultShutdownGraceMs)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.ShutdownGrace = time.Duration(graceMs) * time.Millisecond

	// Optional: ROOM_BUFFER_SIZE (defaults to 256)
	cfg.RoomBufferSize, err = positiveIntEnv("ROOM_BUFFER_SIZE", defaultRoomBufferSize)
	if err != nil {
		errs = append(errs, err.Error())
	}

	// Optional: SESSION_BUFFER_SIZE (defaults to 64)
	cfg.SessionBufferSize, err = positiveIntEnv("SESSION_BUFFER_SIZE", defaultSessionBufferSize)
	if err != nil {
		errs = append(errs, err.Error())
	}

	// Optional: GO_ENV (defaults to "production")
	cfg.GoEnv = os.Getenv("GO_ENV")
	if cfg.GoEnv == "" {
		cfg.GoEnv = "production"
	}

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	// Tracing is opt-in; the collector address only matters when enabled
	cfg.TracingEnabled = os.Getenv("TRACING_ENABLED") == "true"
	if cfg.TracingEnabled {
		cfg.CollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")
		if cfg.CollectorAddr == "" {
			cfg.CollectorAddr = "localhost:4317"
			slog.Warn("OTEL_COLLECTOR_ADDR not set, using default", "addr", cfg.CollectorAddr)
		} else if !isValidHostPort(cfg.CollectorAddr) {
			errs = append(errs, fmt.Sprintf("OTEL_COLLECTOR_ADDR must be in format 'host:port' (got '%s')", cfg.CollectorAddr))
		}
	}

	// If there are validation errors, return them
	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// ParseAllowedOrigins splits a comma-separated origins value, falling back
// to the defaults when it is empty.
func ParseAllowedOrigins(raw string, defaults []string) []string {
	if raw == "" {
		return defaults
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaults
	}
	return out
}

// positiveIntEnv parses an environment variable as a positive integer
func positiveIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return defaultValue, fmt.Errorf("%s must be a positive integer (got '%s')", key, v)
	}
	return n, nil
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	// Validate port is a number
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	// Validate host is not empty
	if parts[0] == "" {
		return false
	}

	return true
}

// logValidatedConfig logs the validated configuration
func logValidatedConfig(cfg *Config) {
	slog.Info("Environment configuration validated successfully")
	slog.Info("Configuration",
		"http_port", cfg.HTTPPort,
		"chat_port", cfg.ChatPort,
		"dispatcher_sla_ms", cfg.SLA.Milliseconds(),
		"shutdown_grace_ms", cfg.ShutdownGrace.Milliseconds(),
		"room_buffer_size", cfg.RoomBufferSize,
		"session_buffer_size", cfg.SessionBufferSize,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"tracing_enabled", cfg.TracingEnabled,
	)
}
