package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamhub-labs/streamhub/internal/v1/logging"
	"go.uber.org/zap"
)

// Check verifies a single dependency and returns an error when it is unhealthy.
type Check func(ctx context.Context) error

// Handler manages health check endpoints
type Handler struct {
	checks map[string]Check
}

// NewHandler creates a new health check handler. Named checks are consulted
// by the readiness probe; liveness never depends on them.
func NewHandler(checks map[string]Check) *Handler {
	if checks == nil {
		checks = make(map[string]Check)
	}
	return &Handler{checks: checks}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// Returns 200 only if all registered checks pass, 503 otherwise
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			logging.Error(ctx, "Readiness check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "unhealthy"
			allHealthy = false
		} else {
			checks[name] = "healthy"
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}
