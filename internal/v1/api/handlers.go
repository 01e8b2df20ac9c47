// Package api exposes the dispatcher's HTTP surface.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/streamhub-labs/streamhub/internal/v1/logging"
	"github.com/streamhub-labs/streamhub/internal/v1/task"
)

// Handler wires the dispatcher and task table into gin routes.
type Handler struct {
	dispatcher *task.Dispatcher
	table      *task.Table
}

// NewHandler creates the API handler.
func NewHandler(dispatcher *task.Dispatcher, table *task.Table) *Handler {
	return &Handler{dispatcher: dispatcher, table: table}
}

// Register mounts all dispatcher routes on the router. The /api/tasks paths
// are aliases kept for clients of the older surface.
func (h *Handler) Register(r gin.IRouter) {
	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/process", h.Process)
		apiGroup.GET("/task/result/:taskId", h.TaskResult)
		apiGroup.GET("/task/list", h.TaskList)
		apiGroup.GET("/tasks", h.TaskList)
		apiGroup.GET("/tasks/:taskId", h.TaskResult)
		apiGroup.GET("/health", h.Health)
	}
}

// errorEnvelope is the body returned for malformed requests.
type errorEnvelope struct {
	Error string `json:"error"`
}

// Process handles POST /api/process. The response status mirrors the task
// outcome: 200 completed within SLA, 500 failed within SLA, 202 handle.
func (h *Handler) Process(c *gin.Context) {
	var req task.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		logging.Warn(c.Request.Context(), "Malformed process request", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorEnvelope{Error: "malformed request body"})
		return
	}

	status, rec := h.dispatcher.Submit(c.Request.Context(), req)
	c.JSON(status, rec)
}

// TaskResult handles GET /api/task/result/:taskId. A COMPLETED record is
// removed from the table as part of the read, so it is served exactly once;
// PROCESSING and FAILED records remain pollable.
func (h *Handler) TaskResult(c *gin.Context) {
	taskID := c.Param("taskId")

	rec, ok := h.table.GetAndMaybeRemove(taskID)
	if !ok {
		logging.Warn(c.Request.Context(), "No result found for task", zap.String("taskId", taskID))
		c.Status(http.StatusNotFound)
		return
	}

	if rec.Status == task.StatusCompleted {
		logging.Info(c.Request.Context(), "Served completed task and removed it from the table", zap.String("taskId", taskID))
	}
	c.JSON(http.StatusOK, rec)
}

// TaskList handles GET /api/task/list.
func (h *Handler) TaskList(c *gin.Context) {
	ids := h.table.ListIDs()
	c.JSON(http.StatusOK, ids)
}

// Health handles GET /api/health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
