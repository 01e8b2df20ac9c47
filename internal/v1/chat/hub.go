package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/streamhub-labs/streamhub/internal/v1/logging"
	"github.com/streamhub-labs/streamhub/internal/v1/metrics"
)

// ErrShuttingDown is reported by Ready while a shutdown is in progress.
var ErrShuttingDown = errors.New("hub is shutting down")

// Options configures hub buffer sizes and allowed origins.
type Options struct {
	SessionBufferSize int
	RoomBufferSize    int
	AllowedOrigins    []string
}

// Hub is the gateway for chat connections. It upgrades HTTP requests to
// WebSocket sessions, registers them, and drives the per-session pumps.
type Hub struct {
	sessions *SessionTable
	rooms    *Registry
	router   *Router
	stamps   *stamper

	allowedOrigins    []string
	sessionBufferSize int

	mu           sync.Mutex
	shuttingDown bool
	wg           sync.WaitGroup

	now func() time.Time
}

// NewHub creates a hub with the given options.
func NewHub(opts Options) *Hub {
	if opts.SessionBufferSize <= 0 {
		opts.SessionBufferSize = 64
	}
	if opts.RoomBufferSize <= 0 {
		opts.RoomBufferSize = 256
	}

	stamps := newStamper(time.Now)
	sessions := NewSessionTable()
	rooms := NewRegistry(opts.RoomBufferSize, stamps)

	return &Hub{
		sessions:          sessions,
		rooms:             rooms,
		router:            NewRouter(sessions, rooms),
		stamps:            stamps,
		allowedOrigins:    opts.AllowedOrigins,
		sessionBufferSize: opts.SessionBufferSize,
		now:               time.Now,
	}
}

// ServeWs upgrades the request and starts a chat session. The user id comes
// from the userId query parameter; anonymous connections get a generated id.
func (h *Hub) ServeWs(c *gin.Context) {
	h.mu.Lock()
	if h.shuttingDown {
		h.mu.Unlock()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server shutting down"})
		return
	}
	h.mu.Unlock()

	userID := c.Query("userId")
	if userID == "" {
		userID = fmt.Sprintf("anonymous-%d", h.now().UnixMilli())
	}

	conn, err := h.upgradeWebSocket(c)
	if err != nil {
		return
	}

	h.HandleConnection(c, conn, userID)
}

// HandleConnection takes an established WebSocket connection and sets up
// the session. Split out from ServeWs so tests can drive it with a fake
// connection.
func (h *Hub) HandleConnection(c *gin.Context, conn wsConnection, userID string) {
	s := newSession(userID, conn, h.sessionBufferSize, h.stamps, h.router, h.handleDisconnect)

	if superseded := h.sessions.Add(s); superseded != nil {
		logging.Info(c.Request.Context(), "Duplicate connection detected, closing older session",
			zap.String("user_id", userID))
		superseded.Push(systemMessage("You have been disconnected: signed in from another connection"))
		superseded.Close()
		metrics.SessionsSuperseded.Inc()
	}

	metrics.IncConnection()
	logging.Info(c.Request.Context(), "New chat connection", zap.String("user_id", userID))

	s.Push(systemMessage("Welcome to the chat, " + userID + "!"))

	h.wg.Add(1)
	go s.writePump()
	go func() {
		defer h.wg.Done()
		s.readPump()
	}()
}

// handleDisconnect runs once per session when its read side exits. The
// final presence for the session's room is emitted by the registry leave.
func (h *Hub) handleDisconnect(s *Session) {
	h.sessions.Remove(s)
	h.rooms.Leave(s)
	logging.Info(context.Background(), "Chat connection closed", zap.String("user_id", s.UserID))
}

// Ready reports whether the hub accepts new connections.
func (h *Hub) Ready(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shuttingDown {
		return ErrShuttingDown
	}
	return nil
}

// Shutdown stops accepting connections, notifies every session, closes
// them, and waits for the pumps to drain within the context deadline.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.shuttingDown = true
	h.mu.Unlock()

	sessions := h.sessions.Snapshot()
	logging.Info(ctx, "Shutting down hub", zap.Int("sessions", len(sessions)))

	for _, s := range sessions {
		s.Push(systemMessage("server shutting down"))
		s.Close()
	}

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		h.wg.Wait()
		h.rooms.CloseAll()
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// upgradeWebSocket handles the WebSocket upgrade process.
func (h *Hub) upgradeWebSocket(c *gin.Context) (wsConnection, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, h.allowedOrigins) == nil
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to upgrade connection", zap.Error(err))
		return nil, err
	}

	return conn, nil
}

// validateOrigin checks if the request origin is in the allowed list.
func validateOrigin(r *http.Request, allowedOrigins []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Allow non-browser clients (e.g., for testing)
		return nil
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		logging.Warn(context.Background(), "Invalid origin URL", zap.String("origin", origin), zap.Error(err))
		return fmt.Errorf("invalid origin URL: %w", err)
	}

	for _, allowed := range allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return nil
		}
	}

	logging.Warn(context.Background(), "Origin not in allowed list", zap.String("origin", origin), zap.Strings("allowedOrigins", allowedOrigins))
	return fmt.Errorf("origin not allowed: %s", origin)
}
