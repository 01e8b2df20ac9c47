package chat

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/streamhub-labs/streamhub/internal/v1/logging"
	"github.com/streamhub-labs/streamhub/internal/v1/metrics"
)

// wsConnection defines the interface for WebSocket connection operations.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error) // Read the next message from the connection
	WriteMessage(messageType int, data []byte) error     // Write a message to the connection
	Close() error                                        // Close the connection
	SetWriteDeadline(t time.Time) error
}

// Session represents a single user's connection to the chat bus. Outbound
// messages go through a bounded FIFO drained by writePump; when the queue is
// full the oldest entry is dropped to admit the new one.
type Session struct {
	UserID string

	conn    wsConnection
	stamps  *stamper
	router  *Router
	onClose func(*Session)

	mu          sync.RWMutex // Protects currentRoom and closed
	currentRoom string
	closed      bool
	closeOnce   sync.Once

	out chan Message // Bounded outbound FIFO
}

// newSession wires a connection into a session with the given outbound
// queue capacity. The router handles inbound frames; onClose runs once when
// the read side shuts down.
func newSession(userID string, conn wsConnection, queueSize int, stamps *stamper, router *Router, onClose func(*Session)) *Session {
	return &Session{
		UserID:  userID,
		conn:    conn,
		stamps:  stamps,
		router:  router,
		onClose: onClose,
		out:     make(chan Message, queueSize),
	}
}

// CurrentRoom returns the room this session is in, or "" when none.
func (s *Session) CurrentRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRoom
}

// setCurrentRoom records the session's room membership.
func (s *Session) setCurrentRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRoom = roomID
}

// Push stamps the message and enqueues it for delivery. Returns false when
// the session is already closed.
func (s *Session) Push(msg Message) bool {
	return s.stamps.sendTo(s, msg)
}

// enqueue places a stamped message on the outbound queue. When the queue is
// full the oldest undelivered message is evicted and counted. Callers hold
// the stamper lock so queue order always matches id order.
func (s *Session) enqueue(msg Message, dropped prometheus.Counter) bool {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return false
	}
	s.mu.RUnlock()

	// Close can race the enqueue; recovering from the send-on-closed-channel
	// panic keeps that race harmless.
	defer func() {
		if r := recover(); r != nil {
			logging.GetLogger().Debug("Push to closing session", zap.String("userId", s.UserID))
		}
	}()

	for {
		select {
		case s.out <- msg:
			return true
		default:
		}
		// Queue full: evict the oldest entry, then retry.
		select {
		case <-s.out:
			dropped.Inc()
		default:
		}
	}
}

// Close shuts down the outbound queue. writePump drains whatever is
// buffered, sends the close frame, and releases the connection.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.out)
	})
}

// readPump consumes inbound frames until the connection fails or closes.
// Parse failures produce a system error to the sender and do not terminate
// the session.
func (s *Session) readPump() {
	defer func() {
		s.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
		_ = s.conn.Close()
		metrics.DecConnection()
	}()

	ctx := context.WithValue(context.Background(), logging.UserIDKey, s.UserID)

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Warn(ctx, "Failed to parse inbound frame", zap.Error(err))
			s.Push(systemMessage("malformed frame"))
			continue
		}

		s.router.Route(ctx, s, msg)
	}
}

// writePump drains the outbound queue to the network in FIFO order.
func (s *Session) writePump() {
	defer func() { _ = s.conn.Close() }()
	writeWait := 10 * time.Second

	for {
		msg, ok := <-s.out
		if !ok {
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		data, err := json.Marshal(msg)
		if err != nil {
			logging.Error(context.Background(), "Failed to marshal outbound message", zap.Error(err))
			continue
		}

		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logging.Error(context.Background(), "error writing message", zap.String("userId", s.UserID), zap.Error(err))
			return
		}
	}
}
