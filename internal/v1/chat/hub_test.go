package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(Options{SessionBufferSize: 16, RoomBufferSize: 16})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return h
}

func newGinContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/chat", nil)
	return c, w
}

// sawContent reports whether any frame written to the connection carries
// the given substring in its content field.
func sawContent(t *testing.T, conn *mockConn, substring string) func() bool {
	return func() bool {
		for _, msg := range conn.sentMessages(t) {
			if strings.Contains(msg.Content, substring) {
				return true
			}
		}
		return false
	}
}

func TestHandleConnectionSendsWelcome(t *testing.T) {
	h := newTestHub(t)
	c, _ := newGinContext(t)

	conn := newMockConn()
	h.HandleConnection(c, conn, "alice")

	assert.Eventually(t, sawContent(t, conn, "Welcome to the chat, alice!"),
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.sessions.Len())
}

func TestHandleConnectionSupersedesDuplicate(t *testing.T) {
	h := newTestHub(t)
	c, _ := newGinContext(t)

	first := newMockConn()
	h.HandleConnection(c, first, "alice")
	require.Eventually(t, sawContent(t, first, "Welcome"), time.Second, 5*time.Millisecond)

	second := newMockConn()
	h.HandleConnection(c, second, "alice")

	assert.Eventually(t, sawContent(t, first, "signed in from another connection"),
		time.Second, 5*time.Millisecond)
	assert.Eventually(t, first.sentCloseFrame, time.Second, 5*time.Millisecond)

	// The replacement stays registered.
	assert.Equal(t, 1, h.sessions.Len())
	current, ok := h.sessions.Get("alice")
	require.True(t, ok)
	assert.Same(t, second, current.conn.(*mockConn))
}

func TestDisconnectAnnouncesDeparture(t *testing.T) {
	h := newTestHub(t)
	c, _ := newGinContext(t)

	aliceConn := newMockConn()
	bobConn := newMockConn()
	h.HandleConnection(c, aliceConn, "alice")
	h.HandleConnection(c, bobConn, "bob")

	aliceConn.feed(t, Message{Type: TypeJoinRoom, Content: "general"})
	bobConn.feed(t, Message{Type: TypeJoinRoom, Content: "general"})
	require.Eventually(t, sawContent(t, bobConn, "alice joined the room"),
		time.Second, 5*time.Millisecond)

	// Client goes away; the read side fails and the session unwinds.
	require.NoError(t, aliceConn.Close())

	assert.Eventually(t, sawContent(t, bobConn, "alice left the room"),
		time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return h.sessions.Len() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestChatAcrossConnections(t *testing.T) {
	h := newTestHub(t)
	c, _ := newGinContext(t)

	aliceConn := newMockConn()
	bobConn := newMockConn()
	h.HandleConnection(c, aliceConn, "alice")
	h.HandleConnection(c, bobConn, "bob")

	aliceConn.feed(t, Message{Type: TypeJoinRoom, Content: "general"})
	bobConn.feed(t, Message{Type: TypeJoinRoom, Content: "general"})
	require.Eventually(t, sawContent(t, aliceConn, "bob joined the room"),
		time.Second, 5*time.Millisecond)

	aliceConn.feed(t, Message{Type: TypeChat, Content: "hi all"})

	assert.Eventually(t, sawContent(t, bobConn, "hi all"), time.Second, 5*time.Millisecond)
	assert.Eventually(t, sawContent(t, aliceConn, "hi all"), time.Second, 5*time.Millisecond)
}

func TestShutdownNotifiesSessions(t *testing.T) {
	h := NewHub(Options{SessionBufferSize: 16, RoomBufferSize: 16})
	c, _ := newGinContext(t)

	conn := newMockConn()
	h.HandleConnection(c, conn, "alice")
	require.Eventually(t, sawContent(t, conn, "Welcome"), time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))

	assert.True(t, sawContent(t, conn, "server shutting down")())
	assert.True(t, conn.sentCloseFrame())
	assert.ErrorIs(t, h.Ready(context.Background()), ErrShuttingDown)
}

func TestServeWsWhileShuttingDown(t *testing.T) {
	h := NewHub(Options{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))

	c, w := newGinContext(t)
	h.ServeWs(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReady(t *testing.T) {
	h := NewHub(Options{})
	assert.NoError(t, h.Ready(context.Background()))
}

func TestNewHubDefaults(t *testing.T) {
	h := NewHub(Options{})
	assert.Equal(t, 64, h.sessionBufferSize)
	assert.Equal(t, 256, h.rooms.bufferSize)
}

func TestValidateOrigin(t *testing.T) {
	allowed := []string{"http://localhost:3000", "https://app.example.com"}

	tests := []struct {
		name    string
		origin  string
		wantErr bool
	}{
		{"no origin header", "", false},
		{"allowed origin", "http://localhost:3000", false},
		{"allowed https origin", "https://app.example.com", false},
		{"scheme mismatch", "https://localhost:3000", true},
		{"host mismatch", "http://evil.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/chat", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			err := validateOrigin(req, allowed)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
