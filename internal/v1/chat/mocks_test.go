package chat

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// mockConn is a scriptable wsConnection. Reads block on the reads channel
// until frames are fed in or the connection is closed.
type mockConn struct {
	reads chan []byte

	mu     sync.Mutex
	writes []writtenFrame

	closeOnce sync.Once
}

type writtenFrame struct {
	messageType int
	data        []byte
}

func newMockConn() *mockConn {
	return &mockConn{reads: make(chan []byte, 16)}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	data, ok := <-m.reads
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, data, nil
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, writtenFrame{messageType: messageType, data: append([]byte(nil), data...)})
	return nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.reads) })
	return nil
}

func (m *mockConn) SetWriteDeadline(time.Time) error { return nil }

// feed queues an inbound text frame.
func (m *mockConn) feed(t *testing.T, msg Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	m.reads <- data
}

// sentMessages decodes all text frames written so far.
func (m *mockConn) sentMessages(t *testing.T) []Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Message
	for _, f := range m.writes {
		if f.messageType != websocket.TextMessage {
			continue
		}
		var msg Message
		require.NoError(t, json.Unmarshal(f.data, &msg))
		out = append(out, msg)
	}
	return out
}

// sentCloseFrame reports whether a close frame was written.
func (m *mockConn) sentCloseFrame() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.writes {
		if f.messageType == websocket.CloseMessage {
			return true
		}
	}
	return false
}

// receive pops the next outbound message from a session's queue, failing
// the test after the timeout.
func receive(t *testing.T, s *Session, timeout time.Duration) Message {
	t.Helper()
	select {
	case m, ok := <-s.out:
		require.True(t, ok, "session queue closed")
		return m
	case <-time.After(timeout):
		t.Fatal("timed out waiting for outbound message")
		return Message{}
	}
}

// newTestRouter builds a router with fresh tables and small buffers.
// Cleanup closes all rooms so their pumps exit.
func newTestRouter(t *testing.T) (*Router, *SessionTable, *Registry, *stamper) {
	t.Helper()
	st := newStamper(nil)
	sessions := NewSessionTable()
	rooms := NewRegistry(16, st)
	t.Cleanup(rooms.CloseAll)
	return NewRouter(sessions, rooms), sessions, rooms, st
}

// newMember creates a registered session with a generous queue and no pumps.
func newMember(t *testing.T, sessions *SessionTable, router *Router, st *stamper, userID string) *Session {
	t.Helper()
	s := newSession(userID, newMockConn(), 32, st, router, nil)
	require.Nil(t, sessions.Add(s))
	return s
}
