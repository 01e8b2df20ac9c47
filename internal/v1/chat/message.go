// Package chat implements the room-based realtime message bus: sessions,
// the session table, rooms with bounded fan-out, and the message router.
package chat

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamhub-labs/streamhub/internal/v1/metrics"
)

// Message type constants. Clients may originate chat, private and join_room;
// system and presence are server-only.
const (
	TypeChat     = "chat"
	TypePrivate  = "private"
	TypeJoinRoom = "join_room"
	TypeSystem   = "system"
	TypePresence = "presence"
)

// SystemSender is the sender field on server-originated messages.
const SystemSender = "system"

// Message is the wire envelope in both directions. Outbound messages always
// carry a server-assigned monotonic id, a server timestamp, and a server-set
// sender; inbound messages from clients only need type and payload fields.
type Message struct {
	ID        int64  `json:"id,omitempty"`
	Type      string `json:"type"`
	Sender    string `json:"sender,omitempty"`
	Target    string `json:"target,omitempty"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// systemMessage builds an unstamped system message. Ids and timestamps are
// assigned on enqueue by the stamper.
func systemMessage(content string) Message {
	return Message{
		Type:    TypeSystem,
		Sender:  SystemSender,
		Content: content,
	}
}

// presenceMessage builds an unstamped presence message.
func presenceMessage(content string) Message {
	return Message{
		Type:    TypePresence,
		Sender:  SystemSender,
		Content: content,
	}
}

// stamper assigns monotonic ids and server timestamps to outbound messages.
// One instance is shared by every outbound path of the service, and the id
// assignment is atomic with the enqueue onto the session queue: holding mu
// across both means a later id can never enter a queue before an earlier
// one, so each session observes strictly increasing ids no matter which mix
// of room fan-out and direct pushes it receives.
type stamper struct {
	mu  sync.Mutex
	ids int64
	now func() time.Time
}

func newStamper(now func() time.Time) *stamper {
	if now == nil {
		now = time.Now
	}
	return &stamper{now: now}
}

// fill assigns the server fields. Callers must hold mu.
func (st *stamper) fill(m *Message) {
	st.ids++
	m.ID = st.ids
	m.Timestamp = st.now().UnixMilli()
}

// sendTo stamps the message and enqueues it on one session in a single
// critical section.
func (st *stamper) sendTo(s *Session, m Message) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.fill(&m)
	return s.enqueue(m, metrics.SessionDroppedMessages)
}

// fanOut stamps the message once and enqueues it on every member in the
// same critical section, so all members see the same id in the same
// relative position of their streams.
func (st *stamper) fanOut(members []*Session, m Message, dropped prometheus.Counter) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.fill(&m)
	for _, s := range members {
		s.enqueue(m, dropped)
	}
}
