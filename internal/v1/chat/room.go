package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/streamhub-labs/streamhub/internal/v1/logging"
	"github.com/streamhub-labs/streamhub/internal/v1/metrics"
)

// Room holds the member set and the bounded fan-out feed for one room. A
// single pump goroutine drains the feed and delivers each message to every
// member, so all members observe broadcasts in the same order. Messages
// travel the feed unstamped; the pump assigns the id at delivery time,
// atomically with the enqueue onto every member queue.
type Room struct {
	ID string

	mu      sync.Mutex
	members map[string]*Session
	closed  bool

	stamps *stamper
	feed   chan Message
	done   chan struct{}
}

// newRoom creates a room and starts its fan-out pump.
func newRoom(id string, bufferSize int, stamps *stamper) *Room {
	r := &Room{
		ID:      id,
		members: make(map[string]*Session),
		stamps:  stamps,
		feed:    make(chan Message, bufferSize),
		done:    make(chan struct{}),
	}
	go r.pump()
	metrics.ActiveRooms.Inc()
	return r
}

// pump delivers feed messages to the current member set in enqueue order.
// Each message is stamped once, so every member sees the same id.
func (r *Room) pump() {
	defer close(r.done)
	for msg := range r.feed {
		r.stamps.fanOut(r.snapshotMembers(), msg, metrics.RoomDroppedMessages)
	}
}

func (r *Room) snapshotMembers() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.members))
	for _, s := range r.members {
		out = append(out, s)
	}
	return out
}

// addMember adds a session to the room.
func (r *Room) addMember(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[s.UserID] = s
	metrics.RoomMembers.WithLabelValues(r.ID).Set(float64(len(r.members)))
}

// removeMember drops the exact session instance from the room. A superseded
// session cannot remove its replacement's membership.
func (r *Room) removeMember(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.members[s.UserID]; ok && current == s {
		delete(r.members, s.UserID)
		if len(r.members) > 0 {
			metrics.RoomMembers.WithLabelValues(r.ID).Set(float64(len(r.members)))
		} else {
			metrics.RoomMembers.DeleteLabelValues(r.ID)
		}
		return true
	}
	return false
}

// memberCount reports the current number of members.
func (r *Room) memberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Broadcast enqueues a message on the fan-out feed. When the feed is full
// the oldest undelivered message is dropped and counted. Returns false once
// the room is closed.
func (r *Room) Broadcast(msg Message) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()

	// Close can race the enqueue; the recover keeps that race harmless.
	defer func() {
		if rec := recover(); rec != nil {
			logging.GetLogger().Debug("Broadcast to closing room", zap.String("roomId", r.ID))
		}
	}()

	for {
		select {
		case r.feed <- msg:
			return true
		default:
		}
		select {
		case <-r.feed:
			metrics.RoomDroppedMessages.Inc()
		default:
		}
	}
}

// close shuts down the fan-out feed. Buffered messages are still delivered
// before the pump exits.
func (r *Room) close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.feed)
	metrics.ActiveRooms.Dec()
	logging.Info(context.Background(), "Room closed", zap.String("room_id", r.ID))
}

// wait blocks until the pump has drained and exited.
func (r *Room) wait() {
	<-r.done
}
