package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/streamhub-labs/streamhub/internal/v1/logging"
)

// Registry maintains per-room membership and fan-out. Rooms are created
// lazily on first join and destroyed atomically with the last leave.
type Registry struct {
	mu         sync.Mutex
	rooms      map[string]*Room
	bufferSize int
	stamps     *stamper
}

// NewRegistry creates an empty room registry. bufferSize bounds each room's
// fan-out feed.
func NewRegistry(bufferSize int, stamps *stamper) *Registry {
	return &Registry{
		rooms:      make(map[string]*Room),
		bufferSize: bufferSize,
		stamps:     stamps,
	}
}

// JoinOrMove removes the session from its current room (announcing the
// departure there), adds it to roomID, and announces the arrival. The
// destination room is created when it does not exist yet.
func (g *Registry) JoinOrMove(s *Session, roomID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.leaveLocked(s)

	room, ok := g.rooms[roomID]
	if !ok {
		logging.Info(context.Background(), "Creating room", zap.String("room_id", roomID))
		room = newRoom(roomID, g.bufferSize, g.stamps)
		g.rooms[roomID] = room
	}

	room.addMember(s)
	s.setCurrentRoom(roomID)
	room.Broadcast(presenceMessage(s.UserID + " joined the room"))

	return room
}

// Leave removes the session from its current room, if any, announcing the
// departure to the remaining members.
func (g *Registry) Leave(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leaveLocked(s)
}

// leaveLocked performs the departure under the registry lock so the
// last-leave room destruction is atomic with the membership change.
func (g *Registry) leaveLocked(s *Session) {
	prev := s.CurrentRoom()
	if prev == "" {
		return
	}
	s.setCurrentRoom("")

	room, ok := g.rooms[prev]
	if !ok {
		return
	}
	if !room.removeMember(s) {
		return
	}

	room.Broadcast(presenceMessage(s.UserID + " left the room"))

	if room.memberCount() == 0 {
		room.close()
		delete(g.rooms, prev)
	}
}

// Broadcast enqueues the message on the room's fan-out feed. Returns false
// when the room does not exist.
func (g *Registry) Broadcast(roomID string, msg Message) bool {
	g.mu.Lock()
	room, ok := g.rooms[roomID]
	g.mu.Unlock()

	if !ok {
		return false
	}
	return room.Broadcast(msg)
}

// Get returns the room for the given id.
func (g *Registry) Get(roomID string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[roomID]
	return room, ok
}

// Len reports the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// CloseAll shuts down every room and waits for the pumps to drain.
func (g *Registry) CloseAll() {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for id, room := range g.rooms {
		rooms = append(rooms, room)
		delete(g.rooms, id)
	}
	g.mu.Unlock()

	for _, room := range rooms {
		room.close()
		room.wait()
	}
}
