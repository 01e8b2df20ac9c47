package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/streamhub-labs/streamhub/internal/v1/logging"
	"github.com/streamhub-labs/streamhub/internal/v1/metrics"
)

// Router interprets inbound messages by type. The sender is always
// overridden with the session's user id; clients cannot speak for others or
// originate server-only types.
type Router struct {
	sessions *SessionTable
	rooms    *Registry
}

// NewRouter creates a router over the given session table and room registry.
func NewRouter(sessions *SessionTable, rooms *Registry) *Router {
	return &Router{
		sessions: sessions,
		rooms:    rooms,
	}
}

// Route dispatches one inbound message from the session.
func (r *Router) Route(ctx context.Context, s *Session, msg Message) {
	switch msg.Type {
	case TypeJoinRoom:
		metrics.RouterMessages.WithLabelValues(TypeJoinRoom).Inc()
		r.handleJoinRoom(ctx, s, msg)
	case TypeChat:
		metrics.RouterMessages.WithLabelValues(TypeChat).Inc()
		r.handleChat(ctx, s, msg)
	case TypePrivate:
		metrics.RouterMessages.WithLabelValues(TypePrivate).Inc()
		r.handlePrivate(ctx, s, msg)
	default:
		// system/presence are server-only; anything else is unknown.
		// Both are dropped without a reply.
		logging.Warn(ctx, "Rejected inbound message type", zap.String("type", msg.Type))
		metrics.RouterRejected.Inc()
	}
}

// handleJoinRoom moves the session into the room named by the content field
// and confirms to the sender. The empty string is the "no room" sentinel on
// the session, so it is not a joinable room name.
func (r *Router) handleJoinRoom(ctx context.Context, s *Session, msg Message) {
	roomID := msg.Content
	if roomID == "" {
		s.Push(systemMessage("Room name must not be empty"))
		return
	}

	r.rooms.JoinOrMove(s, roomID)
	s.Push(systemMessage("You joined room: " + roomID))

	logging.Info(ctx, "User joined room", zap.String("room_id", roomID))
}

// handleChat broadcasts the message to the sender's current room.
func (r *Router) handleChat(ctx context.Context, s *Session, msg Message) {
	roomID := s.CurrentRoom()
	if roomID == "" {
		s.Push(systemMessage("You must join a room first"))
		return
	}

	r.rooms.Broadcast(roomID, Message{
		Type:    TypeChat,
		Sender:  s.UserID,
		Content: msg.Content,
	})
}

// handlePrivate delivers the message to the target user's queue and
// confirms to the sender. An absent target yields a system error instead.
func (r *Router) handlePrivate(ctx context.Context, s *Session, msg Message) {
	target := msg.Target

	out := Message{
		Type:    TypePrivate,
		Sender:  s.UserID,
		Target:  target,
		Content: msg.Content,
	}

	if target == "" || !r.sessions.PushToUser(target, out) {
		s.Push(systemMessage("User " + target + " not found"))
		return
	}

	s.Push(systemMessage("Private message sent to " + target))
	logging.Info(ctx, "Private message delivered", zap.String("target", target))
}
