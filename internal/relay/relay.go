// internal/relay/relay.go

// Package relay composes the room registry, session manager, presence
// tracker, and event router into the collaboration core the transport layer
// drives. It owns no I/O: peers are fire-and-forget sinks supplied by the
// websocket layer, and the optional publisher mirrors frames to other
// instances.
package relay

import (
	"io"
	"log/slog"

	"github.com/researchgraph/collabrelay/internal/room"
	"github.com/researchgraph/collabrelay/internal/session"
	"github.com/researchgraph/collabrelay/internal/types"
)

// Relay is the facade the transport layer calls into.
type Relay struct {
	registry *room.Registry
	manager  *session.Manager
	tracker  *Tracker
	router   *Router
}

// New wires up a Relay. publisher may be nil for single-instance operation.
func New(publisher Publisher) *Relay {
	registry := room.NewRegistry()
	manager := session.NewManager(registry)
	tracker := NewTracker(publisher)
	manager.SetPresence(tracker)
	return &Relay{
		registry: registry,
		manager:  manager,
		tracker:  tracker,
		router:   NewRouter(registry, publisher),
	}
}

// Registry exposes the room registry for the debug API and the sweeper.
func (rl *Relay) Registry() *room.Registry { return rl.registry }

// Connect registers a new unbound session for the peer.
func (rl *Relay) Connect(peer types.Peer) *session.Session {
	return rl.manager.Connect(peer)
}

// Bind attaches the identity asserted by the wallet layer.
func (rl *Relay) Bind(s *session.Session, addr types.Address, name string) error {
	return rl.manager.Bind(s, addr, name)
}

// Join places the session into the room, creating it on first join.
func (rl *Relay) Join(s *session.Session, id types.RoomID, roomType types.RoomType) error {
	return rl.manager.Join(s, id, roomType)
}

// Leave removes the session from its current room; no-op outside a room.
func (rl *Relay) Leave(s *session.Session) error {
	return rl.manager.Leave(s)
}

// Emit validates, stamps, and fans out one collaboration event.
func (rl *Relay) Emit(s *session.Session, env *types.EventEnvelope) error {
	return rl.router.Emit(s, env)
}

// Disconnect runs the leave path exactly once and retires the session.
func (rl *Relay) Disconnect(s *session.Session) {
	rl.manager.Disconnect(s)
}

// Heartbeat refreshes the session's presence record (pong handler).
func (rl *Relay) Heartbeat(s *session.Session) {
	if r := s.Room(); r != nil {
		r.TouchMember(s.User().Address)
	}
}

// Evict treats a stale collaborator as an implicit disconnect: the owning
// session is torn down and its transport closed if it is still open.
func (rl *Relay) Evict(roomID types.RoomID, addr types.Address) {
	s, ok := rl.manager.Find(roomID, addr)
	if !ok {
		return
	}
	slog.Info("evicting stale collaborator", "room_id", roomID, "address", addr)
	rl.manager.Disconnect(s)
	if c, ok := s.Peer().(io.Closer); ok {
		_ = c.Close()
	}
}

// DeliverRemote fans a frame received from another relay instance out to the
// local members of the room. The frame's originating address is excluded in
// case the same identity is also connected here.
func (rl *Relay) DeliverRemote(roomID types.RoomID, msg *types.ServerMessage) {
	r, ok := rl.registry.Get(roomID)
	if !ok {
		return
	}
	exclude := msg.Address
	if msg.User != nil {
		exclude = msg.User.Address
	} else if msg.Collaborator != nil {
		exclude = msg.Collaborator.Address
	}
	for _, p := range r.Peers(exclude) {
		p.Deliver(msg)
	}
}

// Sessions returns the live session count.
func (rl *Relay) Sessions() int {
	return rl.manager.Len()
}
