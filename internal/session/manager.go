// internal/session/manager.go

// Package session tracks per-connection state machines and enforces the
// at-most-one-room-per-connection invariant. Membership mutations go through
// the room registry; join/leave notifications are derived from transitions
// by the presence tracker, which holds no state of its own.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/researchgraph/collabrelay/internal/room"
	"github.com/researchgraph/collabrelay/internal/types"
)

// Presence receives membership transitions as they happen. Implementations
// must not block; delivery is fire-and-forget.
type Presence interface {
	// SnapshotTo sends the full room state to a newly joined peer.
	SnapshotTo(p types.Peer, r *room.Room)
	// CollaboratorJoined notifies the other members of the room.
	CollaboratorJoined(r *room.Room, joined *types.Collaborator)
	// CollaboratorLeft notifies the remaining members. Only the address is
	// sent; the departed collaborator's fields are no longer reliable.
	CollaboratorLeft(r *room.Room, addr types.Address)
}

// Manager owns the live session set and drives every state transition.
type Manager struct {
	registry *room.Registry
	presence Presence

	mu       sync.RWMutex
	sessions map[types.ConnID]*Session
}

// NewManager creates a Manager over the given registry. The presence tracker
// is attached separately to break the construction cycle between the two.
func NewManager(registry *room.Registry) *Manager {
	return &Manager{
		registry: registry,
		sessions: make(map[types.ConnID]*Session),
	}
}

// SetPresence attaches the presence tracker. Must be called before Connect.
func (m *Manager) SetPresence(p Presence) {
	m.presence = p
}

// Connect registers a new session for the given peer in the Unbound state.
func (m *Manager) Connect(peer types.Peer) *Session {
	s := newSession(peer)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	slog.Debug("session connected", "conn_id", s.id)
	return s
}

// Bind attaches an identity to the session. Re-invocation replaces the
// identity without reconnecting; changing the address while in a room
// implicitly leaves it first, since membership is keyed by address.
func (m *Manager) Bind(s *Session, addr types.Address, name string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() == Disconnected {
		return types.ErrSessionClosed
	}
	if addr == "" {
		return fmt.Errorf("%w: address required", types.ErrInvalidEventPayload)
	}
	if prev := s.User(); s.State() == InRoom && prev.Address != addr {
		m.leaveLocked(s)
	}
	s.setIdentity(types.UserRef{Address: addr, Name: name})
	slog.Debug("identity bound", "conn_id", s.id, "address", addr)
	return nil
}

// Join registers the session in the given room, implicitly leaving any
// current room first. Exactly one leave side effect precedes the join. The
// joiner receives a project_state snapshot; the other members receive a
// collaborator_join notification.
func (m *Manager) Join(s *Session, id types.RoomID, roomType types.RoomType) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	switch s.State() {
	case Disconnected:
		return types.ErrSessionClosed
	case Unbound:
		return types.ErrUnboundSession
	}

	user := s.User()
	cur := s.Room()
	rejoin := cur != nil && cur.ID() == id

	collab := &types.Collaborator{
		Address:  user.Address,
		Name:     user.Name,
		LastSeen: time.Now(),
	}
	// The registry resolves the room and inserts the member under one lock,
	// so a concurrent last-member leave cannot delete the room out from under
	// the joiner. Inserting before leaving also keeps a rejected join from
	// evicting the session from its current room.
	r, err := m.registry.AddMember(id, roomType, collab, s.peer)
	if err != nil {
		return err
	}
	if cur != nil && !rejoin {
		m.leaveLocked(s)
	}
	s.enterRoom(r)

	m.presence.SnapshotTo(s.peer, r)
	if !rejoin {
		m.presence.CollaboratorJoined(r, collab)
	}
	slog.Info("joined room", "conn_id", s.id, "room_id", id, "address", user.Address, "members", r.Len())
	return nil
}

// Leave removes the session from its current room. A no-op when the session
// is not in a room; an error only once the session is disconnected.
func (m *Manager) Leave(s *Session) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() == Disconnected {
		return types.ErrSessionClosed
	}
	m.leaveLocked(s)
	return nil
}

// leaveLocked performs the membership removal and leave notification.
// Caller holds s.opMu.
func (m *Manager) leaveLocked(s *Session) {
	r := s.exitRoom()
	if r == nil {
		return
	}
	addr := s.User().Address
	left, removed := m.registry.RemoveMember(r.ID(), addr)
	if removed && left != nil {
		m.presence.CollaboratorLeft(left, addr)
	}
	slog.Info("left room", "conn_id", s.id, "room_id", r.ID(), "address", addr)
}

// Disconnect runs the leave path and retires the session. Idempotent: a
// disconnect racing mid-join or mid-emit still triggers the leave exactly
// once, because close() reports the occupied room only the first time.
func (m *Manager) Disconnect(s *Session) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	addr := s.User().Address
	r := s.close()
	if r != nil {
		left, removed := m.registry.RemoveMember(r.ID(), addr)
		if removed && left != nil {
			m.presence.CollaboratorLeft(left, addr)
		}
	}

	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()
	slog.Debug("session disconnected", "conn_id", s.id, "address", addr)
}

// Find returns the session whose bound identity occupies the given room
// membership. Used by the staleness sweeper to turn an eviction into an
// implicit disconnect.
func (m *Manager) Find(roomID types.RoomID, addr types.Address) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.User().Address != addr {
			continue
		}
		if r := s.Room(); r != nil && r.ID() == roomID {
			return s, true
		}
	}
	return nil, false
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
