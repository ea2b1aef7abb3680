// internal/session/session.go
package session

import (
	"sync"

	"github.com/researchgraph/collabrelay/internal/room"
	"github.com/researchgraph/collabrelay/internal/types"
)

// State is a session's position in its lifecycle:
// Unbound -> Bound -> InRoom -> Bound (on leave) -> Disconnected (terminal).
type State int

const (
	Unbound State = iota
	Bound
	InRoom
	Disconnected
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case InRoom:
		return "in_room"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

// Session is the per-connection state machine. A session is a member of at
// most one room at any instant; joining a new room implicitly leaves the
// previous one. All transitions go through the Manager, which serializes
// them per session.
type Session struct {
	id   types.ConnID
	peer types.Peer

	// opMu serializes whole operations (bind/join/leave/disconnect) for
	// this session, including the registry mutations they perform. The
	// read loop and the staleness sweeper can both drive transitions.
	opMu sync.Mutex

	mu    sync.RWMutex
	state State
	user  types.UserRef
	room  *room.Room
}

func newSession(peer types.Peer) *Session {
	return &Session{
		id:    peer.ID(),
		peer:  peer,
		state: Unbound,
	}
}

func (s *Session) ID() types.ConnID { return s.id }
func (s *Session) Peer() types.Peer { return s.peer }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User returns the bound identity. The zero UserRef means unbound.
func (s *Session) User() types.UserRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Room returns the room the session is currently a member of, or nil.
func (s *Session) Room() *room.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

func (s *Session) setIdentity(user types.UserRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	if s.state == Unbound {
		s.state = Bound
	}
}

func (s *Session) enterRoom(r *room.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = r
	s.state = InRoom
}

// exitRoom returns the room left, or nil if the session was not in one.
func (s *Session) exitRoom() *room.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != InRoom {
		return nil
	}
	r := s.room
	s.room = nil
	s.state = Bound
	return r
}

// close marks the session disconnected and returns the room it occupied, if
// any. Safe to call more than once; later calls return nil.
func (s *Session) close() *room.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Disconnected {
		return nil
	}
	r := s.room
	s.room = nil
	s.state = Disconnected
	return r
}
