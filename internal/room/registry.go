// internal/room/registry.go

// Package room owns the in-memory room registry: room lifecycle, membership,
// and the presence fields carried on each collaborator. Rooms are created
// lazily on first join and deleted immediately when the last member leaves;
// a later join recreates the room with the same id and empty history.
package room

import (
	"fmt"
	"sync"

	"github.com/researchgraph/collabrelay/internal/types"
)

// Registry maps room id to live room state.
type Registry struct {
	mu    sync.RWMutex
	rooms map[types.RoomID]*Room
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[types.RoomID]*Room)}
}

// GetOrCreate returns the room with the given id, creating it when absent.
// The type is fixed at creation: a join naming a different type than the
// stored one fails with ErrRoomTypeMismatch, and an empty type inherits the
// stored type. Creating a room requires a concrete type.
func (g *Registry) GetOrCreate(id types.RoomID, roomType types.RoomType) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolveLocked(id, roomType)
}

// AddMember resolves or recreates the room and inserts the collaborator in
// one registry-locked step. Resolving first and inserting later races a
// concurrent removal of the room's last member, which deletes the room and
// leaves the joiner on an orphaned object no other session can reach.
func (g *Registry) AddMember(id types.RoomID, roomType types.RoomType, c *types.Collaborator, p types.Peer) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, err := g.resolveLocked(id, roomType)
	if err != nil {
		return nil, err
	}
	r.AddMember(c, p)
	return r, nil
}

// resolveLocked looks up or creates the room. Caller holds g.mu.
func (g *Registry) resolveLocked(id types.RoomID, roomType types.RoomType) (*Room, error) {
	if r, ok := g.rooms[id]; ok {
		if roomType != "" && roomType != r.roomType {
			return nil, fmt.Errorf("join %s as %s: %w (stored type %s)", id, roomType, types.ErrRoomTypeMismatch, r.roomType)
		}
		return r, nil
	}

	if roomType == "" {
		return nil, fmt.Errorf("%w: project type required to create room %s", types.ErrInvalidEventPayload, id)
	}
	r := newRoom(id, roomType)
	g.rooms[id] = r
	return r, nil
}

// Get returns the room with the given id, if it exists.
func (g *Registry) Get(id types.RoomID) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	return r, ok
}

// RemoveMember removes the collaborator from the room. If the resulting
// member set is empty the room is deleted immediately, bounding memory
// growth. The room is returned (even when deleted) so the caller can notify
// the remaining members; removed reports whether the address was a member.
func (g *Registry) RemoveMember(id types.RoomID, addr types.Address) (r *Room, removed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[id]
	if !ok {
		return nil, false
	}
	removed, empty := r.removeMember(addr)
	if empty {
		delete(g.rooms, id)
	}
	return r, removed
}

// Touch refreshes the room's last-activity time.
func (g *Registry) Touch(id types.RoomID) {
	g.mu.RLock()
	r, ok := g.rooms[id]
	g.mu.RUnlock()
	if ok {
		r.Touch()
	}
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Rooms returns the current set of live rooms.
func (g *Registry) Rooms() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}
