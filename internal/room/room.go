// internal/room/room.go
package room

import (
	"sync"
	"time"

	"github.com/researchgraph/collabrelay/internal/types"
)

// member pairs a collaborator's presence record with the outbound side of
// its connection.
type member struct {
	collab *types.Collaborator
	peer   types.Peer
}

// Room is the unit of collaboration scoping. All mutations to the member set
// and to any member's presence fields are serialized by the room's lock;
// distinct rooms never contend with each other. The lock is held only for
// the in-memory mutation, never across outbound sends.
type Room struct {
	id       types.RoomID
	roomType types.RoomType

	mu           sync.RWMutex
	members      map[types.Address]*member
	lastActivity time.Time
}

func newRoom(id types.RoomID, roomType types.RoomType) *Room {
	return &Room{
		id:           id,
		roomType:     roomType,
		members:      make(map[types.Address]*member),
		lastActivity: time.Now(),
	}
}

func (r *Room) ID() types.RoomID     { return r.id }
func (r *Room) Type() types.RoomType { return r.roomType }

// AddMember registers a collaborator. Re-join by the same address replaces
// the prior entry, so the member set never holds duplicate addresses.
func (r *Room) AddMember(c *types.Collaborator, p types.Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[c.Address] = &member{collab: c, peer: p}
	r.lastActivity = time.Now()
}

// removeMember deletes the collaborator and reports whether it was present
// and whether the room is now empty.
func (r *Room) removeMember(addr types.Address) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[addr]; !ok {
		return false, len(r.members) == 0
	}
	delete(r.members, addr)
	r.lastActivity = time.Now()
	return true, len(r.members) == 0
}

// Peers returns the outbound peers of every member except the excluded
// address. The returned slice is a copy; sends happen outside the lock.
func (r *Room) Peers(exclude types.Address) []types.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peers := make([]types.Peer, 0, len(r.members))
	for addr, m := range r.members {
		if addr == exclude {
			continue
		}
		peers = append(peers, m.peer)
	}
	return peers
}

// PeerOf returns the outbound peer for the given member, if present.
func (r *Room) PeerOf(addr types.Address) (types.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[addr]
	if !ok {
		return nil, false
	}
	return m.peer, true
}

// Len returns the current member count.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Snapshot copies the full room state for a project_state message. Cursor
// values are copied so later mutations don't race with the marshaller.
func (r *Room) Snapshot() *types.RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	collabs := make([]*types.Collaborator, 0, len(r.members))
	for _, m := range r.members {
		c := *m.collab
		if m.collab.Cursor != nil {
			cur := *m.collab.Cursor
			c.Cursor = &cur
		}
		collabs = append(collabs, &c)
	}
	return &types.RoomSnapshot{
		ID:            r.id,
		Type:          r.roomType,
		Collaborators: collabs,
		LastActivity:  r.lastActivity,
	}
}

// UpdateCursor records the sender's latest cursor position so late joiners'
// snapshots reflect it even though they miss the historical events.
func (r *Room) UpdateCursor(addr types.Address, cur *types.Cursor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[addr]
	if !ok {
		return
	}
	m.collab.Cursor = cur
	m.collab.LastSeen = time.Now()
	r.lastActivity = m.collab.LastSeen
}

// SetTyping flags the sender's typing state and refreshes its last-seen time.
func (r *Room) SetTyping(addr types.Address, typing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[addr]
	if !ok {
		return
	}
	m.collab.IsTyping = typing
	m.collab.LastSeen = time.Now()
	r.lastActivity = m.collab.LastSeen
}

// TouchMember refreshes a member's last-seen time (heartbeat pongs).
func (r *Room) TouchMember(addr types.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[addr]; ok {
		m.collab.LastSeen = time.Now()
	}
}

// Touch refreshes the room's last-activity time.
func (r *Room) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActivity = time.Now()
}

// LastActivity returns the room's last-activity time.
func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

// StaleMembers returns the addresses whose last-seen time is older than the
// given cutoff.
func (r *Room) StaleMembers(cutoff time.Time) []types.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stale []types.Address
	for addr, m := range r.members {
		if m.collab.LastSeen.Before(cutoff) {
			stale = append(stale, addr)
		}
	}
	return stale
}

// Addresses returns every member address.
func (r *Room) Addresses() []types.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addrs := make([]types.Address, 0, len(r.members))
	for addr := range r.members {
		addrs = append(addrs, addr)
	}
	return addrs
}
