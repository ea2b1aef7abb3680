// internal/relay/tracker.go
package relay

import (
	"github.com/researchgraph/collabrelay/internal/room"
	"github.com/researchgraph/collabrelay/internal/types"
)

// Publisher mirrors locally fanned-out frames to other relay instances.
// Optional; a nil Publisher means single-instance operation.
type Publisher interface {
	Publish(roomID types.RoomID, msg *types.ServerMessage)
}

// Tracker derives join/leave notifications and joiner snapshots from session
// transitions. It holds no state of its own.
type Tracker struct {
	publisher Publisher
}

// NewTracker creates a presence tracker. publisher may be nil.
func NewTracker(publisher Publisher) *Tracker {
	return &Tracker{publisher: publisher}
}

// SnapshotTo delivers the full project_state to a newly joined peer so its
// local view is consistent without replaying history.
func (t *Tracker) SnapshotTo(p types.Peer, r *room.Room) {
	p.Deliver(&types.ServerMessage{
		Type: types.MsgProjectState,
		Room: r.Snapshot(),
	})
}

// CollaboratorJoined notifies every other member of the room.
func (t *Tracker) CollaboratorJoined(r *room.Room, joined *types.Collaborator) {
	c := *joined
	msg := &types.ServerMessage{
		Type:         types.MsgCollaboratorJoin,
		Collaborator: &c,
	}
	for _, p := range r.Peers(joined.Address) {
		p.Deliver(msg)
	}
	if t.publisher != nil {
		t.publisher.Publish(r.ID(), msg)
	}
}

// CollaboratorLeft notifies the remaining members with the departing address
// only.
func (t *Tracker) CollaboratorLeft(r *room.Room, addr types.Address) {
	msg := &types.ServerMessage{
		Type:    types.MsgCollaboratorLeave,
		Address: addr,
	}
	for _, p := range r.Peers(addr) {
		p.Deliver(msg)
	}
	if t.publisher != nil {
		t.publisher.Publish(r.ID(), msg)
	}
}
