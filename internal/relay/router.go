// internal/relay/router.go
package relay

import (
	"encoding/json"
	"time"

	"github.com/researchgraph/collabrelay/internal/room"
	"github.com/researchgraph/collabrelay/internal/session"
	"github.com/researchgraph/collabrelay/internal/types"
)

// Router validates collaboration events, stamps them, and fans them out to
// every other member of the originating room. Delivery is at-most-once and
// best-effort; per-sender ordering follows from each connection's single
// read loop and each receiver's FIFO outbound lane.
type Router struct {
	registry  *room.Registry
	publisher Publisher
}

// NewRouter creates a Router over the registry. publisher may be nil.
func NewRouter(registry *room.Registry, publisher Publisher) *Router {
	return &Router{registry: registry, publisher: publisher}
}

// Emit processes one event from the given session. Valid only in the InRoom
// state. The sender never receives its own event back.
func (rt *Router) Emit(s *session.Session, env *types.EventEnvelope) error {
	switch s.State() {
	case session.Disconnected:
		return types.ErrSessionClosed
	case session.Unbound:
		return types.ErrUnboundSession
	case session.Bound:
		return types.ErrNotInRoom
	}
	r := s.Room()
	if r == nil {
		return types.ErrNotInRoom
	}
	if env == nil {
		return types.ErrInvalidEventPayload
	}

	data, err := validatePayload(env.Type, env.Data)
	if err != nil {
		return err
	}

	user := s.User()

	// High-frequency events keep the sender's presence record current so a
	// late joiner's snapshot reflects the latest known values. Any event
	// other than a text edit clears the typing flag.
	switch env.Type {
	case types.EventCursorMove:
		var cur types.Cursor
		_ = json.Unmarshal(data, &cur)
		r.UpdateCursor(user.Address, &cur)
		r.SetTyping(user.Address, false)
	case types.EventTextEdit:
		r.SetTyping(user.Address, true)
	default:
		r.SetTyping(user.Address, false)
	}

	ev := &types.Event{
		ID:        types.NewEventID(),
		Type:      env.Type,
		Data:      data,
		User:      user,
		Timestamp: time.Now(),
		ProjectID: r.ID(),
	}

	echo := types.EchoMessage(ev)
	for _, p := range r.Peers(user.Address) {
		p.Deliver(echo)
	}
	if rt.publisher != nil {
		rt.publisher.Publish(r.ID(), echo)
	}
	return nil
}
