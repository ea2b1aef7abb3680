// internal/types/errors.go
package types

import "errors"

// Relay error taxonomy. All of these are local, recoverable conditions: they
// are reported to the offending client as an error frame and never terminate
// the connection. Only transport-level failures are fatal to a session.
var (
	// ErrUnboundSession: a room operation was attempted before user_info.
	ErrUnboundSession = errors.New("session has no bound identity")

	// ErrNotInRoom: emit or leave attempted outside a room.
	ErrNotInRoom = errors.New("session is not in a room")

	// ErrInvalidEventPayload: event data is missing required fields for its
	// type. The event is rejected and not broadcast.
	ErrInvalidEventPayload = errors.New("invalid event payload")

	// ErrRoomTypeMismatch: a join named a type different from the room's
	// stored type. The stored type is authoritative.
	ErrRoomTypeMismatch = errors.New("room exists with a different type")

	// ErrSessionClosed: operation on a disconnected session.
	ErrSessionClosed = errors.New("session is closed")
)

// ErrorCode maps a relay error to the stable code string carried on error
// frames. Unknown errors map to "internal".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnboundSession):
		return "unbound_session"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, ErrInvalidEventPayload):
		return "invalid_event_payload"
	case errors.Is(err, ErrRoomTypeMismatch):
		return "room_type_mismatch"
	case errors.Is(err, ErrSessionClosed):
		return "session_closed"
	}
	return "internal"
}
