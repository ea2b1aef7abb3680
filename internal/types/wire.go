// internal/types/wire.go
package types

import (
	"encoding/json"
	"time"
)

// Client-to-server message types.
const (
	MsgUserInfo           = "user_info"
	MsgJoinProject        = "join_project"
	MsgLeaveProject       = "leave_project"
	MsgCollaborationEvent = "collaboration_event"
)

// Server-to-client message types. Event echoes reuse the event type name
// (cursor_move, text_edit, ...) directly.
const (
	MsgProjectState      = "project_state"
	MsgCollaboratorJoin  = "collaborator_join"
	MsgCollaboratorLeave = "collaborator_leave"
	MsgError             = "error"
)

// ClientMessage is the JSON envelope read from a websocket client. Fields
// beyond Type are populated per message type.
type ClientMessage struct {
	Type string `json:"type"`

	// user_info
	Address string `json:"address,omitempty"`
	Name    string `json:"name,omitempty"`

	// join_project / leave_project
	ProjectID   string `json:"projectId,omitempty"`
	ProjectType string `json:"projectType,omitempty"`

	// collaboration_event
	Event *EventEnvelope `json:"event,omitempty"`
}

// EventEnvelope is the client-supplied portion of a collaboration event.
// User, timestamp, and project id are stamped server-side.
type EventEnvelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ServerMessage is the JSON envelope written to a websocket client.
type ServerMessage struct {
	Type string `json:"type"`

	// project_state
	Room *RoomSnapshot `json:"room,omitempty"`

	// collaborator_join
	Collaborator *Collaborator `json:"collaborator,omitempty"`

	// collaborator_leave. The full collaborator object is deliberately not
	// sent; its fields are unreliable once the member is gone.
	Address Address `json:"address,omitempty"`

	// event echoes
	ID        EventID         `json:"id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	User      *UserRef        `json:"user,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	ProjectID RoomID          `json:"projectId,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// EchoMessage converts a stamped event into the wire echo delivered to the
// other members of the room.
func EchoMessage(ev *Event) *ServerMessage {
	ts := ev.Timestamp
	user := ev.User
	return &ServerMessage{
		Type:      string(ev.Type),
		ID:        ev.ID,
		Data:      ev.Data,
		User:      &user,
		Timestamp: &ts,
		ProjectID: ev.ProjectID,
	}
}

// ErrorMessage builds the error frame for a recoverable failure.
func ErrorMessage(err error) *ServerMessage {
	return &ServerMessage{
		Type:    MsgError,
		Code:    ErrorCode(err),
		Message: err.Error(),
	}
}
