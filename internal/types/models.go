// internal/types/models.go
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// RoomType is fixed at room creation; later joins inherit it.
type RoomType string

const (
	RoomTypeAnalysis       RoomType = "analysis"
	RoomTypeHypothesis     RoomType = "hypothesis"
	RoomTypePaper          RoomType = "paper"
	RoomTypeKnowledgeGraph RoomType = "knowledge_graph"
)

// ParseRoomType validates a wire-supplied project type. The empty string is
// valid and means "inherit the room's stored type".
func ParseRoomType(s string) (RoomType, error) {
	switch RoomType(s) {
	case RoomTypeAnalysis, RoomTypeHypothesis, RoomTypePaper, RoomTypeKnowledgeGraph:
		return RoomType(s), nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("unknown project type: %q", s)
}

// EventType names a collaboration event fanned out to room members.
type EventType string

const (
	EventCursorMove       EventType = "cursor_move"
	EventTextEdit         EventType = "text_edit"
	EventCommentAdd       EventType = "comment_add"
	EventUserJoin         EventType = "user_join"
	EventUserLeave        EventType = "user_leave"
	EventHypothesisUpdate EventType = "hypothesis_update"
	EventAnalysisUpdate   EventType = "analysis_update"
)

// Cursor is the last reported pointer position within a document section.
type Cursor struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Section string  `json:"section,omitempty"`
}

// Collaborator is a participant's live presence record within a room.
type Collaborator struct {
	Address  Address   `json:"address"`
	Name     string    `json:"name,omitempty"`
	Cursor   *Cursor   `json:"cursor,omitempty"`
	LastSeen time.Time `json:"last_seen"`
	IsTyping bool      `json:"is_typing"`
}

// UserRef identifies the sender stamped onto a fanned-out event.
type UserRef struct {
	Address Address `json:"address"`
	Name    string  `json:"name,omitempty"`
}

// Event is a collaboration event in flight. It is never persisted; it exists
// only for the duration of fan-out.
type Event struct {
	ID        EventID         `json:"id"`
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	User      UserRef         `json:"user"`
	Timestamp time.Time       `json:"timestamp"`
	ProjectID RoomID          `json:"project_id"`
}

// RoomSnapshot is the full room state delivered to a client on join so its
// local view is consistent without replaying history.
type RoomSnapshot struct {
	ID            RoomID          `json:"id"`
	Type          RoomType        `json:"type"`
	Collaborators []*Collaborator `json:"collaborators"`
	LastActivity  time.Time       `json:"last_activity"`
}
