// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

// Address is the stable collaborator identity supplied by the wallet layer.
// The relay treats it as opaque.
type Address string

type ConnID string
type RoomID string
type EventID string
type InstanceID string

func NewConnID() ConnID {
	return ConnID(uuid.New().String())
}

func NewEventID() EventID {
	return EventID(uuid.New().String())
}

func NewInstanceID() InstanceID {
	return InstanceID(uuid.New().String())
}
