// internal/types/interfaces.go
package types

// Peer is the outbound side of a connection. Deliver must not block: the
// transport enqueues onto a bounded per-connection lane and drops the
// message if the lane is full (at-most-once, best-effort delivery).
type Peer interface {
	ID() ConnID
	Deliver(msg *ServerMessage)
}
