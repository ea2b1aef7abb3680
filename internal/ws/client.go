// internal/ws/client.go
package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/researchgraph/collabrelay/internal/types"
)

const (
	// writeWait bounds a single outbound write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before the read
	// loop gives up on it; pings go out at pingPeriod to keep it fed.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is the outbound lane depth. A full lane drops the frame:
	// delivery is at-most-once and collaboration state self-heals on the
	// next snapshot.
	sendBuffer = 256
)

// Client is the outbound side of one websocket connection. It implements
// types.Peer: Deliver enqueues without blocking, and a single write pump
// drains the lane in FIFO order, which preserves per-sender ordering for
// every receiver.
type Client struct {
	id   types.ConnID
	conn *websocket.Conn
	send chan *types.ServerMessage

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		id:   types.NewConnID(),
		conn: conn,
		send: make(chan *types.ServerMessage, sendBuffer),
		done: make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Client) ID() types.ConnID { return c.id }

// Deliver enqueues a frame for the write pump. Never blocks; a full lane
// drops the frame with a warning.
func (c *Client) Deliver(msg *types.ServerMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		slog.Warn("outbound lane full, dropping frame", "conn_id", c.id, "type", msg.Type)
	}
}

// Close shuts the connection down. Safe to call from any goroutine and more
// than once; the read loop unblocks with an error and runs the disconnect
// path.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	return nil
}

// writePump owns all writes to the connection: queued frames and heartbeat
// pings. gorilla/websocket allows one concurrent writer, so nothing else
// touches conn for writing.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				slog.Debug("write failed", "conn_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
