// internal/bridge/redis.go

// Package bridge mirrors fanned-out frames across relay instances through
// Redis pub/sub, one channel per room. Per-sender FIFO survives because a
// session's traffic always flows through its single owning instance and
// Redis preserves publish order per channel. Frames are stamped with the
// origin instance id so an instance drops its own publications.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"

	"github.com/researchgraph/collabrelay/internal/types"
)

const channelPrefix = "collab:room:"

// maxInflight caps concurrent publish goroutines so a slow Redis cannot
// accumulate unbounded senders.
const maxInflight = 64

// DeliverFunc hands a foreign-origin frame to the local relay.
type DeliverFunc func(roomID types.RoomID, msg *types.ServerMessage)

// frame is the payload carried on the Redis channel.
type frame struct {
	Instance types.InstanceID     `json:"instance"`
	Message  *types.ServerMessage `json:"message"`
}

// Bridge is an optional Publisher backed by Redis pub/sub.
type Bridge struct {
	client   *redis.Client
	instance types.InstanceID
	sem      *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	pubsub *redis.PubSub
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int) (*Bridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Bridge{
		client:   client,
		instance: types.NewInstanceID(),
		sem:      semaphore.NewWeighted(maxInflight),
	}, nil
}

// Instance returns this bridge's origin id.
func (b *Bridge) Instance() types.InstanceID { return b.instance }

// Publish mirrors a frame to the room's channel. Fire-and-forget: the
// caller's fan-out never blocks on Redis, and a failed publish is logged and
// dropped (at-most-once delivery, same as local sends).
func (b *Bridge) Publish(roomID types.RoomID, msg *types.ServerMessage) {
	if b.ctx == nil {
		return
	}
	data, err := json.Marshal(frame{Instance: b.instance, Message: msg})
	if err != nil {
		slog.Error("marshal bridge frame", "room_id", roomID, "error", err)
		return
	}
	if !b.sem.TryAcquire(1) {
		slog.Warn("bridge publish dropped, too many in flight", "room_id", roomID)
		return
	}
	go func() {
		defer b.sem.Release(1)
		if err := b.client.Publish(b.ctx, channelPrefix+string(roomID), data).Err(); err != nil {
			slog.Warn("bridge publish failed", "room_id", roomID, "error", err)
		}
	}()
}

// Start subscribes to every room channel and delivers foreign-origin frames
// until the context is canceled. Frames for rooms this instance does not
// host are dropped by the deliver func's registry lookup.
func (b *Bridge) Start(ctx context.Context, deliver DeliverFunc) {
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.pubsub = b.client.PSubscribe(b.ctx, channelPrefix+"*")

	go func() {
		for msg := range b.pubsub.Channel() {
			var f frame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				slog.Warn("drop malformed bridge frame", "channel", msg.Channel, "error", err)
				continue
			}
			if f.Instance == b.instance || f.Message == nil {
				continue
			}
			roomID := types.RoomID(strings.TrimPrefix(msg.Channel, channelPrefix))
			deliver(roomID, f.Message)
		}
	}()
	slog.Info("bridge started", "instance", b.instance)
}

// Close stops the subscriber and releases the Redis client.
func (b *Bridge) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	if b.pubsub != nil {
		_ = b.pubsub.Close()
	}
	return b.client.Close()
}
