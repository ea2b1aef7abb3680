// internal/sweeper/sweeper.go

// Package sweeper runs the staleness-eviction policy on a cron schedule. It
// is a defense against ungraceful disconnects: a collaborator whose
// last-seen time falls behind the configured threshold is treated as an
// implicit disconnect. Both thresholds are optional; with neither set the
// sweeper never fires.
package sweeper

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/researchgraph/collabrelay/internal/room"
	"github.com/researchgraph/collabrelay/internal/types"
)

// EvictFunc tears down the session owning the given room membership.
type EvictFunc func(roomID types.RoomID, addr types.Address)

// Sweeper walks the room registry on a schedule and evicts stale members.
type Sweeper struct {
	registry *room.Registry
	evict    EvictFunc

	schedule      string
	staleAfter    time.Duration
	idleRoomAfter time.Duration

	cron *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field, plus descriptors like @every.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Sweeper. staleAfter evicts individual members whose
// last-seen time is older than the threshold; idleRoomAfter clears out rooms
// with no activity at all. A zero duration disables that policy.
func New(registry *room.Registry, evict EvictFunc, schedule string, staleAfter, idleRoomAfter time.Duration) *Sweeper {
	return &Sweeper{
		registry:      registry,
		evict:         evict,
		schedule:      schedule,
		staleAfter:    staleAfter,
		idleRoomAfter: idleRoomAfter,
		cron:          cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the sweep as a cron entry and starts the ticker. A no-op
// when both policies are disabled.
func (s *Sweeper) Start() error {
	if s.staleAfter <= 0 && s.idleRoomAfter <= 0 {
		slog.Info("presence sweeper disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("presence sweeper started",
		"schedule", s.schedule,
		"stale_after", s.staleAfter,
		"idle_room_after", s.idleRoomAfter,
	)
	return nil
}

// Stop stops the cron ticker.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// Sweep runs one pass over every room. Exported so tests and operators can
// trigger it without waiting for the schedule.
func (s *Sweeper) Sweep() {
	now := time.Now()
	for _, r := range s.registry.Rooms() {
		if s.idleRoomAfter > 0 && now.Sub(r.LastActivity()) > s.idleRoomAfter {
			slog.Info("clearing idle room", "room_id", r.ID(), "members", r.Len())
			for _, addr := range r.Addresses() {
				s.evict(r.ID(), addr)
			}
			continue
		}
		if s.staleAfter > 0 {
			for _, addr := range r.StaleMembers(now.Add(-s.staleAfter)) {
				s.evict(r.ID(), addr)
			}
		}
	}
}
