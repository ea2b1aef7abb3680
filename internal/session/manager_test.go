package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/researchgraph/collabrelay/internal/room"
	"github.com/researchgraph/collabrelay/internal/types"
)

type fakePeer struct {
	id types.ConnID

	mu   sync.Mutex
	msgs []*types.ServerMessage
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: types.ConnID(id)}
}

func (p *fakePeer) ID() types.ConnID { return p.id }

func (p *fakePeer) Deliver(msg *types.ServerMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

// recorder captures presence transitions in order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) SnapshotTo(p types.Peer, rm *room.Room) {
	r.record(fmt.Sprintf("snapshot:%s:%s", rm.ID(), p.ID()))
}

func (r *recorder) CollaboratorJoined(rm *room.Room, joined *types.Collaborator) {
	r.record(fmt.Sprintf("join:%s:%s", rm.ID(), joined.Address))
}

func (r *recorder) CollaboratorLeft(rm *room.Room, addr types.Address) {
	r.record(fmt.Sprintf("leave:%s:%s", rm.ID(), addr))
}

func newTestManager() (*Manager, *room.Registry, *recorder) {
	registry := room.NewRegistry()
	m := NewManager(registry)
	rec := &recorder{}
	m.SetPresence(rec)
	return m, registry, rec
}

func TestJoinRequiresIdentity(t *testing.T) {
	m, _, _ := newTestManager()
	s := m.Connect(newFakePeer("c1"))

	err := m.Join(s, "r1", types.RoomTypePaper)
	if !errors.Is(err, types.ErrUnboundSession) {
		t.Errorf("expected ErrUnboundSession, got %v", err)
	}
	if s.State() != Unbound {
		t.Errorf("state should stay unbound, got %s", s.State())
	}
}

func TestBindThenJoin(t *testing.T) {
	m, registry, rec := newTestManager()
	s := m.Connect(newFakePeer("c1"))

	if err := m.Bind(s, "0xAA", "alice"); err != nil {
		t.Fatal(err)
	}
	if s.State() != Bound {
		t.Fatalf("expected bound, got %s", s.State())
	}

	if err := m.Join(s, "r1", types.RoomTypePaper); err != nil {
		t.Fatal(err)
	}
	if s.State() != InRoom {
		t.Fatalf("expected in_room, got %s", s.State())
	}
	r, ok := registry.Get("r1")
	if !ok || r.Len() != 1 {
		t.Fatal("expected one member in r1")
	}

	events := rec.all()
	if len(events) != 2 || events[0] != "snapshot:r1:c1" || events[1] != "join:r1:0xAA" {
		t.Errorf("unexpected presence sequence: %v", events)
	}
}

func TestBindReplacesIdentity(t *testing.T) {
	m, _, _ := newTestManager()
	s := m.Connect(newFakePeer("c1"))

	if err := m.Bind(s, "0xAA", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := m.Bind(s, "0xAA", "alice the researcher"); err != nil {
		t.Fatal(err)
	}
	if s.User().Name != "alice the researcher" {
		t.Errorf("re-bind should refresh the name, got %q", s.User().Name)
	}
}

func TestBindNewAddressLeavesRoom(t *testing.T) {
	m, registry, rec := newTestManager()
	s := m.Connect(newFakePeer("c1"))

	if err := m.Bind(s, "0xAA", ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(s, "r1", types.RoomTypePaper); err != nil {
		t.Fatal(err)
	}

	// Membership is keyed by address, so a new address cannot keep the old
	// membership alive.
	if err := m.Bind(s, "0xBB", ""); err != nil {
		t.Fatal(err)
	}
	if s.State() != Bound {
		t.Errorf("expected bound after re-bind, got %s", s.State())
	}
	if registry.Len() != 0 {
		t.Error("room should be deleted once its only member re-binds away")
	}
	events := rec.all()
	if events[len(events)-1] != "leave:r1:0xAA" {
		t.Errorf("expected trailing leave for 0xAA, got %v", events)
	}
}

func TestSingleRoomInvariant(t *testing.T) {
	m, registry, rec := newTestManager()
	s := m.Connect(newFakePeer("c1"))

	if err := m.Bind(s, "0xAA", ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(s, "r1", types.RoomTypePaper); err != nil {
		t.Fatal(err)
	}
	// Joining r2 without leaving r1 explicitly.
	if err := m.Join(s, "r2", types.RoomTypeAnalysis); err != nil {
		t.Fatal(err)
	}

	if s.Room().ID() != "r2" {
		t.Errorf("expected membership in r2, got %s", s.Room().ID())
	}
	if _, ok := registry.Get("r1"); ok {
		t.Error("r1 should be auto-removed once empty")
	}
	r2, _ := registry.Get("r2")
	if r2 == nil || r2.Len() != 1 {
		t.Error("expected exactly one member in r2")
	}

	// Exactly one leave for r1, and it precedes the join side effects for r2.
	var leaveIdx, joinIdx = -1, -1
	for i, ev := range rec.all() {
		switch ev {
		case "leave:r1:0xAA":
			if leaveIdx != -1 {
				t.Fatal("saw more than one leave for r1")
			}
			leaveIdx = i
		case "join:r2:0xAA":
			joinIdx = i
		}
	}
	if leaveIdx == -1 || joinIdx == -1 || leaveIdx > joinIdx {
		t.Errorf("leave for r1 must precede join for r2: %v", rec.all())
	}
}

func TestLeaveIsNoOpOutsideRoom(t *testing.T) {
	m, _, rec := newTestManager()
	s := m.Connect(newFakePeer("c1"))

	if err := m.Bind(s, "0xAA", ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Leave(s); err != nil {
		t.Errorf("leave outside a room should be a no-op, got %v", err)
	}
	if len(rec.all()) != 0 {
		t.Error("no-op leave should not emit presence events")
	}
}

func TestDisconnectRunsLeaveExactlyOnce(t *testing.T) {
	m, registry, rec := newTestManager()
	a := m.Connect(newFakePeer("ca"))
	b := m.Connect(newFakePeer("cb"))

	if err := m.Bind(a, "0xAA", ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Bind(b, "0xBB", ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(a, "r1", types.RoomTypePaper); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(b, "r1", ""); err != nil {
		t.Fatal(err)
	}

	m.Disconnect(a)
	m.Disconnect(a) // abrupt loss can race a graceful close

	var leaves int
	for _, ev := range rec.all() {
		if ev == "leave:r1:0xAA" {
			leaves++
		}
	}
	if leaves != 1 {
		t.Errorf("expected exactly one leave, got %d", leaves)
	}
	if a.State() != Disconnected {
		t.Errorf("expected disconnected, got %s", a.State())
	}
	r, _ := registry.Get("r1")
	if r == nil || r.Len() != 1 {
		t.Error("r1 should keep its remaining member")
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 live session, got %d", m.Len())
	}

	// Operations on a disconnected session fail closed.
	if err := m.Join(a, "r1", ""); !errors.Is(err, types.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if err := m.Bind(a, "0xAA", ""); !errors.Is(err, types.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestFind(t *testing.T) {
	m, _, _ := newTestManager()
	s := m.Connect(newFakePeer("c1"))

	if err := m.Bind(s, "0xAA", ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(s, "r1", types.RoomTypePaper); err != nil {
		t.Fatal(err)
	}

	got, ok := m.Find("r1", "0xAA")
	if !ok || got != s {
		t.Error("expected to find the session by membership")
	}
	if _, ok := m.Find("r1", "0xBB"); ok {
		t.Error("should not find an address that never joined")
	}
	if _, ok := m.Find("r2", "0xAA"); ok {
		t.Error("should not find a membership in the wrong room")
	}
}
