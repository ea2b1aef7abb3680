package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/researchgraph/collabrelay/internal/relay"
	"github.com/researchgraph/collabrelay/internal/types"
)

func setupServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(NewServer(relay.New(nil), nil))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return srv, wsURL
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg types.ClientMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatal(err)
	}
}

func recv(t *testing.T, conn *websocket.Conn) *types.ServerMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var msg types.ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return &msg
}

func bindAndJoin(t *testing.T, conn *websocket.Conn, addr, projectID, projectType string) {
	t.Helper()
	send(t, conn, types.ClientMessage{Type: types.MsgUserInfo, Address: addr})
	send(t, conn, types.ClientMessage{
		Type:        types.MsgJoinProject,
		ProjectID:   projectID,
		ProjectType: projectType,
	})
	state := recv(t, conn)
	if state.Type != types.MsgProjectState {
		t.Fatalf("expected project_state first, got %s", state.Type)
	}
}

func TestRelayOverWebsocket(t *testing.T) {
	_, wsURL := setupServer(t)

	a := dial(t, wsURL)
	b := dial(t, wsURL)

	bindAndJoin(t, a, "0xAA", "r1", "paper")
	bindAndJoin(t, b, "0xBB", "r1", "")

	joined := recv(t, a)
	if joined.Type != types.MsgCollaboratorJoin || joined.Collaborator.Address != "0xBB" {
		t.Fatalf("expected collaborator_join(0xBB), got %+v", joined)
	}

	send(t, a, types.ClientMessage{
		Type: types.MsgCollaborationEvent,
		Event: &types.EventEnvelope{
			Type: types.EventCursorMove,
			Data: json.RawMessage(`{"x":10,"y":20}`),
		},
	})

	echo := recv(t, b)
	if echo.Type != "cursor_move" {
		t.Fatalf("expected cursor_move, got %s", echo.Type)
	}
	if echo.User == nil || echo.User.Address != "0xAA" {
		t.Fatalf("echo should name the sender, got %+v", echo.User)
	}
	var cur types.Cursor
	if err := json.Unmarshal(echo.Data, &cur); err != nil {
		t.Fatal(err)
	}
	if cur.X != 10 || cur.Y != 20 {
		t.Fatalf("payload mangled: %+v", cur)
	}

	// b leaves; the next frame a sees is the leave, which also proves a
	// never received its own cursor_move.
	send(t, b, types.ClientMessage{Type: types.MsgLeaveProject})
	left := recv(t, a)
	if left.Type != types.MsgCollaboratorLeave || left.Address != "0xBB" {
		t.Fatalf("expected collaborator_leave(0xBB), got %+v", left)
	}
}

func TestErrorFramesKeepConnectionAlive(t *testing.T) {
	_, wsURL := setupServer(t)

	conn := dial(t, wsURL)

	// Room operation before identity binding.
	send(t, conn, types.ClientMessage{Type: types.MsgJoinProject, ProjectID: "r1", ProjectType: "paper"})
	frame := recv(t, conn)
	if frame.Type != types.MsgError || frame.Code != "unbound_session" {
		t.Fatalf("expected unbound_session error, got %+v", frame)
	}

	// Unknown message type.
	send(t, conn, types.ClientMessage{Type: "teleport"})
	frame = recv(t, conn)
	if frame.Type != types.MsgError || frame.Code != "invalid_event_payload" {
		t.Fatalf("expected invalid_event_payload, got %+v", frame)
	}

	// The connection survived both rejections.
	bindAndJoin(t, conn, "0xAA", "r1", "paper")

	// Malformed event payload after joining.
	send(t, conn, types.ClientMessage{
		Type: types.MsgCollaborationEvent,
		Event: &types.EventEnvelope{
			Type: types.EventTextEdit,
			Data: json.RawMessage(`{"length":3}`),
		},
	})
	frame = recv(t, conn)
	if frame.Type != types.MsgError || frame.Code != "invalid_event_payload" {
		t.Fatalf("expected invalid_event_payload, got %+v", frame)
	}
}

func TestRoomTypeMismatchRejected(t *testing.T) {
	_, wsURL := setupServer(t)

	a := dial(t, wsURL)
	bindAndJoin(t, a, "0xAA", "r1", "paper")

	b := dial(t, wsURL)
	send(t, b, types.ClientMessage{Type: types.MsgUserInfo, Address: "0xBB"})
	send(t, b, types.ClientMessage{Type: types.MsgJoinProject, ProjectID: "r1", ProjectType: "analysis"})

	frame := recv(t, b)
	if frame.Type != types.MsgError || frame.Code != "room_type_mismatch" {
		t.Fatalf("expected room_type_mismatch, got %+v", frame)
	}
}

func TestDisconnectNotifiesRoom(t *testing.T) {
	_, wsURL := setupServer(t)

	a := dial(t, wsURL)
	b := dial(t, wsURL)
	bindAndJoin(t, a, "0xAA", "r1", "hypothesis")
	bindAndJoin(t, b, "0xBB", "r1", "")

	if msg := recv(t, a); msg.Type != types.MsgCollaboratorJoin {
		t.Fatalf("expected collaborator_join, got %s", msg.Type)
	}

	// Abrupt close, no leave_project.
	b.Close()

	left := recv(t, a)
	if left.Type != types.MsgCollaboratorLeave || left.Address != "0xBB" {
		t.Fatalf("expected collaborator_leave(0xBB), got %+v", left)
	}
}

func TestDebugAPI(t *testing.T) {
	srv, wsURL := setupServer(t)

	conn := dial(t, wsURL)
	bindAndJoin(t, conn, "0xAA", "r1", "knowledge_graph")

	resp, err := http.Get(srv.URL + "/api/rooms")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var rooms []struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Members int    `json:"members"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 || rooms[0].ID != "r1" || rooms[0].Type != "knowledge_graph" || rooms[0].Members != 1 {
		t.Fatalf("unexpected room list: %+v", rooms)
	}

	resp2, err := http.Get(srv.URL + "/api/rooms/r1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var snap types.RoomSnapshot
	if err := json.NewDecoder(resp2.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.ID != "r1" || len(snap.Collaborators) != 1 || snap.Collaborators[0].Address != "0xAA" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	resp3, err := http.Get(srv.URL + "/api/rooms/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", resp3.StatusCode)
	}

	resp4, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp4.Body.Close()
	var health struct {
		Status string `json:"status"`
		Rooms  int    `json:"rooms"`
	}
	if err := json.NewDecoder(resp4.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Rooms != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
}
