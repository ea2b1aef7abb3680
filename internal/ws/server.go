// internal/ws/server.go

// Package ws is the transport layer: it upgrades websocket connections,
// decodes the client envelope, and drives the relay core. It also hosts the
// read-only debug API the room CLI commands use.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/researchgraph/collabrelay/internal/relay"
	"github.com/researchgraph/collabrelay/internal/session"
	"github.com/researchgraph/collabrelay/internal/types"
)

// Server handles websocket upgrades and the debug HTTP API.
type Server struct {
	relay    *relay.Relay
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// NewServer creates a Server over the relay. With an empty origin list any
// origin is accepted; otherwise the Origin header must match an entry.
func NewServer(rl *relay.Relay, allowedOrigins []string) *Server {
	s := &Server{
		relay: rl,
		mux:   http.NewServeMux(),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/rooms", s.handleRooms)
	s.mux.HandleFunc("GET /api/rooms/", s.handleRoom)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(conn)
	sess := s.relay.Connect(client)
	slog.Info("client connected", "conn_id", client.ID())

	go client.writePump()

	// The transport close/error callback is the single disconnect trigger:
	// however the read loop exits, the leave path runs exactly once.
	defer func() {
		s.relay.Disconnect(sess)
		_ = client.Close()
		slog.Info("client disconnected", "conn_id", client.ID())
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		s.relay.Heartbeat(sess)
		return nil
	})

	for {
		var msg types.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			slog.Debug("read loop ended", "conn_id", client.ID(), "error", err)
			return
		}
		if err := s.dispatch(sess, &msg); err != nil {
			if errors.Is(err, types.ErrSessionClosed) {
				return
			}
			// Recoverable: report to the offender, keep the connection.
			client.Deliver(types.ErrorMessage(err))
			slog.Debug("rejected message", "conn_id", client.ID(), "type", msg.Type, "error", err)
		}
	}
}

func (s *Server) dispatch(sess *session.Session, msg *types.ClientMessage) error {
	switch msg.Type {
	case types.MsgUserInfo:
		return s.relay.Bind(sess, types.Address(msg.Address), msg.Name)

	case types.MsgJoinProject:
		if msg.ProjectID == "" {
			return fmt.Errorf("%w: projectId required", types.ErrInvalidEventPayload)
		}
		roomType, err := types.ParseRoomType(msg.ProjectType)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrInvalidEventPayload, err)
		}
		return s.relay.Join(sess, types.RoomID(msg.ProjectID), roomType)

	case types.MsgLeaveProject:
		return s.relay.Leave(sess)

	case types.MsgCollaborationEvent:
		return s.relay.Emit(sess, msg.Event)
	}
	return fmt.Errorf("%w: unknown message type %q", types.ErrInvalidEventPayload, msg.Type)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"rooms":    s.relay.Registry().Len(),
		"sessions": s.relay.Sessions(),
	})
}

type roomListItem struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Members      int    `json:"members"`
	LastActivity string `json:"last_activity"`
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.relay.Registry().Rooms()
	result := make([]roomListItem, 0, len(rooms))
	for _, rm := range rooms {
		result = append(result, roomListItem{
			ID:           string(rm.ID()),
			Type:         string(rm.Type()),
			Members:      rm.Len(),
			LastActivity: rm.LastActivity().Format(time.RFC3339),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivity > result[j].LastActivity
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	if id == "" {
		http.Error(w, `{"error":"room id required"}`, http.StatusBadRequest)
		return
	}
	rm, ok := s.relay.Registry().Get(types.RoomID(id))
	if !ok {
		http.Error(w, `{"error":"room not found"}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rm.Snapshot())
}
