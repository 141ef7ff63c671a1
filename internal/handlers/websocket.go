package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"hygiene-log-backend/internal/middleware"
	"hygiene-log-backend/internal/repository"
	"hygiene-log-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	errTokenRequired  = errors.New("token or device_id required")
	errMissingRecord  = errors.New("record payload required")
	errUnknownMessage = errors.New("unknown message type")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // The bearer token is the access check, not the origin.
	},
}

// WSMessage is the envelope for both directions of the live-feed socket.
type WSMessage struct {
	Type     string                    `json:"type"`
	RecordID string                    `json:"record_id,omitempty"`
	Record   *services.AddRecordInput  `json:"record,omitempty"`
	Patch    *repository.RecordPatch   `json:"patch,omitempty"`
	Records  interface{}               `json:"records,omitempty"`
	Event    *services.RecordEvent     `json:"event,omitempty"`
	ScopeID  string                    `json:"scope_id,omitempty"`
	Message  string                    `json:"message,omitempty"`
}

// WebSocketHandler serves the live record feed. Each connection owns a
// RecordStore bound to the caller's scope; the store is rebound when the
// client signals a team change, tearing the previous feed down first.
type WebSocketHandler struct {
	hub         *services.Hub
	userService *services.UserService
	resolver    *services.ScopeResolver
	backends    services.BackendFactory
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(
	hub *services.Hub,
	userService *services.UserService,
	resolver *services.ScopeResolver,
	backends services.BackendFactory,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		userService: userService,
		resolver:    resolver,
		backends:    backends,
	}
}

// wsSession couples one connection with its record store and the forward
// feed that pushes scope events to the client.
type wsSession struct {
	conn  *websocket.Conn
	store *services.RecordStore
	hub   *services.Hub

	writeMu sync.Mutex
	feedMu  sync.Mutex
	feed    *services.Subscription
}

// HandleWebSocket handles GET /ws?token=...  or  GET /ws?device_id=...
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identityFromQuery(r)
	if err != nil {
		respondError(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	session := &wsSession{
		conn:  conn,
		store: services.NewRecordStore(h.resolver, h.backends, h.hub),
		hub:   h.hub,
	}
	defer session.close()

	if err := session.bind(r.Context(), identity); err != nil {
		session.sendError(err.Error())
		return
	}

	log.Info().
		Str("user_id", identity.UserID).
		Str("device_id", identity.DeviceID).
		Str("scope_id", session.store.ScopeID()).
		Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", identity.UserID).Msg("WebSocket error")
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Msg("Failed to parse WebSocket message")
			session.sendError("Invalid message format")
			continue
		}

		if err := h.handleMessage(r.Context(), session, identity, msg); err != nil {
			log.Error().Err(err).Str("type", msg.Type).Msg("Failed to handle message")
			session.sendError(err.Error())
		}
	}
}

func (h *WebSocketHandler) identityFromQuery(r *http.Request) (services.Identity, error) {
	if token := r.URL.Query().Get("token"); token != "" {
		userID, err := middleware.ValidateWebSocketToken(token, h.userService)
		if err != nil {
			return services.Identity{}, err
		}
		return services.Identity{UserID: userID}, nil
	}
	if deviceID := r.URL.Query().Get("device_id"); deviceID != "" {
		return services.Identity{DeviceID: deviceID}, nil
	}
	return services.Identity{}, errTokenRequired
}

// handleMessage processes incoming WebSocket messages.
func (h *WebSocketHandler) handleMessage(ctx context.Context, s *wsSession, identity services.Identity, msg WSMessage) error {
	switch msg.Type {
	case "add_record":
		if msg.Record == nil {
			return errMissingRecord
		}
		_, err := s.store.AddRecord(ctx, *msg.Record)
		return err
	case "update_record":
		if msg.RecordID == "" || msg.Patch == nil {
			return errMissingRecord
		}
		return s.store.UpdateRecord(ctx, msg.RecordID, *msg.Patch)
	case "delete_record":
		if msg.RecordID == "" {
			return errMissingRecord
		}
		return s.store.DeleteRecord(ctx, msg.RecordID)
	case "rebind":
		// Client's team membership changed; resolve the scope again.
		return s.bind(ctx, identity)
	default:
		return errUnknownMessage
	}
}

// bind (re)binds the session's store and forward feed, then sends the
// fresh snapshot to the client.
func (s *wsSession) bind(ctx context.Context, identity services.Identity) error {
	if err := s.store.Bind(ctx, identity); err != nil {
		return err
	}
	scopeID := s.store.ScopeID()

	s.feedMu.Lock()
	if s.feed != nil {
		s.feed.Cancel()
	}
	s.feed = s.hub.Subscribe(scopeID)
	feed := s.feed
	s.feedMu.Unlock()

	go s.forward(feed)

	return s.send(WSMessage{
		Type:    "snapshot",
		ScopeID: scopeID,
		Records: s.store.Records(),
	})
}

// forward pushes feed events to the client until the feed is cancelled.
func (s *wsSession) forward(feed *services.Subscription) {
	for ev := range feed.C {
		event := ev
		if err := s.send(WSMessage{Type: "event", ScopeID: ev.ScopeID, Event: &event}); err != nil {
			return
		}
	}
}

func (s *wsSession) send(msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSession) sendError(message string) {
	_ = s.send(WSMessage{Type: "error", Message: message})
}

func (s *wsSession) close() {
	s.feedMu.Lock()
	if s.feed != nil {
		s.feed.Cancel()
		s.feed = nil
	}
	s.feedMu.Unlock()
	s.store.Close()
}
