package gateway

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/auth"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for room connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	issuer            *auth.Issuer
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, issuer *auth.Issuer) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		issuer:            issuer,
	}
}

// HandleRoomConnection upgrades an authenticated client. The guest token
// comes from the token query parameter (browsers cannot set headers on a
// WebSocket handshake) or the Authorization header. room_id is optional and
// subscribes the connection straight away.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return
	}
	userID, err := h.issuer.ParseUserID(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	roomID := uuid.Nil
	if s := r.URL.Query().Get("room_id"); s != "" {
		roomID, err = uuid.Parse(s)
		if err != nil {
			http.Error(w, "invalid room_id format", http.StatusBadRequest)
			return
		}
	}

	if err := h.connectionManager.UpgradeConnection(w, r, userID, roomID); err != nil {
		// The upgrader has already written the HTTP error
		log.Error().
			Err(err).
			Str("user_id", userID.String()).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}
