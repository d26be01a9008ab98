package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/mcdev12/placepick/go/internal/room"
	"github.com/mcdev12/placepick/go/internal/rpc"
	"github.com/rs/zerolog/log"
)

// StateProvider serves room state to clients catching up over plain HTTP.
type StateProvider interface {
	GetRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error)
	GetResults(ctx context.Context, roomID uuid.UUID) (room.Results, error)
}

// StateHandler handles HTTP requests for room state
type StateHandler struct {
	stateProvider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetRoomState handles GET /api/rooms/{id}/state
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	roomID, err := parseRoomID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := h.stateProvider.GetRoom(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleGetResults handles GET /api/rooms/{id}/results
func (h *StateHandler) HandleGetResults(w http.ResponseWriter, r *http.Request) {
	roomID, err := parseRoomID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	results, err := h.stateProvider.GetResults(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := rpc.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("room state request failed")
	}
	writeJSON(w, status, ErrorData{Kind: apperr.KindOf(err), Message: apperr.DisplayMessage(err)})
}
