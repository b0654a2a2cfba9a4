// arena/api/handler.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/TitanForge/ARENA-SERVICES/arena/match"
	"github.com/TitanForge/ARENA-SERVICES/arena/queue"
	"github.com/TitanForge/ARENA-SERVICES/arena/store"
	sharedapi "github.com/TitanForge/ARENA-SERVICES/shared/api"
	"github.com/TitanForge/ARENA-SERVICES/shared/models"
	redisu "github.com/TitanForge/ARENA-SERVICES/shared/redis"
	"github.com/TitanForge/ARENA-SERVICES/shared/service"
)

// ArenaHandler wires the queue and match engine to HTTP.
type ArenaHandler struct {
	queue     *queue.Manager
	registry  *match.Registry
	snapshots *store.MatchStateStore
	ratings   *service.RatingServiceClient
	logger    zerolog.Logger
}

// NewArenaHandler creates the handler with its dependencies.
func NewArenaHandler(q *queue.Manager, reg *match.Registry, snapshots *store.MatchStateStore, ratings *service.RatingServiceClient, logger zerolog.Logger) *ArenaHandler {
	return &ArenaHandler{
		queue:     q,
		registry:  reg,
		snapshots: snapshots,
		ratings:   ratings,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes registers all arena service endpoints on the given router.
func (h *ArenaHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/queue/enqueue", h.Enqueue).Methods(http.MethodPost)
	router.HandleFunc("/queue/leave", h.LeaveQueue).Methods(http.MethodPost)
	router.HandleFunc("/queue/{uuid}", h.QueueStatus).Methods(http.MethodGet)
	router.HandleFunc("/matches/{matchId}", h.GetMatch).Methods(http.MethodGet)
	router.HandleFunc("/matches/{matchId}/titan", h.SelectTitan).Methods(http.MethodPost)
	router.HandleFunc("/matches/{matchId}/actions", h.SubmitAction).Methods(http.MethodPost)
	router.HandleFunc("/matches/{matchId}/surrender", h.Surrender).Methods(http.MethodPost)
	router.HandleFunc("/players/{uuid}/match", h.GetPlayerMatch).Methods(http.MethodGet)
}

// EnqueueRequest is the payload for joining the queue.
type EnqueueRequest struct {
	PlayerUUID string `json:"playerUuid"`
	TitanSetID string `json:"titanSetId"`
}

// LeaveQueueRequest is the payload for leaving the queue.
type LeaveQueueRequest struct {
	PlayerUUID string `json:"playerUuid"`
}

// QueueStatusResponse reports a player's queue membership.
type QueueStatusResponse struct {
	PlayerUUID string `json:"playerUuid"`
	Queued     bool   `json:"queued"`
}

// SelectTitanRequest is the payload for locking a titan.
type SelectTitanRequest struct {
	PlayerUUID string `json:"playerUuid"`
	TitanID    string `json:"titanId"`
}

// SubmitActionRequest is the payload for locking a round action.
type SubmitActionRequest struct {
	PlayerUUID string `json:"playerUuid"`
	Action     string `json:"action"`
	ItemID     string `json:"itemId,omitempty"`
}

// SurrenderRequest is the payload for conceding a match.
type SurrenderRequest struct {
	PlayerUUID string `json:"playerUuid"`
}

// Enqueue handles POST /queue/enqueue. The player's current standing is
// pulled from the rating service so the queue pairs on live ratings.
func (h *ArenaHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sharedapi.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.PlayerUUID == "" || req.TitanSetID == "" {
		sharedapi.WriteBadRequest(w, "playerUuid and titanSetId are required")
		return
	}

	standing, err := h.ratings.GetRating(r.Context(), req.PlayerUUID)
	if err != nil {
		h.logger.Error().Err(err).Str("player", req.PlayerUUID).Msg("Failed to fetch rating standing")
		sharedapi.WriteInternalServerError(w, "Failed to fetch player rating")
		return
	}

	if err := h.queue.Enqueue(r.Context(), req.PlayerUUID, req.TitanSetID, standing.Rating, standing.GamesPlayed); err != nil {
		h.writeQueueError(w, err)
		return
	}
	sharedapi.WriteJSON(w, http.StatusAccepted, QueueStatusResponse{PlayerUUID: req.PlayerUUID, Queued: true})
}

// LeaveQueue handles POST /queue/leave.
func (h *ArenaHandler) LeaveQueue(w http.ResponseWriter, r *http.Request) {
	var req LeaveQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sharedapi.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.PlayerUUID == "" {
		sharedapi.WriteBadRequest(w, "playerUuid is required")
		return
	}

	if err := h.queue.Leave(r.Context(), req.PlayerUUID); err != nil {
		h.writeQueueError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QueueStatus handles GET /queue/{uuid}.
func (h *ArenaHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	playerUUID := mux.Vars(r)["uuid"]
	sharedapi.WriteJSON(w, http.StatusOK, QueueStatusResponse{
		PlayerUUID: playerUUID,
		Queued:     h.queue.IsQueued(playerUUID),
	})
}

// GetMatch handles GET /matches/{matchId}. Live sessions answer from memory;
// reaped matches fall back to the snapshot store.
func (h *ArenaHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]

	s, err := h.registry.GetSession(matchID)
	if err == nil {
		sharedapi.WriteJSON(w, http.StatusOK, s.Snapshot())
		return
	}

	snapshot, err := h.snapshots.GetSnapshot(r.Context(), matchID)
	if err != nil {
		if errors.Is(err, redisu.ErrRedisKeyNotFound) {
			sharedapi.WriteNotFound(w, "Match not found")
			return
		}
		h.logger.Error().Err(err).Str("matchId", matchID).Msg("Failed to load match snapshot")
		sharedapi.WriteInternalServerError(w, "Failed to load match")
		return
	}
	sharedapi.WriteJSON(w, http.StatusOK, snapshot)
}

// GetPlayerMatch handles GET /players/{uuid}/match.
func (h *ArenaHandler) GetPlayerMatch(w http.ResponseWriter, r *http.Request) {
	playerUUID := mux.Vars(r)["uuid"]

	s, err := h.registry.GetSessionForPlayer(playerUUID)
	if err != nil {
		sharedapi.WriteNotFound(w, "Player has no live match")
		return
	}
	sharedapi.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// SelectTitan handles POST /matches/{matchId}/titan.
func (h *ArenaHandler) SelectTitan(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]

	var req SelectTitanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sharedapi.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.PlayerUUID == "" || req.TitanID == "" {
		sharedapi.WriteBadRequest(w, "playerUuid and titanId are required")
		return
	}

	s, err := h.registry.GetSession(matchID)
	if err != nil {
		sharedapi.WriteNotFound(w, "Match not found")
		return
	}
	if err := s.SelectTitan(r.Context(), req.PlayerUUID, req.TitanID); err != nil {
		h.writeMatchError(w, err)
		return
	}
	sharedapi.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// SubmitAction handles POST /matches/{matchId}/actions.
func (h *ArenaHandler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]

	var req SubmitActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sharedapi.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.PlayerUUID == "" {
		sharedapi.WriteBadRequest(w, "playerUuid is required")
		return
	}
	kind := models.ActionKind(req.Action)
	switch kind {
	case models.ActionAttack, models.ActionDefend, models.ActionSpecial, models.ActionItem:
	default:
		sharedapi.WriteBadRequest(w, "Unknown action kind")
		return
	}

	s, err := h.registry.GetSession(matchID)
	if err != nil {
		sharedapi.WriteNotFound(w, "Match not found")
		return
	}
	if err := s.SubmitAction(r.Context(), req.PlayerUUID, kind, req.ItemID); err != nil {
		h.writeMatchError(w, err)
		return
	}
	sharedapi.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// Surrender handles POST /matches/{matchId}/surrender.
func (h *ArenaHandler) Surrender(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]

	var req SurrenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sharedapi.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.PlayerUUID == "" {
		sharedapi.WriteBadRequest(w, "playerUuid is required")
		return
	}

	s, err := h.registry.GetSession(matchID)
	if err != nil {
		sharedapi.WriteNotFound(w, "Match not found")
		return
	}
	if err := s.Surrender(r.Context(), req.PlayerUUID); err != nil {
		h.writeMatchError(w, err)
		return
	}
	sharedapi.WriteJSON(w, http.StatusOK, s.Snapshot())
}

func (h *ArenaHandler) writeQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrAlreadyQueued), errors.Is(err, queue.ErrAlreadyInMatch):
		sharedapi.WriteConflict(w, err.Error())
	case errors.Is(err, queue.ErrNotInQueue):
		sharedapi.WriteNotFound(w, err.Error())
	default:
		h.logger.Error().Err(err).Msg("Queue operation failed")
		sharedapi.WriteInternalServerError(w, "Queue operation failed")
	}
}

func (h *ArenaHandler) writeMatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, match.ErrMatchNotFound):
		sharedapi.WriteNotFound(w, err.Error())
	case errors.Is(err, match.ErrNotYourMatch):
		sharedapi.WriteForbidden(w, err.Error())
	case errors.Is(err, match.ErrInvalidState),
		errors.Is(err, match.ErrTitanAlreadySelected),
		errors.Is(err, match.ErrActionAlreadySubmitted):
		sharedapi.WriteConflict(w, err.Error())
	case errors.Is(err, match.ErrInvalidAction), errors.Is(err, match.ErrInvalidTitan):
		sharedapi.WriteBadRequest(w, err.Error())
	default:
		h.logger.Error().Err(err).Msg("Match operation failed")
		sharedapi.WriteInternalServerError(w, "Match operation failed")
	}
}
