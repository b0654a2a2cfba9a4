// rating/api/handler.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/TitanForge/ARENA-SERVICES/rating/service"
	sharedapi "github.com/TitanForge/ARENA-SERVICES/shared/api"
	"github.com/TitanForge/ARENA-SERVICES/shared/models"
)

const defaultListLimit = 50

// RatingHandler exposes seasons, rating rows and the match archive over HTTP.
type RatingHandler struct {
	ratingService *service.RatingService
	logger        zerolog.Logger
}

// NewRatingHandler creates the handler.
func NewRatingHandler(ratingService *service.RatingService, logger zerolog.Logger) *RatingHandler {
	return &RatingHandler{
		ratingService: ratingService,
		logger:        logger.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes registers all rating service endpoints on the given router.
func (h *RatingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/seasons/current", h.GetCurrentSeason).Methods(http.MethodGet)
	router.HandleFunc("/seasons/rollover", h.RolloverSeason).Methods(http.MethodPost)
	router.HandleFunc("/ratings/{uuid}", h.GetRating).Methods(http.MethodGet)
	router.HandleFunc("/leaderboard", h.GetLeaderboard).Methods(http.MethodGet)
	router.HandleFunc("/matches", h.RecordMatch).Methods(http.MethodPost)
	router.HandleFunc("/matches/{matchId}", h.GetMatch).Methods(http.MethodGet)
	router.HandleFunc("/players/{uuid}/matches", h.GetPlayerMatches).Methods(http.MethodGet)
}

// GetCurrentSeason handles GET /seasons/current.
func (h *RatingHandler) GetCurrentSeason(w http.ResponseWriter, r *http.Request) {
	season, err := h.ratingService.GetCurrentSeason(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to resolve current season")
		sharedapi.WriteInternalServerError(w, "Failed to resolve current season")
		return
	}
	sharedapi.WriteJSON(w, http.StatusOK, season)
}

// RolloverSeason handles POST /seasons/rollover.
func (h *RatingHandler) RolloverSeason(w http.ResponseWriter, r *http.Request) {
	season, err := h.ratingService.RolloverSeason(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Season rollover failed")
		sharedapi.WriteInternalServerError(w, "Season rollover failed")
		return
	}
	sharedapi.WriteJSON(w, http.StatusCreated, season)
}

// GetRating handles GET /ratings/{uuid}. A first-time player gets a fresh
// row at the base rating, so this endpoint never 404s.
func (h *RatingHandler) GetRating(w http.ResponseWriter, r *http.Request) {
	playerUUID := mux.Vars(r)["uuid"]

	row, err := h.ratingService.GetOrCreateRating(r.Context(), playerUUID)
	if err != nil {
		h.logger.Error().Err(err).Str("player", playerUUID).Msg("Failed to load rating row")
		sharedapi.WriteInternalServerError(w, "Failed to load rating")
		return
	}
	sharedapi.WriteJSON(w, http.StatusOK, row)
}

// GetLeaderboard handles GET /leaderboard?limit=N.
func (h *RatingHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultListLimit)
	rows, err := h.ratingService.GetLeaderboard(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load leaderboard")
		sharedapi.WriteInternalServerError(w, "Failed to load leaderboard")
		return
	}
	sharedapi.WriteJSON(w, http.StatusOK, rows)
}

// RecordMatch handles POST /matches. A replayed match ID answers 409 so the
// arena can treat the settlement as already done.
func (h *RatingHandler) RecordMatch(w http.ResponseWriter, r *http.Request) {
	var record models.MatchRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		sharedapi.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.ratingService.RecordMatch(r.Context(), &record); err != nil {
		switch {
		case errors.Is(err, service.ErrMatchAlreadyRecorded):
			sharedapi.WriteConflict(w, err.Error())
		case errors.Is(err, service.ErrInvalidMatchRecord):
			sharedapi.WriteBadRequest(w, err.Error())
		default:
			h.logger.Error().Err(err).Str("matchId", record.MatchID).Msg("Failed to record match")
			sharedapi.WriteInternalServerError(w, "Failed to record match")
		}
		return
	}
	sharedapi.WriteJSON(w, http.StatusCreated, record)
}

// GetMatch handles GET /matches/{matchId}.
func (h *RatingHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]

	record, err := h.ratingService.GetMatch(r.Context(), matchID)
	if err != nil {
		if errors.Is(err, service.ErrMatchNotFound) {
			sharedapi.WriteNotFound(w, "Match not found")
			return
		}
		h.logger.Error().Err(err).Str("matchId", matchID).Msg("Failed to load match")
		sharedapi.WriteInternalServerError(w, "Failed to load match")
		return
	}
	sharedapi.WriteJSON(w, http.StatusOK, record)
}

// GetPlayerMatches handles GET /players/{uuid}/matches?limit=N.
func (h *RatingHandler) GetPlayerMatches(w http.ResponseWriter, r *http.Request) {
	playerUUID := mux.Vars(r)["uuid"]

	records, err := h.ratingService.GetPlayerMatches(r.Context(), playerUUID, parseLimit(r, defaultListLimit))
	if err != nil {
		h.logger.Error().Err(err).Str("player", playerUUID).Msg("Failed to load player matches")
		sharedapi.WriteInternalServerError(w, "Failed to load player matches")
		return
	}
	sharedapi.WriteJSON(w, http.StatusOK, records)
}

func parseLimit(r *http.Request, fallback int64) int64 {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit < 1 {
		return fallback
	}
	return limit
}
