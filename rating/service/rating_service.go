// rating/service/rating_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/TitanForge/ARENA-SERVICES/rating/store"
	"github.com/TitanForge/ARENA-SERVICES/shared/models"
)

// Sentinel errors exposed to the API layer.
var (
	ErrMatchAlreadyRecorded = errors.New("match result already recorded")
	ErrMatchNotFound        = errors.New("match not found")
	ErrInvalidMatchRecord   = errors.New("match record is invalid")
)

// RatingService owns seasons, rating rows and the match archive. The match
// archive doubles as the settlement ledger: a result is applied to rating
// rows only after its record lands, and the record's unique ID rejects every
// replay.
type RatingService struct {
	ratings *store.RatingStore
	seasons *store.SeasonStore
	matches *store.MatchStore

	baseRating   float64
	seasonLength time.Duration
	logger       zerolog.Logger
}

// NewRatingService creates the rating service business logic.
func NewRatingService(ratings *store.RatingStore, seasons *store.SeasonStore, matches *store.MatchStore, baseRating float64, seasonLength time.Duration, logger zerolog.Logger) *RatingService {
	return &RatingService{
		ratings:      ratings,
		seasons:      seasons,
		matches:      matches,
		baseRating:   baseRating,
		seasonLength: seasonLength,
		logger:       logger.With().Str("component", "rating-service").Logger(),
	}
}

// GetCurrentSeason returns the open season, bootstrapping the very first one
// when none exists yet.
func (rs *RatingService) GetCurrentSeason(ctx context.Context) (*models.Season, error) {
	season, err := rs.seasons.GetOpenSeason(ctx)
	if err == nil {
		return season, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to look up open season: %w", err)
	}
	return rs.openSeason(ctx)
}

// RolloverSeason closes the open season and opens the next one. Rows of the
// closed season stay frozen in place; fresh rows start at the base rating on
// first touch of the new season.
func (rs *RatingService) RolloverSeason(ctx context.Context) (*models.Season, error) {
	current, err := rs.seasons.GetOpenSeason(ctx)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to look up open season: %w", err)
	}
	if err == nil {
		if err := rs.seasons.CloseSeason(ctx, current.ID); err != nil {
			return nil, err
		}
		rs.logger.Info().Str("season", current.ID).Msg("Season closed")
	}
	return rs.openSeason(ctx)
}

func (rs *RatingService) openSeason(ctx context.Context) (*models.Season, error) {
	now := time.Now().UTC()
	season := &models.Season{
		ID:        uuid.NewString(),
		Status:    models.SeasonOpen,
		StartedAt: now,
		EndsAt:    now.Add(rs.seasonLength),
	}
	if err := rs.seasons.CreateSeason(ctx, season); err != nil {
		return nil, err
	}
	rs.logger.Info().Str("season", season.ID).Time("endsAt", season.EndsAt).Msg("Season opened")
	return season, nil
}

// GetOrCreateRating returns the player's row for the current season, seeding
// it at the base rating on first contact.
func (rs *RatingService) GetOrCreateRating(ctx context.Context, playerID string) (*models.PlayerRating, error) {
	season, err := rs.GetCurrentSeason(ctx)
	if err != nil {
		return nil, err
	}
	return rs.ratings.EnsureRating(ctx, playerID, season.ID, rs.baseRating)
}

// RecordMatch archives a finished match and, for completed ones, applies its
// rating deltas. Cancelled matches are archived without touching any rating
// row, so a lapsed selection still leaves a durable trace. The archive insert
// is the idempotency gate: a duplicate match ID means the deltas were already
// applied, and nothing is touched twice.
func (rs *RatingService) RecordMatch(ctx context.Context, record *models.MatchRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	if err := rs.matches.InsertMatch(ctx, record); err != nil {
		if errors.Is(err, store.ErrDuplicateMatch) {
			return fmt.Errorf("match %s: %w", record.MatchID, ErrMatchAlreadyRecorded)
		}
		return err
	}

	if record.State == models.MatchCancelled {
		rs.logger.Info().
			Str("matchId", record.MatchID).
			Str("reason", string(record.EndReason)).
			Msg("Cancelled match archived")
		return nil
	}

	for _, playerID := range record.PlayerIDs {
		// Rows must exist before $inc can land.
		if _, err := rs.ratings.EnsureRating(ctx, playerID, record.SeasonID, rs.baseRating); err != nil {
			return err
		}

		var wins, losses, draws int
		switch {
		case record.Draw:
			draws = 1
		case record.WinnerID == playerID:
			wins = 1
		default:
			losses = 1
		}
		delta := record.RatingDeltas[playerID]
		if err := rs.ratings.ApplyResult(ctx, playerID, record.SeasonID, delta, wins, losses, draws); err != nil {
			return err
		}
	}

	rs.logger.Info().
		Str("matchId", record.MatchID).
		Str("winner", record.WinnerID).
		Bool("draw", record.Draw).
		Msg("Match result recorded")
	return nil
}

// GetMatch returns an archived match.
func (rs *RatingService) GetMatch(ctx context.Context, matchID string) (*models.MatchRecord, error) {
	record, err := rs.matches.GetMatch(ctx, matchID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrMatchNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}
	return record, nil
}

// GetPlayerMatches returns a player's archived matches, newest first.
func (rs *RatingService) GetPlayerMatches(ctx context.Context, playerID string, limit int64) ([]models.MatchRecord, error) {
	return rs.matches.ListPlayerMatches(ctx, playerID, limit)
}

// GetLeaderboard returns the current season's top rows.
func (rs *RatingService) GetLeaderboard(ctx context.Context, limit int64) ([]models.PlayerRating, error) {
	season, err := rs.GetCurrentSeason(ctx)
	if err != nil {
		return nil, err
	}
	return rs.ratings.GetLeaderboard(ctx, season.ID, limit)
}

// RunSeasonRoller rolls the open season over once it passes its end date.
// Checks are cheap, so a short interval is fine.
func (rs *RatingService) RunSeasonRoller(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rs.logger.Info().Dur("interval", interval).Msg("Season roller started")
	for {
		select {
		case <-ticker.C:
			rs.rollIfExpired(ctx)
		case <-ctx.Done():
			rs.logger.Info().Msg("Season roller stopping")
			return
		}
	}
}

func (rs *RatingService) rollIfExpired(ctx context.Context) {
	season, err := rs.seasons.GetOpenSeason(ctx)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			rs.logger.Warn().Err(err).Msg("Season roller could not load open season")
		}
		return
	}
	if time.Now().Before(season.EndsAt) {
		return
	}
	if _, err := rs.RolloverSeason(ctx); err != nil {
		rs.logger.Error().Err(err).Str("season", season.ID).Msg("Season rollover failed")
	}
}

func validateRecord(record *models.MatchRecord) error {
	switch {
	case record.MatchID == "":
		return fmt.Errorf("missing match id: %w", ErrInvalidMatchRecord)
	case record.SeasonID == "":
		return fmt.Errorf("missing season id: %w", ErrInvalidMatchRecord)
	case len(record.PlayerIDs) != 2:
		return fmt.Errorf("expected exactly two players, got %d: %w", len(record.PlayerIDs), ErrInvalidMatchRecord)
	case record.State != models.MatchCompleted && record.State != models.MatchCancelled:
		return fmt.Errorf("only finished matches are recorded, got state %s: %w", record.State, ErrInvalidMatchRecord)
	case record.State == models.MatchCompleted && !record.Draw && record.WinnerID == "":
		return fmt.Errorf("non-draw result needs a winner: %w", ErrInvalidMatchRecord)
	}
	return nil
}
