// shared/service/ratingclient.go
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/TitanForge/ARENA-SERVICES/shared/api"
	"github.com/TitanForge/ARENA-SERVICES/shared/models"
)

// ErrMatchAlreadySettled is returned when a match record was already
// submitted; the rating rows were not touched a second time.
var ErrMatchAlreadySettled = errors.New("match already settled")

// RatingServiceClient is a client for the Rating Service. The arena uses it
// as its Rating Store and Match Repository collaborators.
type RatingServiceClient struct {
	apiClient *api.Client
}

// NewRatingClient creates a new Rating Service client from the service's
// base URL.
func NewRatingClient(baseURL string) *RatingServiceClient {
	return &RatingServiceClient{
		apiClient: api.NewClient(baseURL, api.NewDefaultHTTPClient()),
	}
}

// GetCurrentSeason returns the currently open season.
func (rc *RatingServiceClient) GetCurrentSeason(ctx context.Context) (*models.Season, error) {
	var season models.Season
	if err := rc.apiClient.Get(ctx, "/seasons/current", &season); err != nil {
		return nil, fmt.Errorf("failed to fetch current season: %w", err)
	}
	return &season, nil
}

// GetRating returns the player's rating row for the open season. The rating
// service creates a fresh row at the configured base rating when absent, so
// this never 404s for a valid player id.
func (rc *RatingServiceClient) GetRating(ctx context.Context, playerID string) (*models.PlayerRating, error) {
	var rating models.PlayerRating
	path := fmt.Sprintf("/ratings/%s", playerID)
	if err := rc.apiClient.Get(ctx, path, &rating); err != nil {
		return nil, fmt.Errorf("failed to fetch rating for player %s: %w", playerID, err)
	}
	return &rating, nil
}

// SubmitMatchResult archives a finished match and applies its rating deltas
// in one call. A duplicate submission for the same match id returns
// ErrMatchAlreadySettled and leaves the rating rows untouched.
func (rc *RatingServiceClient) SubmitMatchResult(ctx context.Context, record *models.MatchRecord) error {
	err := rc.apiClient.Post(ctx, "/matches", record, nil)
	if err != nil {
		if errors.Is(err, api.ErrConflict) {
			return ErrMatchAlreadySettled
		}
		return fmt.Errorf("failed to submit match result %s: %w", record.MatchID, err)
	}
	return nil
}

// GetMatchRecord fetches an archived match by id.
func (rc *RatingServiceClient) GetMatchRecord(ctx context.Context, matchID string) (*models.MatchRecord, error) {
	var record models.MatchRecord
	path := fmt.Sprintf("/matches/%s", matchID)
	if err := rc.apiClient.Get(ctx, path, &record); err != nil {
		return nil, fmt.Errorf("failed to fetch match record %s: %w", matchID, err)
	}
	return &record, nil
}
