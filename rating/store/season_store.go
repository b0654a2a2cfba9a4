// rating/store/season_store.go
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/TitanForge/ARENA-SERVICES/shared/models"
)

// SeasonStore is the MongoDB data store for rating seasons.
type SeasonStore struct {
	collection *mongo.Collection
}

// NewSeasonStore creates a new SeasonStore instance.
func NewSeasonStore(collection *mongo.Collection) *SeasonStore {
	return &SeasonStore{collection: collection}
}

// GetOpenSeason returns the currently open season. Returns
// mongo.ErrNoDocuments when no season is open.
func (ss *SeasonStore) GetOpenSeason(ctx context.Context) (*models.Season, error) {
	var season models.Season
	filter := bson.M{"status": models.SeasonOpen}
	if err := ss.collection.FindOne(ctx, filter).Decode(&season); err != nil {
		return nil, err
	}
	return &season, nil
}

// GetSeason retrieves a season by its ID.
func (ss *SeasonStore) GetSeason(ctx context.Context, seasonID string) (*models.Season, error) {
	var season models.Season
	if err := ss.collection.FindOne(ctx, bson.M{"_id": seasonID}).Decode(&season); err != nil {
		return nil, err
	}
	return &season, nil
}

// CreateSeason inserts a new season document.
func (ss *SeasonStore) CreateSeason(ctx context.Context, season *models.Season) error {
	if _, err := ss.collection.InsertOne(ctx, season); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("season %s already exists", season.ID)
		}
		return fmt.Errorf("failed to create season %s: %w", season.ID, err)
	}
	return nil
}

// CloseSeason marks an open season closed. Closing an already closed season
// matches nothing and returns an error.
func (ss *SeasonStore) CloseSeason(ctx context.Context, seasonID string) error {
	now := time.Now().UTC()
	filter := bson.M{"_id": seasonID, "status": models.SeasonOpen}
	update := bson.M{"$set": bson.M{"status": models.SeasonClosed, "closed_at": &now}}
	res, err := ss.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to close season %s: %w", seasonID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("season %s is not open", seasonID)
	}
	return nil
}
