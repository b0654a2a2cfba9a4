// rating/store/rating_store.go
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/TitanForge/ARENA-SERVICES/shared/models"
)

// RatingStore is the MongoDB data store for per-season rating rows.
type RatingStore struct {
	collection *mongo.Collection
}

// NewRatingStore creates a new RatingStore instance.
func NewRatingStore(collection *mongo.Collection) *RatingStore {
	return &RatingStore{collection: collection}
}

// EnsureIndexes creates the unique (player, season) index. Safe to call on
// every startup.
func (rs *RatingStore) EnsureIndexes(ctx context.Context) error {
	_, err := rs.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "player_id", Value: 1}, {Key: "season_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create rating index: %w", err)
	}
	return nil
}

// EnsureRating returns the player's row for the season, creating it at the
// base rating on first touch. The upsert makes concurrent first touches safe.
func (rs *RatingStore) EnsureRating(ctx context.Context, playerID, seasonID string, baseRating float64) (*models.PlayerRating, error) {
	filter := bson.M{"player_id": playerID, "season_id": seasonID}
	update := bson.M{"$setOnInsert": bson.M{
		"player_id":    playerID,
		"season_id":    seasonID,
		"rating":       baseRating,
		"games_played": 0,
		"wins":         0,
		"losses":       0,
		"draws":        0,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var row models.PlayerRating
	if err := rs.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&row); err != nil {
		return nil, fmt.Errorf("failed to ensure rating row for player %s in season %s: %w", playerID, seasonID, err)
	}
	return &row, nil
}

// GetRating retrieves a player's row for the season. Returns
// mongo.ErrNoDocuments if the player has no row yet.
func (rs *RatingStore) GetRating(ctx context.Context, playerID, seasonID string) (*models.PlayerRating, error) {
	var row models.PlayerRating
	filter := bson.M{"player_id": playerID, "season_id": seasonID}
	if err := rs.collection.FindOne(ctx, filter).Decode(&row); err != nil {
		return nil, err
	}
	return &row, nil
}

// ApplyResult mutates one row for one settled match: the rating delta plus
// the game and outcome counters in a single atomic update.
func (rs *RatingStore) ApplyResult(ctx context.Context, playerID, seasonID string, delta float64, wins, losses, draws int) error {
	now := time.Now().UTC()
	filter := bson.M{"player_id": playerID, "season_id": seasonID}
	update := bson.M{
		"$inc": bson.M{
			"rating":       delta,
			"games_played": 1,
			"wins":         wins,
			"losses":       losses,
			"draws":        draws,
		},
		"$set": bson.M{"updated_at": &now},
	}
	res, err := rs.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to apply result for player %s in season %s: %w", playerID, seasonID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("no rating row for player %s in season %s", playerID, seasonID)
	}
	return nil
}

// GetLeaderboard returns the top rows of a season ordered by rating.
func (rs *RatingStore) GetLeaderboard(ctx context.Context, seasonID string, limit int64) ([]models.PlayerRating, error) {
	filter := bson.M{"season_id": seasonID}
	opts := options.Find().SetSort(bson.D{{Key: "rating", Value: -1}}).SetLimit(limit)
	cursor, err := rs.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard for season %s: %w", seasonID, err)
	}
	defer cursor.Close(ctx)

	var rows []models.PlayerRating
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode leaderboard for season %s: %w", seasonID, err)
	}
	return rows, nil
}
