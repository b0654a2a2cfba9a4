// rating/store/match_store.go
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/TitanForge/ARENA-SERVICES/shared/models"
)

// ErrDuplicateMatch is returned when a match ID was already archived. The
// unique _id is what makes rating settlement exactly-once across retries.
var ErrDuplicateMatch = errors.New("match already archived")

// MatchStore is the MongoDB archive of settled matches.
type MatchStore struct {
	collection *mongo.Collection
}

// NewMatchStore creates a new MatchStore instance.
func NewMatchStore(collection *mongo.Collection) *MatchStore {
	return &MatchStore{collection: collection}
}

// InsertMatch archives a settled match. The match ID is the document _id, so
// a second insert of the same match fails with ErrDuplicateMatch.
func (ms *MatchStore) InsertMatch(ctx context.Context, record *models.MatchRecord) error {
	if _, err := ms.collection.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("match %s: %w", record.MatchID, ErrDuplicateMatch)
		}
		return fmt.Errorf("failed to archive match %s: %w", record.MatchID, err)
	}
	return nil
}

// GetMatch retrieves an archived match by ID. Returns mongo.ErrNoDocuments
// if the match was never archived.
func (ms *MatchStore) GetMatch(ctx context.Context, matchID string) (*models.MatchRecord, error) {
	var record models.MatchRecord
	if err := ms.collection.FindOne(ctx, bson.M{"_id": matchID}).Decode(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListPlayerMatches returns a player's archived matches, newest first.
func (ms *MatchStore) ListPlayerMatches(ctx context.Context, playerID string, limit int64) ([]models.MatchRecord, error) {
	filter := bson.M{"player_ids": playerID}
	opts := options.Find().SetSort(bson.D{{Key: "ended_at", Value: -1}}).SetLimit(limit)
	cursor, err := ms.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for player %s: %w", playerID, err)
	}
	defer cursor.Close(ctx)

	var records []models.MatchRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode matches for player %s: %w", playerID, err)
	}
	return records, nil
}
