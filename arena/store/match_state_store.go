// arena/store/match_state_store.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TitanForge/ARENA-SERVICES/shared/models"
	redisu "github.com/TitanForge/ARENA-SERVICES/shared/redis"
)

// MatchStateStore keeps the latest snapshot of each live match in Redis so
// reads (polling clients, reconnects, spectators) never contend with the
// session's own lock, and a restarted instance can serve terminal snapshots.
type MatchStateStore struct {
	client      *redis.ClusterClient
	snapshotTTL time.Duration
}

// NewMatchStateStore creates a MatchStateStore with the given snapshot TTL.
func NewMatchStateStore(client *redis.ClusterClient, snapshotTTL time.Duration) *MatchStateStore {
	return &MatchStateStore{
		client:      client,
		snapshotTTL: snapshotTTL,
	}
}

// SaveSnapshot overwrites the stored snapshot for its match.
func (ms *MatchStateStore) SaveSnapshot(ctx context.Context, snapshot *models.MatchSnapshot) error {
	key := fmt.Sprintf(redisu.SnapshotKeyPrefix, snapshot.MatchID)
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for match %s: %w", snapshot.MatchID, err)
	}
	if err := ms.client.Set(ctx, key, data, ms.snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot for match %s: %w", snapshot.MatchID, err)
	}
	return nil
}

// GetSnapshot returns the stored snapshot for a match. Returns
// redisu.ErrRedisKeyNotFound (wrapped) when none exists.
func (ms *MatchStateStore) GetSnapshot(ctx context.Context, matchID string) (*models.MatchSnapshot, error) {
	key := fmt.Sprintf(redisu.SnapshotKeyPrefix, matchID)
	data, err := ms.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("no snapshot for match %s: %w", matchID, redisu.ErrRedisKeyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot for match %s: %w", matchID, err)
	}

	var snapshot models.MatchSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("invalid snapshot payload for match %s: %w", matchID, err)
	}
	return &snapshot, nil
}

// DeleteSnapshot removes a match's snapshot before its TTL runs out.
func (ms *MatchStateStore) DeleteSnapshot(ctx context.Context, matchID string) error {
	key := fmt.Sprintf(redisu.SnapshotKeyPrefix, matchID)
	if err := ms.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot for match %s: %w", matchID, err)
	}
	return nil
}
