// shared/registry/client.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RegistryClient reads the registry. It is separate from ServiceRegistrar so
// that any service can query for active instances of another type.
type RegistryClient struct {
	redisClient    *redis.ClusterClient
	serviceTimeout time.Duration
	logger         zerolog.Logger
}

// NewRegistryClient takes an already initialized *redis.ClusterClient. The
// serviceTimeout should match the registrar's heartbeat TTL.
func NewRegistryClient(redisClient *redis.ClusterClient, serviceTimeout time.Duration, logger zerolog.Logger) *RegistryClient {
	return &RegistryClient{
		redisClient:    redisClient,
		serviceTimeout: serviceTimeout,
		logger:         logger.With().Str("component", "registry-client").Logger(),
	}
}

// GetActiveServices retrieves a map of active service instances for a given
// service type, keyed by instance id. Entries older than the service timeout
// are filtered out; the registrar's cleanup loop deletes them eventually.
func (rc *RegistryClient) GetActiveServices(ctx context.Context, serviceType string) (map[string]ServiceInfo, error) {
	key := fmt.Sprintf("%s%s", RedisRegistryHashPrefix, serviceType)
	results, err := rc.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get all services of type %s from Redis: %w", serviceType, err)
	}

	activeServices := make(map[string]ServiceInfo)
	now := time.Now()

	for instanceID, infoJSON := range results {
		var info ServiceInfo
		if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
			rc.logger.Warn().Err(err).Str("entry", instanceID).Str("type", serviceType).Msg("skipping unreadable registry entry")
			continue
		}
		if now.Sub(time.UnixMilli(info.LastSeen)) <= rc.serviceTimeout {
			activeServices[instanceID] = info
		}
	}
	return activeServices, nil
}
