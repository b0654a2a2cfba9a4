// arena/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	sharedredis "github.com/TitanForge/ARENA-SERVICES/shared/redis"
)

// Publisher fans match events out to spectating consumers. Publishing is
// best-effort; a dropped event never blocks match progression.
type Publisher interface {
	Publish(ctx context.Context, matchID, eventType string, payload interface{})
}

// RedisPublisher publishes every event to the firehose channel and to the
// per-match channel so a client can subscribe to just its own match.
type RedisPublisher struct {
	client *redis.ClusterClient
	logger zerolog.Logger
}

// NewRedisPublisher creates a Publisher over the given Redis cluster client.
func NewRedisPublisher(client *redis.ClusterClient, logger zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Publish marshals the envelope and pushes it to both channels. Failures are
// logged and swallowed.
func (p *RedisPublisher) Publish(ctx context.Context, matchID, eventType string, payload interface{}) {
	env := Envelope{
		Type:      eventType,
		MatchID:   matchID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error().Err(err).Str("type", eventType).Msg("Failed to marshal event")
		return
	}

	channels := []string{
		sharedredis.EventsFirehoseChannel,
		fmt.Sprintf(sharedredis.MatchEventChannelPrefix, matchID),
	}
	for _, ch := range channels {
		if err := p.client.Publish(ctx, ch, data).Err(); err != nil {
			p.logger.Warn().Err(err).Str("channel", ch).Str("type", eventType).Msg("Failed to publish event")
		}
	}
}

// NopPublisher discards all events. Used in tests and when eventing is off.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, matchID, eventType string, payload interface{}) {}
