// shared/redis/constants.go
package redis

import "errors"

const (
	// Key constants for arena presence and live match data. The hash tags
	// keep per-player keys on one cluster slot.
	QueuedKeyPrefix   = "arena:queued:{%s}"  // player id -> titan set, set while waiting in the queue
	InMatchKeyPrefix  = "arena:inmatch:{%s}" // player id -> match id, set while a match is live
	SnapshotKeyPrefix = "arena:match:{%s}"   // match id -> latest snapshot JSON

	// Pub/sub channels for the event publisher. The firehose carries every
	// event; the per-match channel carries only that match's events.
	EventsFirehoseChannel   = "arena:events"
	MatchEventChannelPrefix = "arena:events:%s" // match id
)

// ErrRedisKeyNotFound is returned by stores when a looked-up key is absent.
var ErrRedisKeyNotFound = errors.New("redis key not found")
