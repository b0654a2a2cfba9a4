// arena/events/events.go
package events

import (
	"time"

	"github.com/TitanForge/ARENA-SERVICES/shared/models"
)

// Event type discriminators carried in the envelope.
const (
	TypeMatchFound    = "MATCH_FOUND"
	TypeTitanSelected = "TITAN_SELECTED"
	TypeRoundResolved = "ROUND_RESOLVED"
	TypeMatchEnded    = "MATCH_ENDED"
)

// Envelope wraps every published event with its type, match and timestamp so
// spectating consumers can demux a single channel.
type Envelope struct {
	Type      string      `json:"type"`
	MatchID   string      `json:"matchId"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// MatchFound announces a fresh pairing leaving the queue.
type MatchFound struct {
	PlayerIDs []string `json:"playerIds"`
	SeasonID  string   `json:"seasonId"`
}

// TitanSelected announces one player locking their titan. LoadoutHidden
// consumers only learn the titan's identity, not its stats.
type TitanSelected struct {
	PlayerID string `json:"playerId"`
	TitanID  string `json:"titanId"`
}

// RoundResolved carries the full turn record for one resolved round.
type RoundResolved struct {
	Turn models.TurnRecord `json:"turn"`
}

// MatchEnded announces the terminal state of a match.
type MatchEnded struct {
	State        models.MatchState  `json:"state"`
	WinnerID     string             `json:"winnerId,omitempty"`
	EndReason    models.EndReason   `json:"endReason,omitempty"`
	Rounds       int                `json:"rounds"`
	RatingDeltas map[string]float64 `json:"ratingDeltas,omitempty"`
}
