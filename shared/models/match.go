// shared/models/match.go
package models

import "time"

// MatchState is the lifecycle state of a match session.
type MatchState string

const (
	MatchAwaitingTitanSelection MatchState = "AWAITING_TITAN_SELECTION"
	MatchActive                 MatchState = "ACTIVE"
	MatchCompleted              MatchState = "COMPLETED"
	MatchCancelled              MatchState = "CANCELLED"
)

// Terminal reports whether the state admits no further transitions.
func (s MatchState) Terminal() bool {
	return s == MatchCompleted || s == MatchCancelled
}

// ActionKind is the closed set of combat actions a player may submit.
type ActionKind string

const (
	ActionAttack  ActionKind = "ATTACK"
	ActionDefend  ActionKind = "DEFEND"
	ActionSpecial ActionKind = "SPECIAL"
	ActionItem    ActionKind = "ITEM"
)

// EndReason records why a match reached a terminal state.
type EndReason string

const (
	EndKnockout    EndReason = "KNOCKOUT"     // A titan's HP reached zero
	EndDoubleKO    EndReason = "DOUBLE_KO"    // Both titans dropped in the same round
	EndRoundCap    EndReason = "ROUND_CAP"    // Hard round limit, decided on HP fraction
	EndSurrender   EndReason = "SURRENDER"
	EndForfeit     EndReason = "FORFEIT"      // Consecutive missed submissions
	EndSelectLapse EndReason = "SELECT_LAPSE" // Titan selection deadline elapsed (cancelled)
)

// PlayedAction is one player's action for a round as it was resolved,
// including a Defend substituted on a missed deadline.
type PlayedAction struct {
	PlayerID  string     `bson:"player_id" json:"playerId"`
	Kind      ActionKind `bson:"kind" json:"kind"`
	ItemID    string     `bson:"item_id,omitempty" json:"itemId,omitempty"`
	Defaulted bool       `bson:"defaulted,omitempty" json:"defaulted,omitempty"`
}

// TurnRecord is one immutable entry of the match's turn log: both actions,
// the acting order, computed damage and resulting HP. The log is the sole
// source of truth for replay and dispute review.
type TurnRecord struct {
	Round      int            `bson:"round" json:"round"`
	Actions    []PlayedAction `bson:"actions" json:"actions"`
	ActedOrder []string       `bson:"acted_order" json:"actedOrder"` // Player ids, first actor first
	Damage     map[string]int `bson:"damage" json:"damage"`          // Damage taken per player id
	HPAfter    map[string]int `bson:"hp_after" json:"hpAfter"`       // Resulting HP per player id
}

// PlayerMatchState is one side of a match as exposed in snapshots.
type PlayerMatchState struct {
	PlayerID     string  `json:"playerId"`
	Rating       float64 `json:"rating"`
	TitanSetID   string  `json:"titanSetId"`
	TitanID      string  `json:"titanId,omitempty"`
	HP           int     `json:"hp"`
	MaxHP        int     `json:"maxHp"`
	SpecialReady bool    `json:"specialReady"` // Special move is off cooldown
	ItemUsed     bool    `json:"itemUsed"`
	MissedRounds int     `json:"missedRounds"` // Consecutive deadline defaults
}

// MatchSnapshot is a point-in-time copy of a match, safe to hand to callers
// and to cache in Redis. It never aliases live session state.
type MatchSnapshot struct {
	MatchID   string             `json:"matchId"`
	SeasonID  string             `json:"seasonId,omitempty"`
	State     MatchState         `json:"state"`
	Round     int                `json:"round"`
	Deadline  time.Time          `json:"deadline,omitempty"`
	Players   []PlayerMatchState `json:"players"`
	Turns     []TurnRecord       `json:"turns"`
	WinnerID  string             `json:"winnerId,omitempty"`
	EndReason EndReason          `json:"endReason,omitempty"`
	StartedAt time.Time          `json:"startedAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// MatchRecord is the durable archive row for a finished match. The match id
// doubles as the Mongo _id, which makes settlement submission idempotent.
type MatchRecord struct {
	MatchID      string             `bson:"_id" json:"matchId"`
	SeasonID     string             `bson:"season_id" json:"seasonId"`
	PlayerIDs    []string           `bson:"player_ids" json:"playerIds"`
	TitanIDs     map[string]string  `bson:"titan_ids" json:"titanIds"` // player id -> titan id
	State        MatchState         `bson:"state" json:"state"`
	WinnerID     string             `bson:"winner_id,omitempty" json:"winnerId,omitempty"` // Empty on draw or cancel
	Draw         bool               `bson:"draw" json:"draw"`
	EndReason    EndReason          `bson:"end_reason" json:"endReason"`
	Rounds       int                `bson:"rounds" json:"rounds"`
	RatingDeltas map[string]float64 `bson:"rating_deltas,omitempty" json:"ratingDeltas,omitempty"`
	Turns        []TurnRecord       `bson:"turns" json:"turns"`
	StartedAt    time.Time          `bson:"started_at" json:"startedAt"`
	EndedAt      time.Time          `bson:"ended_at" json:"endedAt"`
}
