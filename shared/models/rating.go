// shared/models/rating.go
package models

import "time"

// PlayerRating is one player's skill row for one season, stored persistently
// in MongoDB. A row is mutated exactly once per completed match.
type PlayerRating struct {
	PlayerID    string     `bson:"player_id" json:"playerId"`
	SeasonID    string     `bson:"season_id" json:"seasonId"`
	Rating      float64    `bson:"rating" json:"rating"`
	GamesPlayed int        `bson:"games_played" json:"gamesPlayed"`
	Wins        int        `bson:"wins" json:"wins"`
	Losses      int        `bson:"losses" json:"losses"`
	Draws       int        `bson:"draws" json:"draws"`
	UpdatedAt   *time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// SeasonStatus is the lifecycle state of a rating season.
type SeasonStatus string

const (
	SeasonOpen   SeasonStatus = "OPEN"
	SeasonClosed SeasonStatus = "CLOSED"
)

// Season bounds the period over which ratings accumulate. Exactly one season
// is open at a time; closing a season freezes its rows for snapshotting.
type Season struct {
	ID        string       `bson:"_id" json:"id"`
	Status    SeasonStatus `bson:"status" json:"status"`
	StartedAt time.Time    `bson:"started_at" json:"startedAt"`
	EndsAt    time.Time    `bson:"ends_at" json:"endsAt"`
	ClosedAt  *time.Time   `bson:"closed_at,omitempty" json:"closedAt,omitempty"`
}
