// arena/rating/elo.go
package rating

import "math"

// Config holds the rating constants. Players below ProvisionalGames use the
// larger provisional K so new accounts converge quickly.
type Config struct {
	KBase            float64
	KProvisional     float64
	ProvisionalGames int
}

// DefaultConfig returns the live rating constants.
func DefaultConfig() Config {
	return Config{
		KBase:            32,
		KProvisional:     64,
		ProvisionalGames: 10,
	}
}

// Standing is a player's rating state going into a settlement.
type Standing struct {
	Rating      float64
	GamesPlayed int
}

// Engine computes rating deltas. It is pure math with no storage side.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine with the given constants.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Expected returns the expected score of a player rated ra against rb.
func Expected(ra, rb float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (rb-ra)/400.0))
}

// Settle returns the rating deltas for both players. scoreA is 1 for a win
// by A, 0 for a loss, 0.5 for a draw. Deltas are zero-sum only when both
// players share the same K factor; a provisional player moves faster than
// their opponent, which is intended.
func (e *Engine) Settle(a, b Standing, scoreA float64) (deltaA, deltaB float64) {
	expectedA := Expected(a.Rating, b.Rating)
	deltaA = e.kFor(a) * (scoreA - expectedA)
	deltaB = e.kFor(b) * ((1 - scoreA) - (1 - expectedA))
	return deltaA, deltaB
}

func (e *Engine) kFor(s Standing) float64 {
	if s.GamesPlayed < e.cfg.ProvisionalGames {
		return e.cfg.KProvisional
	}
	return e.cfg.KBase
}
