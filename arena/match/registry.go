// arena/match/registry.go
package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TitanForge/ARENA-SERVICES/arena/events"
)

// Registry owns every live session on this arena instance and the index from
// player to match. Terminal sessions linger for a grace period so clients can
// still read the final snapshot, then a janitor loop reaps them.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	playerIndex map[string]string // playerID -> matchID

	cfg          Config
	deps         Deps
	terminalKeep time.Duration
	logger       zerolog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg Config, deps Deps, terminalKeep time.Duration, logger zerolog.Logger) *Registry {
	return &Registry{
		sessions:     make(map[string]*Session),
		playerIndex:  make(map[string]string),
		cfg:          cfg,
		deps:         deps,
		terminalKeep: terminalKeep,
		logger:       logger.With().Str("component", "match-registry").Logger(),
	}
}

// CreateMatch spins up a session for a fresh pairing, binds both players'
// presence to it and announces the match.
func (r *Registry) CreateMatch(ctx context.Context, seasonID string, a, b Participant) (*Session, error) {
	matchID := uuid.NewString()
	s := newSession(matchID, seasonID, a, b, r.cfg, r.deps)

	r.mu.Lock()
	r.sessions[matchID] = s
	r.playerIndex[a.PlayerID] = matchID
	r.playerIndex[b.PlayerID] = matchID
	r.mu.Unlock()

	for _, p := range []Participant{a, b} {
		if err := r.deps.Presence.MarkInMatch(ctx, p.PlayerID, matchID); err != nil {
			r.logger.Warn().Err(err).Str("player", p.PlayerID).Msg("Failed to mark match presence")
		}
	}

	r.deps.Events.Publish(ctx, matchID, events.TypeMatchFound, events.MatchFound{
		PlayerIDs: []string{a.PlayerID, b.PlayerID},
		SeasonID:  seasonID,
	})
	r.logger.Info().Str("matchId", matchID).Str("player_a", a.PlayerID).Str("player_b", b.PlayerID).Msg("Match created")

	s.persistInitialSnapshot(ctx)
	return s, nil
}

// GetSession returns the live session for a match ID.
func (r *Registry) GetSession(matchID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[matchID]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrMatchNotFound)
	}
	return s, nil
}

// GetSessionForPlayer returns the session a player is currently bound to.
func (r *Registry) GetSessionForPlayer(playerID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matchID, ok := r.playerIndex[playerID]
	if !ok {
		return nil, fmt.Errorf("player %s has no live match: %w", playerID, ErrMatchNotFound)
	}
	s, ok := r.sessions[matchID]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrMatchNotFound)
	}
	return s, nil
}

// HasLiveMatch reports whether the player is bound to a non-terminal session.
func (r *Registry) HasLiveMatch(playerID string) bool {
	s, err := r.GetSessionForPlayer(playerID)
	return err == nil && !s.Terminal()
}

// Run drives the janitor loop until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", interval).Msg("Session janitor started")
	for {
		select {
		case <-ticker.C:
			r.reapTerminal()
		case <-ctx.Done():
			r.logger.Info().Msg("Session janitor stopping")
			return
		}
	}
}

// reapTerminal drops terminal sessions whose grace period has passed.
func (r *Registry) reapTerminal() {
	cutoff := time.Now().Add(-r.terminalKeep)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if !s.Terminal() || s.UpdatedAt().After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		for _, playerID := range s.PlayerIDs() {
			if r.playerIndex[playerID] == id {
				delete(r.playerIndex, playerID)
			}
		}
		r.logger.Debug().Str("matchId", id).Msg("Reaped terminal session")
	}
}
