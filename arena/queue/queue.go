// arena/queue/queue.go
package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sentinel errors exposed to the API layer.
var (
	ErrAlreadyQueued  = errors.New("player already in queue")
	ErrNotInQueue     = errors.New("player not in queue")
	ErrAlreadyInMatch = errors.New("player already in a live match")
)

// matchmakerEntity is the consistent-hash key for pass leadership. With one
// well-known key, exactly one arena instance runs the matching pass at a time.
const matchmakerEntity = "matchmaker"

// Config holds the matchmaking knobs. The admissible rating window starts at
// WindowBase and widens linearly with wait time until WindowMax.
type Config struct {
	PassInterval       time.Duration
	WindowBase         float64
	WindowMax          float64
	WindowGrowthPerSec float64
}

// Ticket is one player waiting in the queue, with the rating standing
// captured at enqueue time.
type Ticket struct {
	PlayerID    string
	TitanSetID  string
	Rating      float64
	GamesPlayed int
	EnqueuedAt  time.Time
}

// MatchStarter turns an admissible pair into a live match.
type MatchStarter interface {
	StartMatch(ctx context.Context, a, b Ticket) error
}

// Ownership decides whether this instance currently leads the matching pass.
type Ownership interface {
	IsResponsible(entityID string) (bool, error)
}

// LiveMatchChecker guards enqueue against players already fighting.
type LiveMatchChecker interface {
	HasLiveMatch(playerID string) bool
}

// Presence mirrors queue membership into the shared presence store.
type Presence interface {
	MarkQueued(ctx context.Context, playerUUID string, enqueuedAt time.Time) error
	ClearQueued(ctx context.Context, playerUUID string) error
}

// Manager holds the waiting tickets and runs the periodic matching pass.
// Tickets live in process memory; the presence store only mirrors membership
// for other services to observe. A paired player stays reserved in inflight
// until their match start settles, so the window between ticket removal and
// the registry binding the players never admits a re-enqueue.
type Manager struct {
	mu       sync.Mutex
	tickets  map[string]*Ticket
	inflight map[string]struct{}

	cfg       Config
	starter   MatchStarter
	ownership Ownership
	live      LiveMatchChecker
	presence  Presence
	logger    zerolog.Logger
}

// NewManager creates an empty queue Manager.
func NewManager(cfg Config, starter MatchStarter, ownership Ownership, live LiveMatchChecker, presence Presence, logger zerolog.Logger) *Manager {
	return &Manager{
		tickets:   make(map[string]*Ticket),
		inflight:  make(map[string]struct{}),
		cfg:       cfg,
		starter:   starter,
		ownership: ownership,
		live:      live,
		presence:  presence,
		logger:    logger.With().Str("component", "queue").Logger(),
	}
}

// Enqueue adds a player to the queue. A player can hold at most one ticket
// and cannot queue while bound to a live match.
func (m *Manager) Enqueue(ctx context.Context, playerID, titanSetID string, ratingValue float64, gamesPlayed int) error {
	if m.live.HasLiveMatch(playerID) {
		return fmt.Errorf("player %s: %w", playerID, ErrAlreadyInMatch)
	}

	m.mu.Lock()
	if _, ok := m.tickets[playerID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("player %s: %w", playerID, ErrAlreadyQueued)
	}
	if _, ok := m.inflight[playerID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("player %s: %w", playerID, ErrAlreadyQueued)
	}
	t := &Ticket{
		PlayerID:    playerID,
		TitanSetID:  titanSetID,
		Rating:      ratingValue,
		GamesPlayed: gamesPlayed,
		EnqueuedAt:  time.Now().UTC(),
	}
	m.tickets[playerID] = t
	m.mu.Unlock()

	if err := m.presence.MarkQueued(ctx, playerID, t.EnqueuedAt); err != nil {
		m.logger.Warn().Err(err).Str("player", playerID).Msg("Failed to mirror queued presence")
	}
	m.logger.Debug().Str("player", playerID).Float64("rating", ratingValue).Msg("Player enqueued")
	return nil
}

// Leave removes a player's ticket before a match is found.
func (m *Manager) Leave(ctx context.Context, playerID string) error {
	m.mu.Lock()
	_, ok := m.tickets[playerID]
	if ok {
		delete(m.tickets, playerID)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("player %s: %w", playerID, ErrNotInQueue)
	}
	if err := m.presence.ClearQueued(ctx, playerID); err != nil {
		m.logger.Warn().Err(err).Str("player", playerID).Msg("Failed to clear queued presence")
	}
	m.logger.Debug().Str("player", playerID).Msg("Player left queue")
	return nil
}

// IsQueued reports whether the player currently holds a ticket.
func (m *Manager) IsQueued(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tickets[playerID]
	return ok
}

// Size returns the number of waiting tickets.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickets)
}

// Run drives the matching pass until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PassInterval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.cfg.PassInterval).Msg("Matching pass loop started")
	for {
		select {
		case <-ticker.C:
			m.RunPass(ctx)
		case <-ctx.Done():
			m.logger.Info().Msg("Matching pass loop stopping")
			return
		}
	}
}

// RunPass executes one matching pass if this instance owns the matchmaker
// role. Pairs are taken oldest-first; the anchor's window widens with its
// wait time, and a pair is admissible when the candidate's rating falls
// inside it.
func (m *Manager) RunPass(ctx context.Context) {
	responsible, err := m.ownership.IsResponsible(matchmakerEntity)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Could not determine matchmaker ownership, skipping pass")
		return
	}
	if !responsible {
		return
	}

	now := time.Now()
	for {
		a, b, ok := m.takePair(now)
		if !ok {
			return
		}
		// A failed start requeues the pair; ending the pass here keeps it
		// from being re-taken in the same loop.
		if !m.startPair(ctx, a, b) {
			return
		}
	}
}

// takePair finds and atomically removes one admissible pair. The oldest
// waiter anchors the search and takes the first admissible candidate in
// wait-time order, so long waits always win the tie.
func (m *Manager) takePair(now time.Time) (Ticket, Ticket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tickets) < 2 {
		return Ticket{}, Ticket{}, false
	}

	waiting := make([]*Ticket, 0, len(m.tickets))
	for _, t := range m.tickets {
		waiting = append(waiting, t)
	}
	sort.Slice(waiting, func(i, j int) bool {
		return waiting[i].EnqueuedAt.Before(waiting[j].EnqueuedAt)
	})

	for i, anchor := range waiting {
		window := m.windowAt(now, anchor.EnqueuedAt)
		for _, cand := range waiting[i+1:] {
			if math.Abs(anchor.Rating-cand.Rating) > window {
				continue
			}
			delete(m.tickets, anchor.PlayerID)
			delete(m.tickets, cand.PlayerID)
			m.inflight[anchor.PlayerID] = struct{}{}
			m.inflight[cand.PlayerID] = struct{}{}
			return *anchor, *cand, true
		}
	}
	return Ticket{}, Ticket{}, false
}

func (m *Manager) startPair(ctx context.Context, a, b Ticket) bool {
	for _, t := range []Ticket{a, b} {
		if err := m.presence.ClearQueued(ctx, t.PlayerID); err != nil {
			m.logger.Warn().Err(err).Str("player", t.PlayerID).Msg("Failed to clear queued presence")
		}
	}

	if err := m.starter.StartMatch(ctx, a, b); err != nil {
		m.logger.Error().Err(err).
			Str("player_a", a.PlayerID).
			Str("player_b", b.PlayerID).
			Msg("Failed to start match, requeueing pair")
		m.requeue(ctx, a)
		m.requeue(ctx, b)
		return false
	}

	// The registry has bound the players; the live-match gate takes over
	// from the inflight reservation.
	m.mu.Lock()
	delete(m.inflight, a.PlayerID)
	delete(m.inflight, b.PlayerID)
	m.mu.Unlock()

	m.logger.Info().
		Str("player_a", a.PlayerID).
		Str("player_b", b.PlayerID).
		Float64("gap", math.Abs(a.Rating-b.Rating)).
		Msg("Pair matched")
	return true
}

// requeue puts a ticket back with its original enqueue time so the player
// keeps their accumulated window, releasing the inflight reservation in the
// same critical section.
func (m *Manager) requeue(ctx context.Context, t Ticket) {
	m.mu.Lock()
	delete(m.inflight, t.PlayerID)
	if _, ok := m.tickets[t.PlayerID]; !ok {
		copied := t
		m.tickets[t.PlayerID] = &copied
	}
	m.mu.Unlock()
	if err := m.presence.MarkQueued(ctx, t.PlayerID, t.EnqueuedAt); err != nil {
		m.logger.Warn().Err(err).Str("player", t.PlayerID).Msg("Failed to mirror queued presence")
	}
}

// windowAt returns the admissible rating distance for a ticket enqueued at
// the given time.
func (m *Manager) windowAt(now, enqueuedAt time.Time) float64 {
	waited := now.Sub(enqueuedAt).Seconds()
	if waited < 0 {
		waited = 0
	}
	w := m.cfg.WindowBase + waited*m.cfg.WindowGrowthPerSec
	if w > m.cfg.WindowMax {
		w = m.cfg.WindowMax
	}
	return w
}
