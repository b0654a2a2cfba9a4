// arena/match/session.go
package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TitanForge/ARENA-SERVICES/arena/battle"
	"github.com/TitanForge/ARENA-SERVICES/arena/events"
	"github.com/TitanForge/ARENA-SERVICES/arena/loadout"
	"github.com/TitanForge/ARENA-SERVICES/arena/rating"
	"github.com/TitanForge/ARENA-SERVICES/shared/models"
	"github.com/TitanForge/ARENA-SERVICES/shared/service"
)

// Sentinel errors exposed to the API layer.
var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrNotYourMatch           = errors.New("player is not a participant of this match")
	ErrInvalidState           = errors.New("operation is not valid in the match's current state")
	ErrTitanAlreadySelected   = errors.New("titan already selected")
	ErrActionAlreadySubmitted = errors.New("action already submitted for this round")
	ErrInvalidAction          = errors.New("action is not currently legal")
	ErrInvalidTitan           = errors.New("titan is not part of the player's selected set")
)

// Config holds the per-match timing and rule knobs.
type Config struct {
	SelectTimeout     time.Duration
	RoundTimeout      time.Duration
	MaxRounds         int
	MissForfeitAfter  int // consecutive missed rounds before a forfeit loss; 0 disables
	SettlementTimeout time.Duration
}

// RatingClient is the slice of the rating service a session needs.
type RatingClient interface {
	SubmitMatchResult(ctx context.Context, record *models.MatchRecord) error
}

// Presence is the slice of the presence store a session needs.
type Presence interface {
	MarkInMatch(ctx context.Context, playerUUID, matchID string) error
	ClearInMatch(ctx context.Context, playerUUID string) error
}

// SnapshotSink persists the latest snapshot of a match for lock-free reads.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, snapshot *models.MatchSnapshot) error
}

// Deps bundles everything a session calls out to.
type Deps struct {
	Resolver  *battle.Resolver
	Elo       *rating.Engine
	Rating    RatingClient
	Events    events.Publisher
	Presence  Presence
	Snapshots SnapshotSink
	Loadouts  loadout.Provider
	Logger    zerolog.Logger
}

// Participant describes one player entering a match, with the rating
// standing captured at pairing time.
type Participant struct {
	PlayerID    string
	TitanSetID  string
	Rating      float64
	GamesPlayed int
}

type playerSlot struct {
	id              string
	standing        rating.Standing
	titanSetID      string
	titanID         string
	loadout         *models.TitanLoadout
	hp              int
	specialCooldown int // rounds until the special is usable again
	itemUsed        bool
	missedRounds    int // consecutive rounds resolved with a defaulted action
	pending         *models.PlayedAction
}

// Session is the authoritative state machine for one live match. All state
// transitions happen under s.mu; expired deadlines fire through time.AfterFunc
// and re-check state under the lock, so a late timer is always a no-op.
type Session struct {
	mu sync.Mutex

	id       string
	seasonID string
	cfg      Config
	deps     Deps
	logger   zerolog.Logger

	state     models.MatchState
	round     int
	players   [2]*playerSlot
	turns     []models.TurnRecord
	deadline  time.Time
	timer     *time.Timer
	winnerID  string
	endReason models.EndReason
	draw      bool
	deltas    map[string]float64
	startedAt time.Time
	updatedAt time.Time
	settled   bool
}

// newSession is called by the Registry once a pairing leaves the queue.
func newSession(id, seasonID string, a, b Participant, cfg Config, deps Deps) *Session {
	now := time.Now().UTC()
	s := &Session{
		id:       id,
		seasonID: seasonID,
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.With().Str("matchId", id).Logger(),
		state:    models.MatchAwaitingTitanSelection,
		players: [2]*playerSlot{
			{id: a.PlayerID, standing: rating.Standing{Rating: a.Rating, GamesPlayed: a.GamesPlayed}, titanSetID: a.TitanSetID},
			{id: b.PlayerID, standing: rating.Standing{Rating: b.Rating, GamesPlayed: b.GamesPlayed}, titanSetID: b.TitanSetID},
		},
		startedAt: now,
		updatedAt: now,
	}
	s.armTimerLocked(cfg.SelectTimeout, s.onSelectDeadline)
	return s
}

// ID returns the match ID.
func (s *Session) ID() string { return s.id }

// PlayerIDs returns both participants.
func (s *Session) PlayerIDs() [2]string {
	return [2]string{s.players[0].id, s.players[1].id}
}

// SelectTitan locks a player's titan choice for this match. Once both sides
// have locked, the battle begins immediately.
func (s *Session) SelectTitan(ctx context.Context, playerID, titanID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.MatchAwaitingTitanSelection {
		return ErrInvalidState
	}
	slot := s.slotLocked(playerID)
	if slot == nil {
		return ErrNotYourMatch
	}
	if slot.loadout != nil {
		return ErrTitanAlreadySelected
	}

	ld, err := s.deps.Loadouts.GetTitan(ctx, slot.titanSetID, titanID)
	if err != nil {
		if errors.Is(err, loadout.ErrLoadoutNotFound) {
			return fmt.Errorf("titan %s: %w", titanID, ErrInvalidTitan)
		}
		return fmt.Errorf("failed to resolve titan %s for player %s: %w", titanID, playerID, err)
	}

	slot.titanID = titanID
	slot.loadout = ld
	slot.hp = ld.MaxHP
	s.touchLocked()

	s.deps.Events.Publish(ctx, s.id, events.TypeTitanSelected, events.TitanSelected{
		PlayerID: playerID,
		TitanID:  titanID,
	})

	if s.players[0].loadout != nil && s.players[1].loadout != nil {
		s.beginBattleLocked()
	}
	s.persistSnapshotLocked(ctx)
	return nil
}

// SubmitAction locks one player's action for the current round. When both
// actions are in, the round resolves synchronously on this call.
func (s *Session) SubmitAction(ctx context.Context, playerID string, kind models.ActionKind, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.MatchActive {
		return ErrInvalidState
	}
	slot := s.slotLocked(playerID)
	if slot == nil {
		return ErrNotYourMatch
	}
	if slot.pending != nil {
		return ErrActionAlreadySubmitted
	}
	if err := s.validateActionLocked(slot, kind, itemID); err != nil {
		return err
	}

	slot.pending = &models.PlayedAction{PlayerID: playerID, Kind: kind, ItemID: itemID}
	slot.missedRounds = 0
	s.touchLocked()

	if s.players[0].pending != nil && s.players[1].pending != nil {
		s.resolveRoundLocked(ctx)
	}
	s.persistSnapshotLocked(ctx)
	return nil
}

// Surrender ends the match immediately with the opponent as winner. Legal
// both during titan selection and mid-battle.
func (s *Session) Surrender(ctx context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return ErrInvalidState
	}
	slot := s.slotLocked(playerID)
	if slot == nil {
		return ErrNotYourMatch
	}

	s.completeLocked(ctx, s.opponentLocked(playerID).id, false, models.EndSurrender)
	s.persistSnapshotLocked(ctx)
	return nil
}

// Snapshot returns a point-in-time copy of the match for API reads.
func (s *Session) Snapshot() *models.MatchSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Terminal reports whether the session has reached a terminal state.
func (s *Session) Terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Terminal()
}

// UpdatedAt returns the time of the last state transition.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) validateActionLocked(slot *playerSlot, kind models.ActionKind, itemID string) error {
	switch kind {
	case models.ActionAttack, models.ActionDefend:
		return nil
	case models.ActionSpecial:
		if slot.specialCooldown > 0 {
			return fmt.Errorf("special move on cooldown for %d more rounds: %w", slot.specialCooldown, ErrInvalidAction)
		}
		return nil
	case models.ActionItem:
		if slot.itemUsed {
			return fmt.Errorf("item already used this match: %w", ErrInvalidAction)
		}
		if _, ok := s.deps.Resolver.Item(itemID); !ok {
			return fmt.Errorf("unknown item %q: %w", itemID, ErrInvalidAction)
		}
		return nil
	default:
		return fmt.Errorf("unknown action kind %q: %w", kind, ErrInvalidAction)
	}
}

func (s *Session) beginBattleLocked() {
	s.state = models.MatchActive
	s.round = 1
	s.armTimerLocked(s.cfg.RoundTimeout, s.onRoundDeadline)
	s.logger.Info().Str("player_a", s.players[0].id).Str("player_b", s.players[1].id).Msg("Battle started")
}

// resolveRoundLocked resolves exactly one round. Callers hold s.mu and have
// already ensured both pending actions are set.
func (s *Session) resolveRoundLocked(ctx context.Context) {
	if s.state != models.MatchActive {
		return
	}
	s.stopTimerLocked()

	a, b := s.players[0], s.players[1]
	if a.hp == 0 && b.hp == 0 {
		// Should be unreachable: termination runs right after every
		// resolution. Force a draw rather than leave the match stuck.
		s.logger.Error().Msg("Both titans at zero HP before resolution, forcing draw")
		s.completeLocked(ctx, "", true, models.EndDoubleKO)
		return
	}
	seed := battle.RoundSeed(s.id, s.round)
	outcome := s.deps.Resolver.ResolveRound(
		battle.Combatant{PlayerID: a.id, Loadout: a.loadout, HP: a.hp, Action: *a.pending},
		battle.Combatant{PlayerID: b.id, Loadout: b.loadout, HP: b.hp, Action: *b.pending},
		seed,
	)

	turn := models.TurnRecord{
		Round:      s.round,
		Actions:    []models.PlayedAction{*a.pending, *b.pending},
		ActedOrder: outcome.Order,
		Damage:     outcome.Damage,
		HPAfter:    outcome.HPAfter,
	}
	s.turns = append(s.turns, turn)

	for _, slot := range s.players {
		slot.hp = outcome.HPAfter[slot.id]
		if slot.specialCooldown > 0 {
			slot.specialCooldown--
		}
		switch slot.pending.Kind {
		case models.ActionSpecial:
			slot.specialCooldown = slot.loadout.Special.Cooldown
		case models.ActionItem:
			slot.itemUsed = true
		}
		slot.pending = nil
	}
	s.touchLocked()

	s.deps.Events.Publish(ctx, s.id, events.TypeRoundResolved, events.RoundResolved{Turn: turn})

	if s.finishIfDecidedLocked(ctx) {
		return
	}

	s.round++
	s.armTimerLocked(s.cfg.RoundTimeout, s.onRoundDeadline)
}

// finishIfDecidedLocked checks every end condition after a resolved round and
// completes the match when one holds. Order matters: knockouts beat forfeits
// beat the round cap.
func (s *Session) finishIfDecidedLocked(ctx context.Context) bool {
	a, b := s.players[0], s.players[1]

	switch {
	case a.hp == 0 && b.hp == 0:
		s.completeLocked(ctx, "", true, models.EndDoubleKO)
		return true
	case b.hp == 0:
		s.completeLocked(ctx, a.id, false, models.EndKnockout)
		return true
	case a.hp == 0:
		s.completeLocked(ctx, b.id, false, models.EndKnockout)
		return true
	}

	if s.cfg.MissForfeitAfter > 0 {
		aOut := a.missedRounds >= s.cfg.MissForfeitAfter
		bOut := b.missedRounds >= s.cfg.MissForfeitAfter
		switch {
		case aOut && bOut:
			s.completeLocked(ctx, "", true, models.EndForfeit)
			return true
		case aOut:
			s.completeLocked(ctx, b.id, false, models.EndForfeit)
			return true
		case bOut:
			s.completeLocked(ctx, a.id, false, models.EndForfeit)
			return true
		}
	}

	if s.round >= s.cfg.MaxRounds {
		// Decide on remaining HP fraction so mismatched max HP pools
		// compare fairly.
		fa := float64(a.hp) / float64(a.loadout.MaxHP)
		fb := float64(b.hp) / float64(b.loadout.MaxHP)
		switch {
		case fa > fb:
			s.completeLocked(ctx, a.id, false, models.EndRoundCap)
		case fb > fa:
			s.completeLocked(ctx, b.id, false, models.EndRoundCap)
		default:
			s.completeLocked(ctx, "", true, models.EndRoundCap)
		}
		return true
	}

	return false
}

// onRoundDeadline fires when the round timer lapses. Any player who has not
// locked an action defaults to Defend and accrues a consecutive miss.
func (s *Session) onRoundDeadline() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SettlementTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.MatchActive || time.Now().Before(s.deadline) {
		return
	}

	for _, slot := range s.players {
		if slot.pending == nil {
			slot.pending = &models.PlayedAction{
				PlayerID:  slot.id,
				Kind:      models.ActionDefend,
				Defaulted: true,
			}
			slot.missedRounds++
		}
	}
	s.resolveRoundLocked(ctx)
	s.persistSnapshotLocked(ctx)
}

// onSelectDeadline fires when the titan selection window lapses before both
// players locked in. The match is Cancelled with no rating change; the record
// is still archived so the cancellation leaves a durable trace.
func (s *Session) onSelectDeadline() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SettlementTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.MatchAwaitingTitanSelection {
		return
	}

	s.state = models.MatchCancelled
	s.endReason = models.EndSelectLapse
	s.stopTimerLocked()
	s.touchLocked()
	s.logger.Info().Msg("Match cancelled, titan selection lapsed")

	if err := s.deps.Rating.SubmitMatchResult(ctx, s.recordLocked()); err != nil {
		if errors.Is(err, service.ErrMatchAlreadySettled) {
			s.logger.Warn().Msg("Cancelled match was already archived")
		} else {
			s.logger.Error().Err(err).Msg("Failed to archive cancelled match")
		}
	}

	s.releasePresenceLocked(ctx)
	s.deps.Events.Publish(ctx, s.id, events.TypeMatchEnded, events.MatchEnded{
		State:     s.state,
		EndReason: s.endReason,
		Rounds:    len(s.turns),
	})
	s.persistSnapshotLocked(ctx)
}

// completeLocked moves the session to Completed and settles ratings exactly
// once. The settled flag guards re-entry; the rating service's duplicate
// check backstops a crash between marking and submitting.
func (s *Session) completeLocked(ctx context.Context, winnerID string, draw bool, reason models.EndReason) {
	if s.state.Terminal() || s.settled {
		return
	}
	s.state = models.MatchCompleted
	s.winnerID = winnerID
	s.draw = draw
	s.endReason = reason
	s.settled = true
	s.stopTimerLocked()
	s.touchLocked()

	a, b := s.players[0], s.players[1]
	scoreA := 0.5
	if !draw {
		if winnerID == a.id {
			scoreA = 1.0
		} else {
			scoreA = 0.0
		}
	}
	deltaA, deltaB := s.deps.Elo.Settle(a.standing, b.standing, scoreA)
	s.deltas = map[string]float64{a.id: deltaA, b.id: deltaB}

	s.logger.Info().
		Str("winner", winnerID).
		Bool("draw", draw).
		Str("reason", string(reason)).
		Int("rounds", len(s.turns)).
		Float64("delta_a", deltaA).
		Float64("delta_b", deltaB).
		Msg("Match completed")

	record := s.recordLocked()
	if err := s.deps.Rating.SubmitMatchResult(ctx, record); err != nil {
		if errors.Is(err, service.ErrMatchAlreadySettled) {
			s.logger.Warn().Msg("Match result was already settled")
		} else {
			// Ratings drift until the archive is reconciled; the match
			// outcome itself stands.
			s.logger.Error().Err(err).Msg("Failed to submit match result")
		}
	}

	s.releasePresenceLocked(ctx)
	s.deps.Events.Publish(ctx, s.id, events.TypeMatchEnded, events.MatchEnded{
		State:        s.state,
		WinnerID:     s.winnerID,
		EndReason:    s.endReason,
		Rounds:       len(s.turns),
		RatingDeltas: s.deltas,
	})
}

func (s *Session) releasePresenceLocked(ctx context.Context) {
	for _, slot := range s.players {
		if err := s.deps.Presence.ClearInMatch(ctx, slot.id); err != nil {
			s.logger.Warn().Err(err).Str("player", slot.id).Msg("Failed to clear match presence")
		}
	}
}

func (s *Session) recordLocked() *models.MatchRecord {
	a, b := s.players[0], s.players[1]
	return &models.MatchRecord{
		MatchID:      s.id,
		SeasonID:     s.seasonID,
		PlayerIDs:    []string{a.id, b.id},
		TitanIDs:     map[string]string{a.id: a.titanID, b.id: b.titanID},
		State:        s.state,
		WinnerID:     s.winnerID,
		Draw:         s.draw,
		EndReason:    s.endReason,
		Rounds:       len(s.turns),
		RatingDeltas: s.deltas,
		Turns:        s.turns,
		StartedAt:    s.startedAt,
		EndedAt:      s.updatedAt,
	}
}

func (s *Session) snapshotLocked() *models.MatchSnapshot {
	snap := &models.MatchSnapshot{
		MatchID:   s.id,
		SeasonID:  s.seasonID,
		State:     s.state,
		Round:     s.round,
		Deadline:  s.deadline,
		Players:   make([]models.PlayerMatchState, 0, len(s.players)),
		Turns:     append([]models.TurnRecord(nil), s.turns...),
		WinnerID:  s.winnerID,
		EndReason: s.endReason,
		StartedAt: s.startedAt,
		UpdatedAt: s.updatedAt,
	}
	for _, slot := range s.players {
		ps := models.PlayerMatchState{
			PlayerID:     slot.id,
			Rating:       slot.standing.Rating,
			TitanSetID:   slot.titanSetID,
			TitanID:      slot.titanID,
			HP:           slot.hp,
			SpecialReady: slot.specialCooldown == 0,
			ItemUsed:     slot.itemUsed,
			MissedRounds: slot.missedRounds,
		}
		if slot.loadout != nil {
			ps.MaxHP = slot.loadout.MaxHP
		}
		snap.Players = append(snap.Players, ps)
	}
	return snap
}

// persistInitialSnapshot makes the match readable right after creation.
func (s *Session) persistInitialSnapshot(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistSnapshotLocked(ctx)
}

func (s *Session) persistSnapshotLocked(ctx context.Context) {
	if err := s.deps.Snapshots.SaveSnapshot(ctx, s.snapshotLocked()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist match snapshot")
	}
}

func (s *Session) slotLocked(playerID string) *playerSlot {
	for _, slot := range s.players {
		if slot.id == playerID {
			return slot
		}
	}
	return nil
}

func (s *Session) opponentLocked(playerID string) *playerSlot {
	if s.players[0].id == playerID {
		return s.players[1]
	}
	return s.players[0]
}

func (s *Session) armTimerLocked(d time.Duration, fn func()) {
	s.stopTimerLocked()
	s.deadline = time.Now().Add(d)
	s.timer = time.AfterFunc(d, fn)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) touchLocked() {
	s.updatedAt = time.Now().UTC()
}
