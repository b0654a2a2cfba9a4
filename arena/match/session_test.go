package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TitanForge/ARENA-SERVICES/arena/battle"
	"github.com/TitanForge/ARENA-SERVICES/arena/events"
	"github.com/TitanForge/ARENA-SERVICES/arena/loadout"
	"github.com/TitanForge/ARENA-SERVICES/arena/rating"
	"github.com/TitanForge/ARENA-SERVICES/shared/models"
)

type ratingRecorder struct {
	mu      sync.Mutex
	records []*models.MatchRecord
}

func (rr *ratingRecorder) SubmitMatchResult(ctx context.Context, record *models.MatchRecord) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.records = append(rr.records, record)
	return nil
}

func (rr *ratingRecorder) count() int {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return len(rr.records)
}

func (rr *ratingRecorder) last() *models.MatchRecord {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if len(rr.records) == 0 {
		return nil
	}
	return rr.records[len(rr.records)-1]
}

type presenceRecorder struct {
	mu      sync.Mutex
	cleared []string
}

func (pr *presenceRecorder) MarkInMatch(ctx context.Context, playerUUID, matchID string) error {
	return nil
}

func (pr *presenceRecorder) ClearInMatch(ctx context.Context, playerUUID string) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.cleared = append(pr.cleared, playerUUID)
	return nil
}

func (pr *presenceRecorder) clearedCount() int {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return len(pr.cleared)
}

type nopSink struct{}

func (nopSink) SaveSnapshot(ctx context.Context, snapshot *models.MatchSnapshot) error { return nil }

func balancedTitan(id string) models.TitanLoadout {
	return models.TitanLoadout{
		TitanID: id,
		Element: models.ElementIron,
		MaxHP:   100,
		Attack:  10,
		Defense: 10,
		Speed:   5,
		Special: models.SpecialMove{Name: "Overload", Power: 2.0, Cooldown: 3},
	}
}

func crusherTitan(id string) models.TitanLoadout {
	t := balancedTitan(id)
	t.Attack = 1000
	return t
}

func featherTitan(id string) models.TitanLoadout {
	t := balancedTitan(id)
	t.Attack = 1
	return t
}

func testLoadouts() loadout.Provider {
	return &loadout.Static{Sets: map[string][]models.TitanLoadout{
		"set-a": {balancedTitan("sentinel"), crusherTitan("crusher"), featherTitan("feather")},
		"set-b": {balancedTitan("warden"), crusherTitan("wrecker"), featherTitan("moth")},
	}}
}

func testDeps(rr *ratingRecorder, pr *presenceRecorder) Deps {
	return Deps{
		Resolver:  battle.NewResolver(battle.DefaultConfig()),
		Elo:       rating.NewEngine(rating.DefaultConfig()),
		Rating:    rr,
		Events:    events.NopPublisher{},
		Presence:  pr,
		Snapshots: nopSink{},
		Loadouts:  testLoadouts(),
		Logger:    zerolog.Nop(),
	}
}

func calmConfig() Config {
	return Config{
		SelectTimeout:     time.Hour,
		RoundTimeout:      time.Hour,
		MaxRounds:         50,
		MissForfeitAfter:  3,
		SettlementTimeout: time.Second,
	}
}

func startedSession(t *testing.T, cfg Config, rr *ratingRecorder, pr *presenceRecorder, titanA, titanB string) *Session {
	t.Helper()
	s := newSession("match-1", "season-1",
		Participant{PlayerID: "alice", TitanSetID: "set-a", Rating: 1200, GamesPlayed: 30},
		Participant{PlayerID: "bob", TitanSetID: "set-b", Rating: 1210, GamesPlayed: 30},
		cfg, testDeps(rr, pr))
	ctx := context.Background()
	require.NoError(t, s.SelectTitan(ctx, "alice", titanA))
	require.NoError(t, s.SelectTitan(ctx, "bob", titanB))
	return s
}

func TestTitanSelectionFlow(t *testing.T) {
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := newSession("match-1", "season-1",
		Participant{PlayerID: "alice", TitanSetID: "set-a", Rating: 1200, GamesPlayed: 30},
		Participant{PlayerID: "bob", TitanSetID: "set-b", Rating: 1210, GamesPlayed: 30},
		calmConfig(), testDeps(rr, pr))
	ctx := context.Background()

	assert.ErrorIs(t, s.SelectTitan(ctx, "mallory", "sentinel"), ErrNotYourMatch)
	assert.ErrorIs(t, s.SelectTitan(ctx, "alice", "warden"), ErrInvalidTitan, "titan from the wrong set")

	require.NoError(t, s.SelectTitan(ctx, "alice", "sentinel"))
	assert.Equal(t, models.MatchAwaitingTitanSelection, s.Snapshot().State)
	assert.ErrorIs(t, s.SelectTitan(ctx, "alice", "crusher"), ErrTitanAlreadySelected)

	require.NoError(t, s.SelectTitan(ctx, "bob", "warden"))
	snap := s.Snapshot()
	assert.Equal(t, models.MatchActive, snap.State)
	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, 100, snap.Players[0].HP)
}

func TestSubmitActionBeforeBattle(t *testing.T) {
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := newSession("match-1", "season-1",
		Participant{PlayerID: "alice", TitanSetID: "set-a"},
		Participant{PlayerID: "bob", TitanSetID: "set-b"},
		calmConfig(), testDeps(rr, pr))

	err := s.SubmitAction(context.Background(), "alice", models.ActionAttack, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRoundResolvesWhenBothActionsAreIn(t *testing.T) {
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := startedSession(t, calmConfig(), rr, pr, "sentinel", "warden")
	ctx := context.Background()

	require.NoError(t, s.SubmitAction(ctx, "alice", models.ActionAttack, ""))
	assert.Equal(t, 1, s.Snapshot().Round, "round waits for the second action")

	require.NoError(t, s.SubmitAction(ctx, "bob", models.ActionAttack, ""))
	snap := s.Snapshot()
	assert.Equal(t, 2, snap.Round)
	require.Len(t, snap.Turns, 1)
	assert.Equal(t, 1, snap.Turns[0].Round)
	assert.Less(t, snap.Players[0].HP, 100)
	assert.Less(t, snap.Players[1].HP, 100)
}

func TestLateDeadlineNeverResolvesARoundTwice(t *testing.T) {
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := startedSession(t, calmConfig(), rr, pr, "sentinel", "warden")
	ctx := context.Background()

	require.NoError(t, s.SubmitAction(ctx, "alice", models.ActionAttack, ""))
	require.NoError(t, s.SubmitAction(ctx, "bob", models.ActionAttack, ""))
	before := s.Snapshot()
	require.Len(t, before.Turns, 1)

	// A stale timer firing after the round already resolved must be a no-op.
	s.onRoundDeadline()

	after := s.Snapshot()
	require.Len(t, after.Turns, 1)
	assert.Equal(t, before.Round, after.Round)
	assert.Equal(t, before.Players[0].HP, after.Players[0].HP)
	assert.Equal(t, before.Players[1].HP, after.Players[1].HP)
}

func TestDuplicateActionSubmission(t *testing.T) {
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := startedSession(t, calmConfig(), rr, pr, "sentinel", "warden")
	ctx := context.Background()

	require.NoError(t, s.SubmitAction(ctx, "alice", models.ActionAttack, ""))
	err := s.SubmitAction(ctx, "alice", models.ActionDefend, "")
	assert.ErrorIs(t, err, ErrActionAlreadySubmitted)
}

func TestSpecialCooldownIsEnforced(t *testing.T) {
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := startedSession(t, calmConfig(), rr, pr, "sentinel", "warden")
	ctx := context.Background()

	require.NoError(t, s.SubmitAction(ctx, "alice", models.ActionSpecial, ""))
	require.NoError(t, s.SubmitAction(ctx, "bob", models.ActionDefend, ""))

	err := s.SubmitAction(ctx, "alice", models.ActionSpecial, "")
	assert.ErrorIs(t, err, ErrInvalidAction, "special is on cooldown")
	assert.NoError(t, s.SubmitAction(ctx, "alice", models.ActionAttack, ""))
}

func TestItemRules(t *testing.T) {
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := startedSession(t, calmConfig(), rr, pr, "sentinel", "warden")
	ctx := context.Background()

	assert.ErrorIs(t, s.SubmitAction(ctx, "alice", models.ActionItem, "elixir-of-doom"), ErrInvalidAction)

	require.NoError(t, s.SubmitAction(ctx, "alice", models.ActionItem, "potion"))
	require.NoError(t, s.SubmitAction(ctx, "bob", models.ActionDefend, ""))

	err := s.SubmitAction(ctx, "alice", models.ActionItem, "potion")
	assert.ErrorIs(t, err, ErrInvalidAction, "one item per match")
}

func TestKnockoutSettlesExactlyOnce(t *testing.T) {
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := startedSession(t, calmConfig(), rr, pr, "crusher", "moth")
	ctx := context.Background()

	require.NoError(t, s.SubmitAction(ctx, "alice", models.ActionAttack, ""))
	require.NoError(t, s.SubmitAction(ctx, "bob", models.ActionAttack, ""))

	snap := s.Snapshot()
	assert.Equal(t, models.MatchCompleted, snap.State)
	assert.Equal(t, "alice", snap.WinnerID)
	assert.Equal(t, models.EndKnockout, snap.EndReason)

	require.Equal(t, 1, rr.count())
	record := rr.last()
	assert.Equal(t, "match-1", record.MatchID)
	assert.Positive(t, record.RatingDeltas["alice"])
	assert.Negative(t, record.RatingDeltas["bob"])
	assert.Equal(t, 2, pr.clearedCount(), "both players released")

	// Terminal sessions reject further play.
	assert.ErrorIs(t, s.SubmitAction(ctx, "bob", models.ActionAttack, ""), ErrInvalidState)
	assert.ErrorIs(t, s.Surrender(ctx, "bob"), ErrInvalidState)
	assert.Equal(t, 1, rr.count(), "no second settlement")
}

func TestDoubleKnockoutIsADraw(t *testing.T) {
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := startedSession(t, calmConfig(), rr, pr, "crusher", "wrecker")
	ctx := context.Background()

	require.NoError(t, s.SubmitAction(ctx, "alice", models.ActionAttack, ""))
	require.NoError(t, s.SubmitAction(ctx, "bob", models.ActionAttack, ""))

	snap := s.Snapshot()
	assert.Equal(t, models.MatchCompleted, snap.State)
	assert.Empty(t, snap.WinnerID)
	assert.Equal(t, models.EndDoubleKO, snap.EndReason)

	require.Equal(t, 1, rr.count())
	assert.True(t, rr.last().Draw)
}

func TestSurrender(t *testing.T) {
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := startedSession(t, calmConfig(), rr, pr, "sentinel", "warden")
	ctx := context.Background()

	assert.ErrorIs(t, s.Surrender(ctx, "mallory"), ErrNotYourMatch)
	require.NoError(t, s.Surrender(ctx, "alice"))

	snap := s.Snapshot()
	assert.Equal(t, models.MatchCompleted, snap.State)
	assert.Equal(t, "bob", snap.WinnerID)
	assert.Equal(t, models.EndSurrender, snap.EndReason)
	assert.Equal(t, 1, rr.count())
}

func TestSurrenderDuringTitanSelection(t *testing.T) {
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := newSession("match-1", "season-1",
		Participant{PlayerID: "alice", TitanSetID: "set-a", Rating: 1200, GamesPlayed: 30},
		Participant{PlayerID: "bob", TitanSetID: "set-b", Rating: 1210, GamesPlayed: 30},
		calmConfig(), testDeps(rr, pr))
	ctx := context.Background()

	require.NoError(t, s.Surrender(ctx, "bob"))

	snap := s.Snapshot()
	assert.Equal(t, models.MatchCompleted, snap.State)
	assert.Equal(t, "alice", snap.WinnerID)
	assert.Equal(t, models.EndSurrender, snap.EndReason)
	assert.Equal(t, 1, rr.count())
	assert.ErrorIs(t, s.Surrender(ctx, "alice"), ErrInvalidState)
}

func TestRoundCapDecidesOnRemainingHPFraction(t *testing.T) {
	cfg := calmConfig()
	cfg.MaxRounds = 1
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := startedSession(t, cfg, rr, pr, "sentinel", "moth")
	ctx := context.Background()

	// Sentinel lands real damage; moth barely scratches.
	require.NoError(t, s.SubmitAction(ctx, "alice", models.ActionAttack, ""))
	require.NoError(t, s.SubmitAction(ctx, "bob", models.ActionAttack, ""))

	snap := s.Snapshot()
	assert.Equal(t, models.MatchCompleted, snap.State)
	assert.Equal(t, models.EndRoundCap, snap.EndReason)
	assert.Equal(t, "alice", snap.WinnerID, "higher HP fraction wins at the cap")
}

func TestRoundCapEqualFractionIsADraw(t *testing.T) {
	cfg := calmConfig()
	cfg.MaxRounds = 1
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := startedSession(t, cfg, rr, pr, "sentinel", "warden")
	ctx := context.Background()

	require.NoError(t, s.SubmitAction(ctx, "alice", models.ActionDefend, ""))
	require.NoError(t, s.SubmitAction(ctx, "bob", models.ActionDefend, ""))

	snap := s.Snapshot()
	assert.Equal(t, models.MatchCompleted, snap.State)
	assert.Equal(t, models.EndRoundCap, snap.EndReason)
	assert.Empty(t, snap.WinnerID)
	assert.True(t, rr.last().Draw)
}

func TestSelectionTimeoutCancelsWithoutRatingChange(t *testing.T) {
	cfg := calmConfig()
	cfg.SelectTimeout = 25 * time.Millisecond
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := newSession("match-1", "season-1",
		Participant{PlayerID: "alice", TitanSetID: "set-a"},
		Participant{PlayerID: "bob", TitanSetID: "set-b"},
		cfg, testDeps(rr, pr))

	require.NoError(t, s.SelectTitan(context.Background(), "alice", "sentinel"))

	require.Eventually(t, func() bool {
		return s.Snapshot().State == models.MatchCancelled
	}, time.Second, 10*time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, models.EndSelectLapse, snap.EndReason)
	assert.Equal(t, 2, pr.clearedCount())

	// Archived for the record, but with no rating movement.
	require.Equal(t, 1, rr.count())
	record := rr.last()
	assert.Equal(t, models.MatchCancelled, record.State)
	assert.Empty(t, record.WinnerID)
	assert.Empty(t, record.RatingDeltas)
}

func TestRoundTimeoutDefaultsToDefend(t *testing.T) {
	cfg := calmConfig()
	cfg.RoundTimeout = 25 * time.Millisecond
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := startedSession(t, cfg, rr, pr, "sentinel", "warden")
	ctx := context.Background()

	require.NoError(t, s.SubmitAction(ctx, "alice", models.ActionAttack, ""))

	require.Eventually(t, func() bool {
		return len(s.Snapshot().Turns) >= 1
	}, time.Second, 10*time.Millisecond)

	turn := s.Snapshot().Turns[0]
	var bobAction models.PlayedAction
	for _, a := range turn.Actions {
		if a.PlayerID == "bob" {
			bobAction = a
		}
	}
	assert.Equal(t, models.ActionDefend, bobAction.Kind)
	assert.True(t, bobAction.Defaulted)
}

func TestConsecutiveMissesForfeit(t *testing.T) {
	cfg := calmConfig()
	cfg.RoundTimeout = 25 * time.Millisecond
	cfg.MissForfeitAfter = 1
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	s := startedSession(t, cfg, rr, pr, "sentinel", "warden")
	ctx := context.Background()

	require.NoError(t, s.SubmitAction(ctx, "alice", models.ActionAttack, ""))

	require.Eventually(t, func() bool {
		return s.Snapshot().State == models.MatchCompleted
	}, time.Second, 10*time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, "alice", snap.WinnerID)
	assert.Equal(t, models.EndForfeit, snap.EndReason)
	assert.Equal(t, 1, rr.count())
}

func TestRegistryIndexesPlayers(t *testing.T) {
	rr := &ratingRecorder{}
	pr := &presenceRecorder{}
	reg := NewRegistry(calmConfig(), testDeps(rr, pr), time.Minute, zerolog.Nop())
	ctx := context.Background()

	s, err := reg.CreateMatch(ctx, "season-1",
		Participant{PlayerID: "alice", TitanSetID: "set-a", Rating: 1200},
		Participant{PlayerID: "bob", TitanSetID: "set-b", Rating: 1210})
	require.NoError(t, err)

	got, err := reg.GetSession(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	got, err = reg.GetSessionForPlayer("bob")
	require.NoError(t, err)
	assert.Same(t, s, got)

	assert.True(t, reg.HasLiveMatch("alice"))

	_, err = reg.GetSession("missing")
	assert.ErrorIs(t, err, ErrMatchNotFound)
	_, err = reg.GetSessionForPlayer("mallory")
	assert.ErrorIs(t, err, ErrMatchNotFound)
}
