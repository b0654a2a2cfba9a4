package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStarter struct {
	pairs [][2]Ticket
	fail  bool
}

func (fs *fakeStarter) StartMatch(ctx context.Context, a, b Ticket) error {
	if fs.fail {
		return errors.New("boom")
	}
	fs.pairs = append(fs.pairs, [2]Ticket{a, b})
	return nil
}

type fakeOwnership struct{ responsible bool }

func (fo *fakeOwnership) IsResponsible(entityID string) (bool, error) {
	return fo.responsible, nil
}

type fakeLive struct{ inMatch map[string]bool }

func (fl *fakeLive) HasLiveMatch(playerID string) bool { return fl.inMatch[playerID] }

type nopPresence struct{}

func (nopPresence) MarkQueued(ctx context.Context, playerUUID string, enqueuedAt time.Time) error {
	return nil
}
func (nopPresence) ClearQueued(ctx context.Context, playerUUID string) error { return nil }

func testConfig() Config {
	return Config{
		PassInterval:       time.Second,
		WindowBase:         100,
		WindowMax:          500,
		WindowGrowthPerSec: 400.0 / 60.0,
	}
}

func newTestManager(starter *fakeStarter) *Manager {
	return NewManager(testConfig(), starter, &fakeOwnership{responsible: true}, &fakeLive{inMatch: map[string]bool{}}, nopPresence{}, zerolog.Nop())
}

func TestEnqueueRejectsDuplicates(t *testing.T) {
	m := newTestManager(&fakeStarter{})
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, "alice", "set-1", 1200, 20))
	err := m.Enqueue(ctx, "alice", "set-1", 1200, 20)
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.Equal(t, 1, m.Size())
}

func TestEnqueueRejectsPlayersInLiveMatches(t *testing.T) {
	starter := &fakeStarter{}
	live := &fakeLive{inMatch: map[string]bool{"bob": true}}
	m := NewManager(testConfig(), starter, &fakeOwnership{responsible: true}, live, nopPresence{}, zerolog.Nop())

	err := m.Enqueue(context.Background(), "bob", "set-1", 1200, 20)
	assert.ErrorIs(t, err, ErrAlreadyInMatch)
	assert.Zero(t, m.Size())
}

func TestLeave(t *testing.T) {
	m := newTestManager(&fakeStarter{})
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, "alice", "set-1", 1200, 20))
	require.NoError(t, m.Leave(ctx, "alice"))
	assert.Zero(t, m.Size())

	assert.ErrorIs(t, m.Leave(ctx, "alice"), ErrNotInQueue)
}

func TestPassPairsCloseRatings(t *testing.T) {
	starter := &fakeStarter{}
	m := newTestManager(starter)
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, "alice", "set-1", 1200, 20))
	require.NoError(t, m.Enqueue(ctx, "bob", "set-2", 1210, 20))

	m.RunPass(ctx)

	require.Len(t, starter.pairs, 1)
	assert.Zero(t, m.Size(), "both tickets consumed")
	got := map[string]bool{starter.pairs[0][0].PlayerID: true, starter.pairs[0][1].PlayerID: true}
	assert.True(t, got["alice"] && got["bob"])
}

func TestPassSkipsPairsOutsideWindow(t *testing.T) {
	starter := &fakeStarter{}
	m := newTestManager(starter)
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, "alice", "set-1", 1200, 20))
	require.NoError(t, m.Enqueue(ctx, "bob", "set-2", 1500, 20))

	m.RunPass(ctx)

	assert.Empty(t, starter.pairs)
	assert.Equal(t, 2, m.Size())
}

func TestWindowWidensWithWaitTime(t *testing.T) {
	starter := &fakeStarter{}
	m := newTestManager(starter)
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, "alice", "set-1", 1200, 20))
	require.NoError(t, m.Enqueue(ctx, "bob", "set-2", 1500, 20))

	// Backdate both tickets a minute so their windows reach the cap.
	m.mu.Lock()
	for _, ticket := range m.tickets {
		ticket.EnqueuedAt = ticket.EnqueuedAt.Add(-time.Minute)
	}
	m.mu.Unlock()

	m.RunPass(ctx)

	require.Len(t, starter.pairs, 1)
	assert.Zero(t, m.Size())
}

func TestPassTakesFirstAdmissibleInWaitOrder(t *testing.T) {
	starter := &fakeStarter{}
	m := newTestManager(starter)
	ctx := context.Background()

	// Oldest waiter anchors the pass and takes the first admissible
	// candidate in wait-time order, not the closest rating.
	require.NoError(t, m.Enqueue(ctx, "anchor", "set-1", 1200, 20))
	require.NoError(t, m.Enqueue(ctx, "older", "set-2", 1290, 20))
	require.NoError(t, m.Enqueue(ctx, "closer", "set-3", 1205, 20))

	m.mu.Lock()
	m.tickets["anchor"].EnqueuedAt = m.tickets["anchor"].EnqueuedAt.Add(-2 * time.Second)
	m.tickets["older"].EnqueuedAt = m.tickets["older"].EnqueuedAt.Add(-time.Second)
	m.mu.Unlock()

	m.RunPass(ctx)

	require.Len(t, starter.pairs, 1)
	got := map[string]bool{starter.pairs[0][0].PlayerID: true, starter.pairs[0][1].PlayerID: true}
	assert.True(t, got["anchor"] && got["older"])
	assert.Equal(t, 1, m.Size(), "closer stays queued")
}

type blockingStarter struct {
	entered chan struct{}
	release chan struct{}
}

func (bs *blockingStarter) StartMatch(ctx context.Context, a, b Ticket) error {
	close(bs.entered)
	<-bs.release
	return nil
}

func TestEnqueueRejectedWhileMatchIsStarting(t *testing.T) {
	starter := &blockingStarter{entered: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(testConfig(), starter, &fakeOwnership{responsible: true}, &fakeLive{inMatch: map[string]bool{}}, nopPresence{}, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, "alice", "set-1", 1200, 20))
	require.NoError(t, m.Enqueue(ctx, "bob", "set-2", 1210, 20))

	done := make(chan struct{})
	go func() {
		m.RunPass(ctx)
		close(done)
	}()

	// Pair taken, tickets gone, match start still in flight. A re-enqueue
	// here must bounce or alice ends up queued and fighting at once.
	<-starter.entered
	assert.ErrorIs(t, m.Enqueue(ctx, "alice", "set-1", 1200, 20), ErrAlreadyQueued)

	close(starter.release)
	<-done
	assert.False(t, m.IsQueued("alice"))
	assert.Zero(t, m.Size())
}

func TestFailedStartReleasesReservation(t *testing.T) {
	starter := &fakeStarter{fail: true}
	m := newTestManager(starter)
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, "alice", "set-1", 1200, 20))
	require.NoError(t, m.Enqueue(ctx, "bob", "set-2", 1210, 20))
	m.RunPass(ctx)

	// Both requeued; leaving and re-enqueueing must work again.
	require.NoError(t, m.Leave(ctx, "alice"))
	require.NoError(t, m.Enqueue(ctx, "alice", "set-1", 1200, 20))
	assert.Equal(t, 2, m.Size())
}

func TestPassDoesNothingWhenNotResponsible(t *testing.T) {
	starter := &fakeStarter{}
	m := NewManager(testConfig(), starter, &fakeOwnership{responsible: false}, &fakeLive{inMatch: map[string]bool{}}, nopPresence{}, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, "alice", "set-1", 1200, 20))
	require.NoError(t, m.Enqueue(ctx, "bob", "set-2", 1200, 20))

	m.RunPass(ctx)

	assert.Empty(t, starter.pairs)
	assert.Equal(t, 2, m.Size())
}

func TestFailedStartRequeuesPair(t *testing.T) {
	starter := &fakeStarter{fail: true}
	m := newTestManager(starter)
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, "alice", "set-1", 1200, 20))
	require.NoError(t, m.Enqueue(ctx, "bob", "set-2", 1200, 20))

	m.RunPass(ctx)

	assert.Equal(t, 2, m.Size(), "pair returns to the queue when the match cannot start")
	assert.True(t, m.IsQueued("alice"))
	assert.True(t, m.IsQueued("bob"))
}
