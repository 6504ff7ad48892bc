package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/guildpulse/internal/adapter/memory"
	"github.com/pscheid92/guildpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reveal struct {
	pollID uuid.UUID
	tally  []int
}

type mockPresenter struct {
	mu      sync.Mutex
	reveals []reveal
	err     error
}

func (m *mockPresenter) RevealResult(_ context.Context, poll *domain.Poll, tally []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reveals = append(m.reveals, reveal{pollID: poll.ID, tally: append([]int(nil), tally...)})
	return nil
}

type engineFixture struct {
	engine    *Engine
	ledger    *memory.PollLedger
	presenter *mockPresenter
	clock     *clockwork.FakeClock
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	ledger := memory.NewPollLedger()
	presenter := &mockPresenter{}
	engine := NewEngine(ledger, presenter, clock, Config{
		MinOptions:  2,
		MaxOptions:  10,
		MinDuration: time.Minute,
		MaxDuration: 7 * 24 * time.Hour,
	})
	return &engineFixture{engine: engine, ledger: ledger, presenter: presenter, clock: clock}
}

func validRequest() CreateRequest {
	return CreateRequest{
		CommunityID: "guild-1",
		ChannelID:   "channel-1",
		CreatedBy:   "admin-1",
		Question:    "Movie night pick?",
		Options:     []string{"yes", "no"},
		Duration:    time.Minute,
	}
}

func TestCreate_RejectsBadOptionCounts(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	req := validRequest()
	req.Options = []string{"only one"}
	_, err := f.engine.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)

	req.Options = make([]string, 11)
	for i := range req.Options {
		req.Options[i] = "opt"
	}
	_, err = f.engine.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)

	req.Options = []string{"yes", ""}
	_, err = f.engine.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)
}

func TestCreate_ClampsDurationIntoWindow(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	req := validRequest()
	req.Duration = time.Second
	poll, err := f.engine.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(time.Minute), poll.EndsAt)

	req.Duration = 30 * 24 * time.Hour
	poll, err = f.engine.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), poll.EndsAt)
}

func TestCreate_PingRoleRequiresRoleRef(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	req := validRequest()
	req.PingMode = domain.PingRole
	_, err := f.engine.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrRoleRequired)

	req.RoleRef = "role-movie-fans"
	_, err = f.engine.Create(ctx, req)
	assert.NoError(t, err)
}

func TestCreate_DMRequiresPing(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	req := validRequest()
	req.DMEnabled = true
	_, err := f.engine.Create(ctx, req)
	assert.ErrorContains(t, err, "require a ping mode")

	req.PingMode = domain.PingHere
	_, err = f.engine.Create(ctx, req)
	assert.NoError(t, err)
}

func TestVote_FirstVoteWinsPermanently(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	poll, err := f.engine.Create(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, f.engine.Vote(ctx, poll.ID, "voter-a", 0))

	// Trying to switch to the other option ten seconds later changes nothing.
	f.clock.Advance(10 * time.Second)
	err = f.engine.Vote(ctx, poll.ID, "voter-a", 1)
	assert.ErrorIs(t, err, domain.ErrDuplicateVote)

	tally, err := f.ledger.TallyVotes(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, tally)
}

func TestVote_RejectsOutOfRangeOption(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	poll, err := f.engine.Create(ctx, validRequest())
	require.NoError(t, err)

	assert.ErrorIs(t, f.engine.Vote(ctx, poll.ID, "voter-a", 2), domain.ErrInvalidOption)
	assert.ErrorIs(t, f.engine.Vote(ctx, poll.ID, "voter-a", -1), domain.ErrInvalidOption)
}

func TestVote_UnknownPoll(t *testing.T) {
	f := newEngineFixture(t)

	err := f.engine.Vote(context.Background(), uuid.New(), "voter-a", 0)
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}

func TestVote_RejectedPastDeadlineEvenBeforeSweep(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	poll, err := f.engine.Create(ctx, validRequest())
	require.NoError(t, err)

	// Deadline passed but the sweep has not sealed the poll yet.
	f.clock.Advance(61 * time.Second)
	err = f.engine.Vote(ctx, poll.ID, "voter-a", 0)
	assert.ErrorIs(t, err, domain.ErrPollClosed)
}

func TestVote_ConcurrentDoubleClicksAcceptExactlyOne(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	poll, err := f.engine.Create(ctx, validRequest())
	require.NoError(t, err)

	const attempts = 16
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(option int) {
			defer wg.Done()
			errs <- f.engine.Vote(ctx, poll.ID, "voter-a", option%2)
		}(i)
	}
	wg.Wait()
	close(errs)

	accepted, duplicate := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domain.ErrDuplicateVote):
			duplicate++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, attempts-1, duplicate)

	tally, err := f.ledger.TallyVotes(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tally[0]+tally[1])
}

func TestCloseDuePolls_SealsAndRevealsOnce(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	poll, err := f.engine.Create(ctx, validRequest())
	require.NoError(t, err)
	require.NoError(t, f.engine.Vote(ctx, poll.ID, "voter-a", 0))

	f.clock.Advance(61 * time.Second)
	closed, err := f.engine.CloseDuePolls(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	require.Len(t, f.presenter.reveals, 1)
	assert.Equal(t, poll.ID, f.presenter.reveals[0].pollID)
	assert.Equal(t, []int{1, 0}, f.presenter.reveals[0].tally)

	// A second sweep finds nothing to do and never re-reveals.
	closed, err = f.engine.CloseDuePolls(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)
	assert.Len(t, f.presenter.reveals, 1)
}

func TestCloseDuePolls_SkipsPollsStillRunning(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	req := validRequest()
	req.Duration = time.Hour
	_, err := f.engine.Create(ctx, req)
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	closed, err := f.engine.CloseDuePolls(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)
	assert.Empty(t, f.presenter.reveals)
}

func TestCloseDuePolls_RevealFailureDoesNotReopen(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	poll, err := f.engine.Create(ctx, validRequest())
	require.NoError(t, err)

	f.presenter.err = errors.New("message deleted")
	f.clock.Advance(61 * time.Second)

	closed, err := f.engine.CloseDuePolls(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	stored, err := f.ledger.GetPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.True(t, stored.Closed)

	// Even after the presenter recovers, the poll stays sealed and silent.
	f.presenter.err = nil
	closed, err = f.engine.CloseDuePolls(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)
	assert.Empty(t, f.presenter.reveals)
}

func TestVoteThenSweep_Lifecycle(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	poll, err := f.engine.Create(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, f.engine.Vote(ctx, poll.ID, "voter-a", 0))

	f.clock.Advance(10 * time.Second)
	assert.ErrorIs(t, f.engine.Vote(ctx, poll.ID, "voter-a", 1), domain.ErrDuplicateVote)

	f.clock.Advance(51 * time.Second)
	closed, err := f.engine.CloseDuePolls(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	assert.ErrorIs(t, f.engine.Vote(ctx, poll.ID, "voter-b", 1), domain.ErrPollClosed)

	require.Len(t, f.presenter.reveals, 1)
	assert.Equal(t, []int{1, 0}, f.presenter.reveals[0].tally)
}
