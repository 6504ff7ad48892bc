package poll

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/guildpulse/internal/adapter/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_ClosesDuePollOnTick(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	poll, err := f.engine.Create(ctx, validRequest())
	require.NoError(t, err)

	sweeper := NewSweeper(f.engine, 30*time.Second, f.clock, nil)
	go sweeper.Start(ctx)
	defer sweeper.Stop()
	f.clock.BlockUntil(1)

	// First tick: the poll is still running.
	f.clock.Advance(30 * time.Second)
	f.clock.BlockUntil(1)
	stored, err := f.ledger.GetPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.False(t, stored.Closed)

	// Second and third tick cross the deadline.
	f.clock.Advance(30 * time.Second)
	f.clock.BlockUntil(1)
	f.clock.Advance(30 * time.Second)

	assert.Eventually(t, func() bool {
		stored, err := f.ledger.GetPoll(ctx, poll.ID)
		return err == nil && stored.Closed
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSweeper_StopTerminatesLoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := NewEngine(memory.NewPollLedger(), &mockPresenter{}, clock, Config{
		MinOptions:  2,
		MaxOptions:  10,
		MinDuration: time.Minute,
		MaxDuration: time.Hour,
	})
	sweeper := NewSweeper(engine, 30*time.Second, clock, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sweeper.Start(context.Background())
	}()
	clock.BlockUntil(1)

	sweeper.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
