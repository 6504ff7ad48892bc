package xp

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/guildpulse/internal/adapter/memory"
	"github.com/pscheid92/guildpulse/internal/coordination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateFixture struct {
	gate      *ChatGate
	cooldowns *memory.ChatCooldowns
	clock     *clockwork.FakeClock
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	ledger := memory.NewMemberLedger(clock)
	accountant := NewAccountant(ledger, coordination.NewCommunityLocks(), defaultAccountantConfig())
	cooldowns := memory.NewChatCooldowns(clock)
	gate := NewChatGate(accountant, cooldowns, GateConfig{
		MinChars: 5,
		Cooldown: 60 * time.Second,
		ChatXP:   1,
	})
	return &gateFixture{gate: gate, cooldowns: cooldowns, clock: clock}
}

func TestHandleMessage_AwardsQualifyingMessage(t *testing.T) {
	f := newGateFixture(t)

	granted, err := f.gate.HandleMessage(context.Background(), testCommunity, testMember, "hello there", false, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, granted)
}

func TestHandleMessage_SkipsBots(t *testing.T) {
	f := newGateFixture(t)

	granted, err := f.gate.HandleMessage(context.Background(), testCommunity, testMember, "hello there", true, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, granted)
}

func TestHandleMessage_SkipsShortMessages(t *testing.T) {
	f := newGateFixture(t)

	granted, err := f.gate.HandleMessage(context.Background(), testCommunity, testMember, "hey", false, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, granted)
}

func TestHandleMessage_CooldownBlocksSecondAward(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	granted, err := f.gate.HandleMessage(ctx, testCommunity, testMember, "first message", false, f.clock.Now())
	require.NoError(t, err)
	require.Equal(t, 1, granted)

	f.clock.Advance(10 * time.Second)
	granted, err = f.gate.HandleMessage(ctx, testCommunity, testMember, "second message", false, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, granted)

	// Cooldown elapsed: the member is eligible again.
	f.clock.Advance(51 * time.Second)
	granted, err = f.gate.HandleMessage(ctx, testCommunity, testMember, "third message", false, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, granted)
}

func TestHandleMessage_CooldownOnlyArmedOnActualGrant(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	// Consume the whole bucket through the accountant's voice path so the
	// next chat award is capped to zero.
	granted, err := f.gate.accountant.AwardVoice(ctx, testCommunity, testMember, 2, f.clock.Now())
	require.NoError(t, err)
	require.Equal(t, 2, granted)

	granted, err = f.gate.HandleMessage(ctx, testCommunity, testMember, "capped out message", false, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, granted)

	// No cooldown was armed, so the very next bucket grants immediately.
	active, err := f.cooldowns.Active(ctx, testCommunity, testMember)
	require.NoError(t, err)
	assert.False(t, active)

	f.clock.Advance(60 * time.Second)
	granted, err = f.gate.HandleMessage(ctx, testCommunity, testMember, "fresh bucket message", false, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, granted)
}
