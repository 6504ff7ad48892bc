package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/guildpulse/internal/adapter/memory"
	"github.com/pscheid92/guildpulse/internal/coordination"
	"github.com/pscheid92/guildpulse/internal/domain"
	"github.com/pscheid92/guildpulse/internal/rank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCommunity = "guild-1"

var testLabels = domain.TierLabels{
	Entry: "role-entry",
	Mid:   "role-mid",
	Upper: "role-upper",
	Top:   "role-top",
}

type mockRoster struct {
	members []string
	err     error
}

func (m *mockRoster) ListCommunities(context.Context) ([]string, error) {
	return []string{testCommunity}, nil
}

func (m *mockRoster) ListNonBotMembers(context.Context, string) ([]string, error) {
	return append([]string(nil), m.members...), m.err
}

// mockLabelActor tracks per-member label sets and records every mutation.
type mockLabelActor struct {
	mu        sync.Mutex
	labels    map[string]map[string]bool
	mutations []string
	failAdd   map[string]error
}

func newMockLabelActor() *mockLabelActor {
	return &mockLabelActor{
		labels:  make(map[string]map[string]bool),
		failAdd: make(map[string]error),
	}
}

func (m *mockLabelActor) set(memberID string, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := make(map[string]bool)
	for _, l := range labels {
		held[l] = true
	}
	m.labels[memberID] = held
}

func (m *mockLabelActor) HasLabel(_ context.Context, _, memberID, label string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.labels[memberID][label], nil
}

func (m *mockLabelActor) AddLabel(_ context.Context, _, memberID, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failAdd[memberID]; err != nil {
		return err
	}
	if m.labels[memberID] == nil {
		m.labels[memberID] = make(map[string]bool)
	}
	m.labels[memberID][label] = true
	m.mutations = append(m.mutations, fmt.Sprintf("add %s %s", memberID, label))
	return nil
}

func (m *mockLabelActor) RemoveLabel(_ context.Context, _, memberID, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.labels[memberID], label)
	m.mutations = append(m.mutations, fmt.Sprintf("remove %s %s", memberID, label))
	return nil
}

func (m *mockLabelActor) heldBy(memberID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var held []string
	for label, has := range m.labels[memberID] {
		if has {
			held = append(held, label)
		}
	}
	return held
}

type reconcilerFixture struct {
	reconciler *Reconciler
	ledger     *memory.MemberLedger
	roster     *mockRoster
	labels     *mockLabelActor
}

func newReconcilerFixture(t *testing.T, members ...string) *reconcilerFixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	ledger := memory.NewMemberLedger(clock)
	roster := &mockRoster{members: members}
	labels := newMockLabelActor()
	reconciler := NewReconciler(ledger, roster, labels, coordination.NewCommunityLocks(), clock, Config{
		Labels: testLabels,
		Rank:   rank.Config{ExitThreshold: 3, TopN: 1, NextM: 1},
	})
	return &reconcilerFixture{reconciler: reconciler, ledger: ledger, roster: roster, labels: labels}
}

func (f *reconcilerFixture) seedXP(t *testing.T, memberID string, xp int) {
	t.Helper()
	ctx := context.Background()
	rec, err := f.ledger.GetOrCreate(ctx, testCommunity, memberID)
	require.NoError(t, err)
	rec.XP = xp
	require.NoError(t, f.ledger.Save(ctx, rec))
}

func TestRun_AssignsLabelsPerStanding(t *testing.T) {
	f := newReconcilerFixture(t, "first", "second", "third", "rookie")
	f.seedXP(t, "first", 100)
	f.seedXP(t, "second", 50)
	f.seedXP(t, "third", 10)
	f.seedXP(t, "rookie", 1)

	res, err := f.reconciler.Run(context.Background(), testCommunity, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Members)
	assert.Equal(t, 4, res.Mutations)
	assert.Zero(t, res.Failed)

	assert.ElementsMatch(t, []string{"role-top"}, f.labels.heldBy("first"))
	assert.ElementsMatch(t, []string{"role-upper"}, f.labels.heldBy("second"))
	assert.ElementsMatch(t, []string{"role-mid"}, f.labels.heldBy("third"))
	assert.ElementsMatch(t, []string{"role-entry"}, f.labels.heldBy("rookie"))
}

func TestRun_SecondPassIsIdempotent(t *testing.T) {
	f := newReconcilerFixture(t, "first", "second")
	f.seedXP(t, "first", 100)
	f.seedXP(t, "second", 50)

	ctx := context.Background()
	_, err := f.reconciler.Run(ctx, testCommunity, TriggerManual)
	require.NoError(t, err)

	res, err := f.reconciler.Run(ctx, testCommunity, TriggerManual)
	require.NoError(t, err)
	assert.Zero(t, res.Mutations)
	assert.Zero(t, res.Failed)
}

func TestRun_RemovesStaleLabelBeforeAdding(t *testing.T) {
	f := newReconcilerFixture(t, "demoted")
	f.seedXP(t, "demoted", 1)
	f.labels.set("demoted", "role-top")

	_, err := f.reconciler.Run(context.Background(), testCommunity, TriggerManual)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"role-entry"}, f.labels.heldBy("demoted"))
	assert.Equal(t, []string{
		"remove demoted role-top",
		"add demoted role-entry",
	}, f.labels.mutations)
}

func TestRun_CollapsesDoubleLabels(t *testing.T) {
	f := newReconcilerFixture(t, "messy")
	f.seedXP(t, "messy", 100)
	f.labels.set("messy", "role-top", "role-mid", "role-entry")

	_, err := f.reconciler.Run(context.Background(), testCommunity, TriggerManual)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"role-top"}, f.labels.heldBy("messy"))
}

func TestRun_CreatesRowsForSilentMembers(t *testing.T) {
	f := newReconcilerFixture(t, "lurker")

	_, err := f.reconciler.Run(context.Background(), testCommunity, TriggerManual)
	require.NoError(t, err)

	rows, err := f.ledger.ListByCommunity(context.Background(), testCommunity)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "lurker", rows[0].MemberID)
	assert.Zero(t, rows[0].XP)
	assert.ElementsMatch(t, []string{"role-entry"}, f.labels.heldBy("lurker"))
}

func TestRun_FailedMutationCountedPassContinues(t *testing.T) {
	f := newReconcilerFixture(t, "broken", "fine")
	f.seedXP(t, "broken", 100)
	f.seedXP(t, "fine", 50)
	f.labels.failAdd["broken"] = errors.New("platform rejected mutation")

	res, err := f.reconciler.Run(context.Background(), testCommunity, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.ElementsMatch(t, []string{"role-upper"}, f.labels.heldBy("fine"))
}

func TestRun_PrestigeLabelUntouched(t *testing.T) {
	f := newReconcilerFixture(t, "veteran")
	f.seedXP(t, "veteran", 100)
	f.labels.set("veteran", "role-prestige", "role-entry")

	_, err := f.reconciler.Run(context.Background(), testCommunity, TriggerManual)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"role-prestige", "role-top"}, f.labels.heldBy("veteran"))
}

func TestRun_RosterFailureAbortsPass(t *testing.T) {
	f := newReconcilerFixture(t)
	f.roster.err = errors.New("gateway unavailable")

	_, err := f.reconciler.Run(context.Background(), testCommunity, TriggerManual)
	assert.ErrorContains(t, err, "failed to fetch roster")
	assert.Empty(t, f.labels.mutations)
}
