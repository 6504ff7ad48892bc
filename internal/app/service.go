// Package app is the application layer, the only place that wires multiple
// engines together. It orchestrates all use cases and owns the background
// sweep scheduling.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/guildpulse/internal/coordination"
	"github.com/pscheid92/guildpulse/internal/domain"
	"github.com/pscheid92/guildpulse/internal/poll"
	"github.com/pscheid92/guildpulse/internal/rank"
	"github.com/pscheid92/guildpulse/internal/reconcile"
	"github.com/pscheid92/guildpulse/internal/xp"
	"golang.org/x/sync/singleflight"
)

// Service orchestrates the XP, ranking, reconciliation, and poll engines.
type Service struct {
	gate       *xp.ChatGate
	accountant *xp.Accountant
	voice      *xp.VoiceTracker
	decay      *xp.DecayProcessor
	reconciler *reconcile.Reconciler
	polls      *poll.Engine
	ledger     domain.MemberLedger
	privileged domain.PrivilegeChecker
	clock      clockwork.Clock

	debouncer      *coordination.Debouncer
	reconcileGroup singleflight.Group
}

// NewService creates the application layer service. quiet is the debounce
// window collapsing bursts of reconcile requests per community.
func NewService(
	gate *xp.ChatGate,
	accountant *xp.Accountant,
	voice *xp.VoiceTracker,
	decay *xp.DecayProcessor,
	reconciler *reconcile.Reconciler,
	polls *poll.Engine,
	ledger domain.MemberLedger,
	privileged domain.PrivilegeChecker,
	clock clockwork.Clock,
	quiet time.Duration,
) *Service {
	s := &Service{
		gate:       gate,
		accountant: accountant,
		voice:      voice,
		decay:      decay,
		reconciler: reconciler,
		polls:      polls,
		ledger:     ledger,
		privileged: privileged,
		clock:      clock,
	}
	s.debouncer = coordination.NewDebouncer(clock, quiet, func(ctx context.Context, communityID string) {
		if _, err := s.Reconcile(ctx, communityID, reconcile.TriggerDebounce); err != nil {
			slog.ErrorContext(ctx, "Debounced reconciliation failed", "community_id", communityID, "error", err)
		}
	})
	return s
}

// Stop cancels pending debounce timers and waits for in-flight fires.
func (s *Service) Stop() {
	s.debouncer.Stop()
}

// HandleChatMessage runs an observed message through the chat gate. The
// timestamp is the message's own, so live observation and historical replay
// share identical rate-limit behavior. A grant schedules a debounced
// reconciliation.
func (s *Service) HandleChatMessage(ctx context.Context, communityID, memberID, content string, authorIsBot bool, ts time.Time) (int, error) {
	granted, err := s.gate.HandleMessage(ctx, communityID, memberID, content, authorIsBot, ts)
	if err != nil {
		return 0, err
	}
	if granted > 0 {
		s.RequestReconcile(communityID)
	}
	return granted, nil
}

// AdminAdjust lets a privileged member change another member's XP directly,
// bypassing the bucket cap. The ceiling and zero floor still apply; the
// applied delta is returned.
func (s *Service) AdminAdjust(ctx context.Context, communityID, actorID, memberID string, delta int) (int, error) {
	ok, err := s.privileged(ctx, communityID, actorID)
	if err != nil {
		return 0, fmt.Errorf("failed to check privileges: %w", err)
	}
	if !ok {
		return 0, domain.ErrNotPrivileged
	}

	applied, err := s.accountant.Adjust(ctx, communityID, memberID, delta, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if applied != 0 {
		s.RequestReconcile(communityID)
	}
	return applied, nil
}

// RequestReconcile schedules a debounced reconciliation for the community.
// Requests during an already pending window are no-ops.
func (s *Service) RequestReconcile(communityID string) {
	s.debouncer.Request(communityID)
}

// Reconcile runs a full reconciliation pass now. Concurrent calls for the
// same community collapse into one pass.
func (s *Service) Reconcile(ctx context.Context, communityID, trigger string) (reconcile.Result, error) {
	res, err, _ := s.reconcileGroup.Do(communityID, func() (any, error) {
		return s.reconciler.Run(ctx, communityID, trigger)
	})
	if err != nil {
		return reconcile.Result{}, err
	}
	return res.(reconcile.Result), nil
}

// TickVoice accrues one voice minute for every eligible member of the
// community. Threshold crossings that actually granted XP schedule a
// debounced reconciliation.
func (s *Service) TickVoice(ctx context.Context, communityID string) (int, error) {
	awarded, err := s.voice.Tick(ctx, communityID)
	if awarded > 0 {
		s.RequestReconcile(communityID)
	}
	return awarded, err
}

// RunDecayPass decays the community's inactive members once. Changed rows
// schedule a debounced reconciliation.
func (s *Service) RunDecayPass(ctx context.Context, communityID string) (int, error) {
	changed, err := s.decay.RunPass(ctx, communityID)
	if changed > 0 {
		s.RequestReconcile(communityID)
	}
	return changed, err
}

// CreatePoll validates and opens a poll.
func (s *Service) CreatePoll(ctx context.Context, req poll.CreateRequest) (*domain.Poll, error) {
	return s.polls.Create(ctx, req)
}

// VotePoll records one member's vote. The first vote wins permanently.
func (s *Service) VotePoll(ctx context.Context, pollID uuid.UUID, voterID string, optionIndex int) error {
	return s.polls.Vote(ctx, pollID, voterID, optionIndex)
}

// Leaderboard returns the community's standings sorted by XP descending with
// member ID ascending as the tiebreak, truncated to limit entries. limit <= 0
// returns everything.
func (s *Service) Leaderboard(ctx context.Context, communityID string, limit int) ([]rank.Standing, error) {
	rows, err := s.ledger.ListByCommunity(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	standings := make([]rank.Standing, 0, len(rows))
	for _, rec := range rows {
		standings = append(standings, rank.Standing{MemberID: rec.MemberID, XP: rec.XP})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].XP != standings[j].XP {
			return standings[i].XP > standings[j].XP
		}
		return standings[i].MemberID < standings[j].MemberID
	})

	if limit > 0 && len(standings) > limit {
		standings = standings[:limit]
	}
	return standings, nil
}
