package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/guildpulse/internal/coordination"
	"github.com/pscheid92/guildpulse/internal/domain"
	"github.com/pscheid92/guildpulse/internal/platform/correlation"
	"github.com/pscheid92/guildpulse/internal/reconcile"
)

// Scheduler drives the periodic sweeps: voice accrual ticks, decay passes,
// and the safety-net scheduled reconciliation. When a SweepLeader is provided
// the sweeps only run while this instance holds leadership.
type Scheduler struct {
	service *Service
	roster  domain.RosterProvider
	clock   clockwork.Clock
	leader  *coordination.SweepLeader

	voiceInterval     time.Duration
	decayInterval     time.Duration
	reconcileInterval time.Duration

	mu      sync.Mutex
	leading bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates the sweep scheduler. leader may be nil for
// single-instance deployments.
func NewScheduler(service *Service, roster domain.RosterProvider, clock clockwork.Clock, leader *coordination.SweepLeader, voiceInterval, decayInterval, reconcileInterval time.Duration) *Scheduler {
	return &Scheduler{
		service:           service,
		roster:            roster,
		clock:             clock,
		leader:            leader,
		voiceInterval:     voiceInterval,
		decayInterval:     decayInterval,
		reconcileInterval: reconcileInterval,
		stopCh:            make(chan struct{}),
	}
}

// Start launches the sweep loops. It returns immediately; Stop shuts the
// loops down and waits for in-flight sweeps to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.loop(ctx, s.voiceInterval, s.voiceSweep)
	s.loop(ctx, s.decayInterval, s.decaySweep)
	s.loop(ctx, s.reconcileInterval, s.reconcileSweep)
}

// Stop gracefully stops all sweep loops.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, sweep func(ctx context.Context)) {
	if interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := s.clock.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.Chan():
				tickCtx := correlation.Tag(ctx)
				if !s.ensureLeadership(tickCtx) {
					continue
				}
				sweep(tickCtx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// eachCommunity runs fn per community. A failure in one community is logged
// and never blocks the others.
func (s *Scheduler) eachCommunity(ctx context.Context, name string, fn func(ctx context.Context, communityID string) error) {
	communities, err := s.roster.ListCommunities(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list communities for sweep", "sweep", name, "error", err)
		return
	}

	for _, communityID := range communities {
		if err := fn(ctx, communityID); err != nil {
			slog.ErrorContext(ctx, "Sweep failed for community", "sweep", name, "community_id", communityID, "error", err)
		}
	}
}

func (s *Scheduler) voiceSweep(ctx context.Context) {
	s.eachCommunity(ctx, "voice", func(ctx context.Context, communityID string) error {
		_, err := s.service.TickVoice(ctx, communityID)
		return err
	})
}

func (s *Scheduler) decaySweep(ctx context.Context) {
	s.eachCommunity(ctx, "decay", func(ctx context.Context, communityID string) error {
		changed, err := s.service.RunDecayPass(ctx, communityID)
		if changed > 0 {
			slog.InfoContext(ctx, "Decay pass reduced members", "community_id", communityID, "changed", changed)
		}
		return err
	})
}

// reconcileSweep is the drift safety net: even without any debounced trigger,
// every community converges eventually.
func (s *Scheduler) reconcileSweep(ctx context.Context) {
	s.eachCommunity(ctx, "reconcile", func(ctx context.Context, communityID string) error {
		_, err := s.service.Reconcile(ctx, communityID, reconcile.TriggerSchedule)
		return err
	})
}

func (s *Scheduler) ensureLeadership(ctx context.Context) bool {
	if s.leader == nil {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.leading {
		err := s.leader.Renew(ctx)
		if err == nil {
			return true
		}
		slog.WarnContext(ctx, "Lost sweep leadership", "error", err)
		s.leading = false
	}

	ok, err := s.leader.TryAcquire(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Sweep leadership acquisition failed", "error", err)
		return false
	}
	s.leading = ok
	return ok
}
