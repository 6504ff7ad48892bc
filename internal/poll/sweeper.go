package poll

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/guildpulse/internal/coordination"
	"github.com/pscheid92/guildpulse/internal/platform/correlation"
)

// Sweeper drives the periodic closure sweep. When a SweepLeader is provided
// the sweep only runs while this instance holds leadership, so overlapping
// instances don't both edit the reveal message.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	clock    clockwork.Clock
	leader   *coordination.SweepLeader
	leading  bool
	stopCh   chan struct{}
}

// NewSweeper creates the closure sweep loop. leader may be nil for
// single-instance deployments.
func NewSweeper(engine *Engine, interval time.Duration, clock clockwork.Clock, leader *coordination.SweepLeader) *Sweeper {
	return &Sweeper{
		engine:   engine,
		interval: interval,
		clock:    clock,
		leader:   leader,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			s.sweep(ctx)
		case <-s.stopCh:
			s.release(ctx)
			slog.Info("Poll sweeper stopped")
			return
		case <-ctx.Done():
			s.release(ctx)
			slog.Info("Poll sweeper context cancelled")
			return
		}
	}
}

// Stop gracefully stops the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) sweep(ctx context.Context) {
	ctx = correlation.Tag(ctx)
	if !s.ensureLeadership(ctx) {
		return
	}

	closed, err := s.engine.CloseDuePolls(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Poll closure sweep failed", "error", err)
		return
	}
	if closed > 0 {
		slog.InfoContext(ctx, "Poll closure sweep finished", "closed", closed)
	}
}

// ensureLeadership acquires or renews the sweep lease. Without a leader
// elector every instance sweeps; the poll ledger's closed-flag commit still
// guarantees at most one reveal per poll.
func (s *Sweeper) ensureLeadership(ctx context.Context) bool {
	if s.leader == nil {
		return true
	}

	if s.leading {
		if err := s.leader.Renew(ctx); err != nil {
			slog.WarnContext(ctx, "Lost sweep leadership", "error", err)
			s.leading = false
		} else {
			return true
		}
	}

	ok, err := s.leader.TryAcquire(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Sweep leadership acquisition failed", "error", err)
		return false
	}
	s.leading = ok
	return ok
}

func (s *Sweeper) release(ctx context.Context) {
	if s.leader == nil || !s.leading {
		return
	}
	if err := s.leader.Release(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to release sweep leadership", "error", err)
	}
	s.leading = false
}
