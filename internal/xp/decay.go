package xp

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/guildpulse/internal/coordination"
	"github.com/pscheid92/guildpulse/internal/domain"
	"github.com/pscheid92/guildpulse/internal/metrics"
)

// DecayConfig holds the decay rules. Floor is the value decay may never push
// a member under once they have reached it; members who never reached it
// decay toward zero.
type DecayConfig struct {
	Rate       float64
	MinDecay   int
	Floor      int
	Grace      time.Duration
	BatchSize  int
	BatchPause time.Duration
}

// DecayProcessor ages out inactive members' XP in periodic batch passes.
type DecayProcessor struct {
	ledger domain.MemberLedger
	locks  *coordination.CommunityLocks
	clock  clockwork.Clock
	cfg    DecayConfig
}

func NewDecayProcessor(ledger domain.MemberLedger, locks *coordination.CommunityLocks, clock clockwork.Clock, cfg DecayConfig) *DecayProcessor {
	return &DecayProcessor{ledger: ledger, locks: locks, clock: clock, cfg: cfg}
}

// RunPass decays every eligible member of the community once and returns how
// many rows changed. The community lock is released between batches so live
// awards are not starved by a long scan; each row is re-read under the lock
// before writing, so an award landing mid-sweep is never overwritten with
// stale state.
func (p *DecayProcessor) RunPass(ctx context.Context, communityID string) (int, error) {
	start := p.clock.Now()
	defer func() {
		metrics.DecayPassesTotal.Inc()
		metrics.DecayPassDurationSeconds.Observe(p.clock.Since(start).Seconds())
	}()

	rows, err := p.ledger.ListByCommunity(ctx, communityID)
	if err != nil {
		return 0, fmt.Errorf("failed to list members: %w", err)
	}

	batchSize := p.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(rows)
	}

	now := p.clock.Now()
	changed := 0
	for offset := 0; offset < len(rows); offset += batchSize {
		end := min(offset+batchSize, len(rows))

		n, err := p.decayBatch(ctx, communityID, rows[offset:end], now)
		changed += n
		if err != nil {
			return changed, err
		}

		if end < len(rows) && p.cfg.BatchPause > 0 {
			p.clock.Sleep(p.cfg.BatchPause)
		}
	}

	metrics.DecayedMembersTotal.Add(float64(changed))
	return changed, nil
}

func (p *DecayProcessor) decayBatch(ctx context.Context, communityID string, batch []*domain.MemberRecord, now time.Time) (int, error) {
	release := p.locks.Acquire(communityID)
	defer release()

	changed := 0
	for _, listed := range batch {
		rec, err := p.ledger.GetOrCreate(ctx, communityID, listed.MemberID)
		if err != nil {
			return changed, fmt.Errorf("failed to load member record: %w", err)
		}

		newXP, ok := p.decayed(rec, now)
		if !ok {
			continue
		}

		rec.XP = newXP
		if err := p.ledger.Save(ctx, rec); err != nil {
			return changed, fmt.Errorf("failed to persist member record: %w", err)
		}
		changed++
	}
	return changed, nil
}

// decayed computes the post-decay XP, returning ok=false if the row is
// skipped or unchanged.
func (p *DecayProcessor) decayed(rec *domain.MemberRecord, now time.Time) (int, bool) {
	if rec.XP <= 0 {
		return 0, false
	}
	if now.Sub(rec.LastActive) < p.cfg.Grace {
		return 0, false
	}

	loss := max(int(float64(rec.XP)*p.cfg.Rate), p.cfg.MinDecay)
	newXP := rec.XP - loss
	if rec.XP >= p.cfg.Floor {
		newXP = max(newXP, p.cfg.Floor)
	} else {
		newXP = max(newXP, 0)
	}

	if newXP == rec.XP {
		return 0, false
	}
	return newXP, true
}
