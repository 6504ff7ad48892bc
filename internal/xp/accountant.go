package xp

import (
	"context"
	"fmt"
	"time"

	"github.com/pscheid92/guildpulse/internal/coordination"
	"github.com/pscheid92/guildpulse/internal/domain"
	"github.com/pscheid92/guildpulse/internal/metrics"
)

// AccountantConfig holds the award bounds. BucketSeconds defines the
// fixed-width rate window; PerBucketCap bounds the XP any member can gain
// within one window, across all sources.
type AccountantConfig struct {
	MaxXP         int
	BucketSeconds int64
	PerBucketCap  int
}

// Accountant applies bounded, rate-limited awards to ledger rows.
type Accountant struct {
	ledger domain.MemberLedger
	locks  *coordination.CommunityLocks
	cfg    AccountantConfig
}

func NewAccountant(ledger domain.MemberLedger, locks *coordination.CommunityLocks, cfg AccountantConfig) *Accountant {
	return &Accountant{ledger: ledger, locks: locks, cfg: cfg}
}

// Award grants up to amount XP to the member at the given timestamp and
// returns how much was actually granted after the per-bucket cap.
//
// The timestamp is explicit so that historical backfill and live observation
// share identical rate-limit semantics. Two calls with identical arguments
// award twice (bounded by the cap): each call represents a distinct
// qualifying event, and deduplication is the caller's job.
//
// The row is persisted even when nothing was granted - bucket bookkeeping
// must be durable, otherwise a restart would hand back consumed headroom.
func (a *Accountant) Award(ctx context.Context, communityID, memberID string, amount int, ts time.Time) (int, error) {
	return a.award(ctx, "chat", communityID, memberID, amount, ts)
}

// AwardVoice is Award with the voice source tag. Voice shares the chat
// bucket: both paths draw from the same per-bucket headroom.
func (a *Accountant) AwardVoice(ctx context.Context, communityID, memberID string, amount int, ts time.Time) (int, error) {
	return a.award(ctx, "voice", communityID, memberID, amount, ts)
}

func (a *Accountant) award(ctx context.Context, source, communityID, memberID string, amount int, ts time.Time) (int, error) {
	if amount < 0 {
		return 0, domain.ErrNegativeAmount
	}

	release := a.locks.Acquire(communityID)
	defer release()

	rec, err := a.ledger.GetOrCreate(ctx, communityID, memberID)
	if err != nil {
		return 0, fmt.Errorf("failed to load member record: %w", err)
	}

	bucket := ts.Unix() / a.cfg.BucketSeconds
	if bucket != rec.RateBucket {
		rec.RateBucket = bucket
		rec.RateEarned = 0
	}

	headroom := a.cfg.PerBucketCap - rec.RateEarned
	if headroom < 0 {
		headroom = 0
	}
	granted := min(amount, headroom)

	rec.RateEarned += granted
	rec.XP = clamp(rec.XP+granted, 0, a.cfg.MaxXP)
	if granted > 0 {
		rec.LastActive = ts
	}

	if err := a.ledger.Save(ctx, rec); err != nil {
		return 0, fmt.Errorf("failed to persist member record: %w", err)
	}

	if granted > 0 {
		metrics.AwardsTotal.WithLabelValues(source, "granted").Inc()
		metrics.PointsGrantedTotal.WithLabelValues(source).Add(float64(granted))
	} else {
		metrics.AwardsTotal.WithLabelValues(source, "capped").Inc()
	}

	return granted, nil
}

// Adjust sets XP directly by delta, bypassing the bucket cap. Used by
// privileged admin operations only; the ceiling and zero floor still apply.
func (a *Accountant) Adjust(ctx context.Context, communityID, memberID string, delta int, ts time.Time) (int, error) {
	release := a.locks.Acquire(communityID)
	defer release()

	rec, err := a.ledger.GetOrCreate(ctx, communityID, memberID)
	if err != nil {
		return 0, fmt.Errorf("failed to load member record: %w", err)
	}

	before := rec.XP
	rec.XP = clamp(rec.XP+delta, 0, a.cfg.MaxXP)
	if rec.XP > before {
		rec.LastActive = ts
	}

	if err := a.ledger.Save(ctx, rec); err != nil {
		return 0, fmt.Errorf("failed to persist member record: %w", err)
	}

	applied := rec.XP - before
	if applied > 0 {
		metrics.AwardsTotal.WithLabelValues("admin", "granted").Inc()
		metrics.PointsGrantedTotal.WithLabelValues("admin").Add(float64(applied))
	}
	return applied, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
