package xp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/guildpulse/internal/coordination"
	"github.com/pscheid92/guildpulse/internal/domain"
)

// VoiceConfig holds the voice accrual rules: one minute accrues per tick,
// and every ThresholdMinutes accrued minutes convert into one award of
// VoiceXP, drawn from the same per-bucket cap as chat.
type VoiceConfig struct {
	ThresholdMinutes int
	VoiceXP          int
}

// VoiceTracker accrues voice minutes for eligible members on each tick.
type VoiceTracker struct {
	accountant *Accountant
	ledger     domain.MemberLedger
	locks      *coordination.CommunityLocks
	presence   domain.VoicePresence
	clock      clockwork.Clock
	cfg        VoiceConfig
}

func NewVoiceTracker(accountant *Accountant, ledger domain.MemberLedger, locks *coordination.CommunityLocks, presence domain.VoicePresence, clock clockwork.Clock, cfg VoiceConfig) *VoiceTracker {
	return &VoiceTracker{
		accountant: accountant,
		ledger:     ledger,
		locks:      locks,
		presence:   presence,
		clock:      clock,
		cfg:        cfg,
	}
}

// Tick scans the community's eligible voice members and accrues one minute
// each. Members crossing the threshold have their accumulator reset and
// receive one voice award. Returns how many members were awarded.
func (t *VoiceTracker) Tick(ctx context.Context, communityID string) (int, error) {
	// Presence is an external call; it must complete before any lock is held.
	memberIDs, err := t.presence.ListEligibleVoiceMembers(ctx, communityID)
	if err != nil {
		return 0, fmt.Errorf("failed to list voice members: %w", err)
	}

	awarded := 0
	for _, memberID := range memberIDs {
		due, err := t.accrueMinute(ctx, communityID, memberID)
		if err != nil {
			return awarded, err
		}
		if !due {
			continue
		}

		granted, err := t.accountant.AwardVoice(ctx, communityID, memberID, t.cfg.VoiceXP, t.clock.Now())
		if err != nil {
			return awarded, err
		}
		if granted > 0 {
			awarded++
		} else {
			slog.DebugContext(ctx, "voice award fully capped", "community_id", communityID, "member_id", memberID)
		}
	}
	return awarded, nil
}

func (t *VoiceTracker) accrueMinute(ctx context.Context, communityID, memberID string) (due bool, err error) {
	release := t.locks.Acquire(communityID)
	defer release()

	rec, err := t.ledger.GetOrCreate(ctx, communityID, memberID)
	if err != nil {
		return false, fmt.Errorf("failed to load member record: %w", err)
	}

	rec.VoiceMinutes++
	if rec.VoiceMinutes >= t.cfg.ThresholdMinutes {
		rec.VoiceMinutes = 0
		due = true
	}

	if err := t.ledger.Save(ctx, rec); err != nil {
		return false, fmt.Errorf("failed to persist member record: %w", err)
	}
	return due, nil
}
