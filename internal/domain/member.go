package domain

import (
	"context"
	"time"
)

// MemberRecord is one per (community, member). Rows are created lazily on
// first activity or first lookup and are never deleted; decay only lowers XP.
type MemberRecord struct {
	CommunityID string
	MemberID    string
	// XP is always within [0, MaxXP]. It reflects the sum of accepted awards
	// minus applied decay, each individually clamped.
	XP int
	// LastActive is the timestamp of the last award with granted > 0. Decay
	// uses it as a liveness signal; attempted-but-capped awards don't move it.
	LastActive time.Time
	// RateBucket identifies the fixed-width time window the rate counter
	// belongs to. RateEarned resets whenever the bucket changes.
	RateBucket int64
	RateEarned int
	// VoiceMinutes accrues toward the next voice XP tick.
	VoiceMinutes int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MemberLedger is the persistent row store for member records.
type MemberLedger interface {
	// GetOrCreate returns the record for (communityID, memberID), creating a
	// zero-XP row atomically if absent. Concurrent first access must not
	// duplicate rows.
	GetOrCreate(ctx context.Context, communityID, memberID string) (*MemberRecord, error)
	// Save persists the full record.
	Save(ctx context.Context, rec *MemberRecord) error
	// ListByCommunity returns every record of a community.
	ListByCommunity(ctx context.Context, communityID string) ([]*MemberRecord, error)
}

// ChatCooldowns tracks the per-member chat award cooldown. The cooldown is
// armed only when an award actually granted XP, so a capped-out message does
// not push the next eligible message further away.
type ChatCooldowns interface {
	Active(ctx context.Context, communityID, memberID string) (bool, error)
	Arm(ctx context.Context, communityID, memberID string, d time.Duration) error
}
