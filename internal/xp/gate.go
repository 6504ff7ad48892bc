package xp

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/pscheid92/guildpulse/internal/domain"
)

// GateConfig holds the chat eligibility rules.
type GateConfig struct {
	MinChars int
	Cooldown time.Duration
	ChatXP   int
}

// ChatGate decides whether an observed message qualifies for a chat award.
// A message qualifies when it is long enough, its author is not a bot, and
// the member's cooldown has expired. The cooldown is armed only when the
// award actually granted XP, so a capped-out message does not delay the next
// eligible one.
type ChatGate struct {
	accountant *Accountant
	cooldowns  domain.ChatCooldowns
	cfg        GateConfig
}

func NewChatGate(accountant *Accountant, cooldowns domain.ChatCooldowns, cfg GateConfig) *ChatGate {
	return &ChatGate{accountant: accountant, cooldowns: cooldowns, cfg: cfg}
}

// HandleMessage applies the gate and, if the message qualifies, attempts one
// chat award at the message's timestamp. Returns the XP actually granted.
func (g *ChatGate) HandleMessage(ctx context.Context, communityID, memberID, content string, authorIsBot bool, ts time.Time) (int, error) {
	if authorIsBot {
		return 0, nil
	}
	if utf8.RuneCountInString(content) < g.cfg.MinChars {
		return 0, nil
	}

	active, err := g.cooldowns.Active(ctx, communityID, memberID)
	if err != nil {
		return 0, err
	}
	if active {
		return 0, nil
	}

	granted, err := g.accountant.Award(ctx, communityID, memberID, g.cfg.ChatXP, ts)
	if err != nil {
		return 0, err
	}

	if granted > 0 {
		if err := g.cooldowns.Arm(ctx, communityID, memberID, g.cfg.Cooldown); err != nil {
			// The award is already persisted; a lost cooldown only means the
			// member becomes eligible again sooner, still bounded by the
			// bucket cap.
			slog.WarnContext(ctx, "failed to arm chat cooldown", "community_id", communityID, "member_id", memberID, "error", err)
		}
	}

	return granted, nil
}
