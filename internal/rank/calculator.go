// Package rank derives tier assignments from an XP snapshot. The computation
// is pure: identical snapshots always produce identical assignments.
package rank

import (
	"sort"

	"github.com/pscheid92/guildpulse/internal/domain"
)

// Standing is one member's XP at snapshot time.
type Standing struct {
	MemberID string
	XP       int
}

// Config holds the cutoff rules. ExitThreshold separates Entry from the
// competitive pool; within the pool the top N members are Top and the next M
// are Upper.
type Config struct {
	ExitThreshold int
	TopN          int
	NextM         int
}

// ComputeTiers assigns a tier to every member of the snapshot.
//
// Members below the exit threshold are Entry regardless of relative standing.
// The rest are ordered by XP descending with member ID ascending as the
// tiebreak, which fixes a total order so cutoffs are deterministic. Because
// the ranking is competitive, it must always run over the full member set:
// a single XP change can shift who occupies the top N.
//
// The manually granted prestige label is outside this function entirely - it
// is overlaid for display elsewhere and never feeds the cutoffs.
func ComputeTiers(standings []Standing, cfg Config) map[string]domain.Tier {
	tiers := make(map[string]domain.Tier, len(standings))

	ranked := make([]Standing, 0, len(standings))
	for _, s := range standings {
		if s.XP < cfg.ExitThreshold {
			tiers[s.MemberID] = domain.TierEntry
			continue
		}
		ranked = append(ranked, s)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].XP != ranked[j].XP {
			return ranked[i].XP > ranked[j].XP
		}
		return ranked[i].MemberID < ranked[j].MemberID
	})

	for i, s := range ranked {
		switch {
		case i < cfg.TopN:
			tiers[s.MemberID] = domain.TierTop
		case i < cfg.TopN+cfg.NextM:
			tiers[s.MemberID] = domain.TierUpper
		default:
			tiers[s.MemberID] = domain.TierMid
		}
	}

	return tiers
}
