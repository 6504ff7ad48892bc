package domain

// Tier is one of a small set of mutually exclusive rank markers. Tiers are
// derived, never stored: they are a pure function of the community's XP
// snapshot at reconciliation time.
type Tier string

const (
	TierEntry Tier = "entry"
	TierMid   Tier = "mid"
	TierUpper Tier = "upper"
	TierTop   Tier = "top"
)

// TierLabels maps each tier to the external label it corresponds to. The
// manually granted prestige label is deliberately absent: the engine overlays
// it for display but never assigns or revokes it.
type TierLabels struct {
	Entry string
	Mid   string
	Upper string
	Top   string
}

// For returns the label for a tier.
func (l TierLabels) For(t Tier) string {
	switch t {
	case TierTop:
		return l.Top
	case TierUpper:
		return l.Upper
	case TierMid:
		return l.Mid
	default:
		return l.Entry
	}
}

// All returns the tier labels in a fixed order.
func (l TierLabels) All() []string {
	return []string{l.Entry, l.Mid, l.Upper, l.Top}
}
