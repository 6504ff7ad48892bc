package domain

import "context"

// RosterProvider lists communities and their members. ListNonBotMembers is
// assumed complete and fresh on each call, and expensive: the reconciliation
// engine calls it at most once per pass.
type RosterProvider interface {
	ListCommunities(ctx context.Context) ([]string, error)
	ListNonBotMembers(ctx context.Context, communityID string) ([]string, error)
}

// VoicePresence reports members currently eligible for voice accrual: voice
// connected, not a bot, not deafened, in a channel with at least two humans.
type VoicePresence interface {
	ListEligibleVoiceMembers(ctx context.Context, communityID string) ([]string, error)
}

// LabelActor applies and observes external tier labels. Each operation is
// individually fallible; the reconciliation engine counts failures and relies
// on the next pass as its retry mechanism.
type LabelActor interface {
	HasLabel(ctx context.Context, communityID, memberID, label string) (bool, error)
	AddLabel(ctx context.Context, communityID, memberID, label string) error
	RemoveLabel(ctx context.Context, communityID, memberID, label string) error
}

// PrivilegeChecker reports whether a member may perform admin operations.
// Implementations bind it to whatever label scheme exists; the engine never
// inspects labels itself.
type PrivilegeChecker func(ctx context.Context, communityID, memberID string) (bool, error)
