// Package discord binds the engine's collaborator interfaces to the Discord
// API via discordgo: guild rosters, role labels, voice presence, privilege
// checks, and the poll result presenter.
package discord

import (
	"context"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
)

const rosterPageSize = 1000

// Adapter implements domain.RosterProvider, domain.LabelActor, and
// domain.VoicePresence on a discordgo session.
type Adapter struct {
	session *discordgo.Session
}

func NewAdapter(session *discordgo.Session) *Adapter {
	return &Adapter{session: session}
}

// ListCommunities returns the IDs of all guilds the session is connected to.
func (a *Adapter) ListCommunities(_ context.Context) ([]string, error) {
	guilds := a.session.State.Guilds
	ids := make([]string, 0, len(guilds))
	for _, g := range guilds {
		ids = append(ids, g.ID)
	}
	return ids, nil
}

// ListNonBotMembers pages through the guild's full member list.
func (a *Adapter) ListNonBotMembers(ctx context.Context, communityID string) ([]string, error) {
	var ids []string
	after := ""
	for {
		page, err := a.session.GuildMembers(communityID, after, rosterPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list guild members: %w", err)
		}
		if len(page) == 0 {
			return ids, nil
		}

		for _, m := range page {
			if m.User == nil || m.User.Bot {
				continue
			}
			ids = append(ids, m.User.ID)
		}
		after = page[len(page)-1].User.ID

		if len(page) < rosterPageSize {
			return ids, nil
		}
	}
}

func (a *Adapter) HasLabel(ctx context.Context, communityID, memberID, label string) (bool, error) {
	member, err := a.member(ctx, communityID, memberID)
	if err != nil {
		return false, err
	}
	return slices.Contains(member.Roles, label), nil
}

func (a *Adapter) AddLabel(ctx context.Context, communityID, memberID, label string) error {
	if err := a.session.GuildMemberRoleAdd(communityID, memberID, label, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}
	return nil
}

func (a *Adapter) RemoveLabel(ctx context.Context, communityID, memberID, label string) error {
	if err := a.session.GuildMemberRoleRemove(communityID, memberID, label, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}
	return nil
}

// ListEligibleVoiceMembers returns members currently accruing voice time:
// connected, not a bot, not deafened, and sharing a channel with at least one
// other human.
func (a *Adapter) ListEligibleVoiceMembers(ctx context.Context, communityID string) ([]string, error) {
	guild, err := a.session.State.Guild(communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to read guild state: %w", err)
	}

	byChannel := make(map[string][]string)
	deafened := make(map[string]bool)
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == "" {
			continue
		}
		isBot, err := a.isBot(ctx, communityID, vs.UserID)
		if err != nil {
			return nil, err
		}
		if isBot {
			continue
		}
		byChannel[vs.ChannelID] = append(byChannel[vs.ChannelID], vs.UserID)
		deafened[vs.UserID] = vs.Deaf || vs.SelfDeaf
	}

	var eligible []string
	for _, humans := range byChannel {
		if len(humans) < 2 {
			continue
		}
		for _, id := range humans {
			if !deafened[id] {
				eligible = append(eligible, id)
			}
		}
	}
	return eligible, nil
}

// PrivilegeChecker returns a predicate that reports whether a member holds
// one of the admin roles.
func (a *Adapter) PrivilegeChecker(adminRoles []string) func(ctx context.Context, communityID, memberID string) (bool, error) {
	return func(ctx context.Context, communityID, memberID string) (bool, error) {
		member, err := a.member(ctx, communityID, memberID)
		if err != nil {
			return false, err
		}
		for _, role := range member.Roles {
			if slices.Contains(adminRoles, role) {
				return true, nil
			}
		}
		return false, nil
	}
}

// member prefers the state cache and falls back to the REST API.
func (a *Adapter) member(ctx context.Context, communityID, memberID string) (*discordgo.Member, error) {
	if member, err := a.session.State.Member(communityID, memberID); err == nil {
		return member, nil
	}

	member, err := a.session.GuildMember(communityID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild member: %w", err)
	}
	return member, nil
}

func (a *Adapter) isBot(ctx context.Context, communityID, memberID string) (bool, error) {
	member, err := a.member(ctx, communityID, memberID)
	if err != nil {
		return false, err
	}
	return member.User != nil && member.User.Bot, nil
}
