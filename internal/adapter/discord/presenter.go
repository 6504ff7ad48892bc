package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/pscheid92/guildpulse/internal/domain"
)

// Presenter posts final poll tallies to the poll's channel. Tallies are never
// shown before closure; this is the single reveal.
type Presenter struct {
	session *discordgo.Session
}

func NewPresenter(session *discordgo.Session) *Presenter {
	return &Presenter{session: session}
}

func (p *Presenter) RevealResult(ctx context.Context, poll *domain.Poll, tally []int) error {
	total := 0
	for _, n := range tally {
		total += n
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Poll closed:** %s\n", poll.Question)
	for i, option := range poll.Options {
		votes := 0
		if i < len(tally) {
			votes = tally[i]
		}
		fmt.Fprintf(&b, "%d. %s - %d vote(s)\n", i+1, option, votes)
	}
	fmt.Fprintf(&b, "Total votes: %d", total)

	_, err := p.session.ChannelMessageSend(poll.ChannelID, b.String(), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to post poll result: %w", err)
	}
	return nil
}
