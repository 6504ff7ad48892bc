package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pscheid92/guildpulse/internal/platform/correlation"
)

// ChatSink receives observed guild messages. The message's own timestamp is
// forwarded so live traffic and gateway replays behave identically.
type ChatSink interface {
	HandleChatMessage(ctx context.Context, communityID, memberID, content string, authorIsBot bool, ts time.Time) (int, error)
}

// BindMessageEvents registers the gateway handler that feeds guild messages
// into the chat sink. Direct messages carry no guild ID and are ignored.
func BindMessageEvents(session *discordgo.Session, sink ChatSink) {
	session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.GuildID == "" || m.Author == nil {
			return
		}

		ctx := correlation.Tag(context.Background())
		if _, err := sink.HandleChatMessage(ctx, m.GuildID, m.Author.ID, m.Content, m.Author.Bot, m.Timestamp); err != nil {
			slog.ErrorContext(ctx, "Failed to handle chat message",
				"community_id", m.GuildID, "member_id", m.Author.ID, "error", err)
		}
	})
}
