package notifier

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/foxseedlab/kikitori/internal/notifier"
)

// DiscordNotifier posts transcript output to a fixed channel over the
// Discord REST API. No gateway connection is opened.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordNotifier(token, channelID string) (notifier.Notifier, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &DiscordNotifier{
		session:   s,
		channelID: channelID,
	}, nil
}

func (n *DiscordNotifier) PostLine(ctx context.Context, content string) error {
	if content == "" {
		return nil
	}
	_, err := n.session.ChannelMessageSend(n.channelID, content, discordgo.WithContext(ctx))
	return err
}

func (n *DiscordNotifier) PostTranscript(ctx context.Context, filename string, body []byte) error {
	_, err := n.session.ChannelMessageSendComplex(n.channelID, &discordgo.MessageSend{
		Files: []*discordgo.File{
			{Name: filename, ContentType: "text/plain", Reader: bytes.NewReader(body)},
		},
	}, discordgo.WithContext(ctx))
	return err
}

// noopNotifier is used when no Discord token is configured.
type noopNotifier struct{}

func NewNoopNotifier() notifier.Notifier {
	return &noopNotifier{}
}

func (n *noopNotifier) PostLine(_ context.Context, _ string) error { return nil }

func (n *noopNotifier) PostTranscript(_ context.Context, _ string, _ []byte) error { return nil }
