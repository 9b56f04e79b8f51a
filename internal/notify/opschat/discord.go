package opschat

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo methods we use, enabling test mocks.
type discordSession interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSender posts alerts to one Discord channel over the REST API.
// No gateway connection is opened; sending does not require one.
type DiscordSender struct {
	session   discordSession
	channelID string
}

// DiscordOpts holds parameters for creating a DiscordSender.
type DiscordOpts struct {
	Token     string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session discordSession
}

// NewDiscord creates a Discord alert sender.
func NewDiscord(opts DiscordOpts) (*DiscordSender, error) {
	if opts.Session == nil && opts.Token == "" {
		return nil, fmt.Errorf("opschat: discord token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("opschat: discord channel is required")
	}
	d := &DiscordSender{channelID: opts.ChannelID, session: opts.Session}
	if d.session == nil {
		session, err := discordgo.New("Bot " + opts.Token)
		if err != nil {
			return nil, fmt.Errorf("opschat: discord session: %w", err)
		}
		d.session = session
	}
	return d, nil
}

// SendAlert posts one alert as a red embed.
func (d *DiscordSender) SendAlert(ctx context.Context, title, body string) error {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: body,
		Color:       0xc0392b,
	}
	_, err := d.session.ChannelMessageSendEmbed(d.channelID, embed,
		discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("opschat: discord post: %w", err)
	}
	return nil
}
