// Package opschat mirrors emergency maintenance alerts to operations
// chat channels (Slack, Discord). Outbound only; best-effort.
package opschat

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackSender posts alerts to one Slack channel.
type SlackSender struct {
	client    slackClient
	channelID string
}

// SlackOpts holds parameters for creating a SlackSender.
type SlackOpts struct {
	Token     string
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a Slack alert sender.
func NewSlack(opts SlackOpts) (*SlackSender, error) {
	if opts.Client == nil && opts.Token == "" {
		return nil, fmt.Errorf("opschat: slack token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("opschat: slack channel is required")
	}
	s := &SlackSender{channelID: opts.ChannelID, client: opts.Client}
	if s.client == nil {
		s.client = slackapi.New(opts.Token)
	}
	return s, nil
}

// SendAlert posts one alert as an attachment with a red sidebar.
func (s *SlackSender) SendAlert(ctx context.Context, title, body string) error {
	attachment := slackapi.Attachment{
		Color: "#c0392b",
		Title: title,
		Text:  body,
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channelID,
		slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("opschat: slack post: %w", err)
	}
	return nil
}
