/*
Package integration adapts the third-party services the bridge reports
to: Slack for operator chat, PagerDuty for alerts, OpenSearch for the
audit trail and Sentry for error capturing.

Every adapter satisfies a small interface owned by the package that
consumes it; nothing in here is required for the exchange itself to
work.
*/
package integration

import (
	"context"
	"errors"

	"github.com/slack-go/slack"
)

// SlackMessenger posts bridge events to a single channel.
type SlackMessenger struct {
	client  *slack.Client
	channel string
}

func NewSlackMessenger(token, channel string, opts ...slack.Option) (*SlackMessenger, error) {
	if token == "" {
		return nil, errors.New("slack token is required")
	}
	if channel == "" {
		return nil, errors.New("slack channel is required")
	}
	return &SlackMessenger{
		client:  slack.New(token, opts...),
		channel: channel,
	}, nil
}

func (m *SlackMessenger) SendMessage(ctx context.Context, text string) error {
	_, _, err := m.client.PostMessageContext(ctx, m.channel, slack.MsgOptionText(text, false))
	return err
}
