// Package slack delivers exec approval requests as Block Kit messages.
// Button interactions are handled by the gateway's own Slack surface; the
// bridge learns the outcome from the gateway's outgoing confirmation text,
// which the resolution detector correlates back to the pending entry.
package slack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/nextlevelbuilder/clawrelay/internal/approval"
	"github.com/nextlevelbuilder/clawrelay/internal/channels"
)

// Config holds the Slack channel settings.
type Config struct {
	BotToken string
	Channel  string // destination channel ID for approval requests
}

// Channel posts approval requests to a fixed Slack channel and rewrites
// them in place on resolve/expire.
type Channel struct {
	api     *slack.Client
	channel string
	limiter *channels.SendLimiter
}

func New(cfg Config) *Channel {
	return &Channel{
		api:     slack.New(cfg.BotToken),
		channel: cfg.Channel,
		limiter: channels.NewSendLimiter(50, 5),
	}
}

func (c *Channel) Name() string { return channels.Slack }

// Stop releases the outbound rate limiter. Safe to call twice.
func (c *Channel) Stop() { c.limiter.Stop() }

// DeliverRequest posts the interactive approval message. The returned
// handle carries the message timestamp, Slack's key for later edits.
func (c *Channel) DeliverRequest(ctx context.Context, info approval.Info) (approval.Handle, error) {
	if err := c.limiter.Wait(ctx, c.channel); err != nil {
		return nil, err
	}

	blocks, fallback := requestBlocks(info)
	channelID, ts, err := c.api.PostMessageContext(ctx, c.channel,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return nil, fmt.Errorf("post approval request: %w", err)
	}

	slog.Info("slack approval request delivered",
		"id", info.ID, "channel", channelID, "ts", ts)
	return approval.SlackHandle{Channel: channelID, Timestamp: ts}, nil
}

// UpdateResolved rewrites the delivered message with the outcome.
func (c *Channel) UpdateResolved(ctx context.Context, handle approval.Handle, info approval.Info, action approval.Action) error {
	blocks, fallback := resolvedBlocks(info, action)
	return c.update(ctx, handle, blocks, fallback)
}

// UpdateExpired rewrites the delivered message as expired.
func (c *Channel) UpdateExpired(ctx context.Context, handle approval.Handle, info approval.Info) error {
	blocks, fallback := expiredBlocks(info)
	return c.update(ctx, handle, blocks, fallback)
}

func (c *Channel) update(ctx context.Context, handle approval.Handle, blocks []slack.Block, fallback string) error {
	h, ok := handle.(approval.SlackHandle)
	if !ok {
		return fmt.Errorf("slack: unexpected handle type %T", handle)
	}
	if err := c.limiter.Wait(ctx, h.Channel); err != nil {
		return err
	}

	_, _, _, err := c.api.UpdateMessageContext(ctx, h.Channel, h.Timestamp,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return fmt.Errorf("update approval message %s: %w", h.Timestamp, err)
	}
	return nil
}

// Healthy verifies the bot token via auth.test.
func (c *Channel) Healthy(ctx context.Context) error {
	_, err := c.api.AuthTestContext(ctx)
	return err
}
