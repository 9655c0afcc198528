// Package channels defines the channel abstraction the bridge delivers
// approval messages through, and a registry mapping gateway channel tags to
// concrete senders.
package channels

import (
	"context"

	"github.com/nextlevelbuilder/clawrelay/internal/approval"
)

// Channel tags as they appear in gateway message.sending events.
const (
	Telegram = "telegram"
	Slack    = "slack"
)

// Sender delivers and updates approval messages on one chat platform.
type Sender interface {
	// Name returns the gateway channel tag this sender serves.
	Name() string

	// DeliverRequest renders and sends the interactive approval request.
	// On success it returns the handle needed to later edit the message.
	DeliverRequest(ctx context.Context, info approval.Info) (approval.Handle, error)

	// UpdateResolved rewrites the delivered message with the outcome.
	UpdateResolved(ctx context.Context, handle approval.Handle, info approval.Info, action approval.Action) error

	// UpdateExpired rewrites the delivered message as expired.
	UpdateExpired(ctx context.Context, handle approval.Handle, info approval.Info) error

	// Healthy probes platform reachability with the configured credentials.
	Healthy(ctx context.Context) error
}

// Resolver is injected into senders that support interactive buttons. It
// propagates a button press to the gateway and closes the local entry.
type Resolver func(ctx context.Context, id string, action approval.Action) error
