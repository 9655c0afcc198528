package gateway

import (
	"context"
	"encoding/json"

	"github.com/nextlevelbuilder/clawrelay/internal/approval"
	"github.com/nextlevelbuilder/clawrelay/pkg/protocol"
)

// ResolveHook answers a message.sending event with pass or suppress.
func (c *Client) ResolveHook(ctx context.Context, hookID, decision string) error {
	_, err := c.Request(ctx, protocol.MethodHookResolve, protocol.HookResolveParams{
		HookID:   hookID,
		Decision: decision,
	})
	return err
}

// ResolveApproval propagates an approval action to the gateway, which owns
// the actual exec decision.
func (c *Client) ResolveApproval(ctx context.Context, id string, action approval.Action) error {
	if action == approval.ActionDeny {
		_, err := c.Request(ctx, protocol.MethodApprovalDeny, protocol.ApprovalResolveParams{ID: id})
		return err
	}
	_, err := c.Request(ctx, protocol.MethodApprovalApprove, protocol.ApprovalResolveParams{
		ID:     id,
		Always: action == approval.ActionAllowAlways,
	})
	return err
}

// Status queries the gateway for the bridge status snapshot it exposes to
// operators via status.get.
func (c *Client) Status(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, protocol.MethodStatusGet, nil)
}
