package protocol

// Events pushed from gateway to plugin.
const (
	// EventMessageSending fires before the gateway delivers an outgoing
	// message to a channel. The plugin must answer with hook.resolve.
	EventMessageSending = "message.sending"

	EventShutdown = "shutdown"
	EventTick     = "tick"
)

// Methods the plugin invokes on the gateway.
const (
	MethodConnect         = "connect"
	MethodHookResolve     = "hook.resolve"
	MethodApprovalApprove = "exec.approval.approve"
	MethodApprovalDeny    = "exec.approval.deny"
	MethodStatusGet       = "status.get"
)

// Hook decisions for hook.resolve.
const (
	DecisionPass     = "pass"
	DecisionSuppress = "suppress"
)

// MessageSendingPayload is the payload of a message.sending event.
type MessageSendingPayload struct {
	HookID  string `json:"hookId"`
	Channel string `json:"channel"` // channel tag, e.g. "telegram", "slack"
	Text    string `json:"text"`
}

// ConnectParams is the handshake request payload.
type ConnectParams struct {
	Token           string `json:"token,omitempty"`
	Client          string `json:"client"`
	ProtocolVersion int    `json:"protocolVersion"`
}

// HookResolveParams answers a message.sending event.
type HookResolveParams struct {
	HookID   string `json:"hookId"`
	Decision string `json:"decision"` // "pass" or "suppress"
}

// ApprovalResolveParams resolves a pending exec approval on the gateway.
type ApprovalResolveParams struct {
	ID     string `json:"id"`
	Always bool   `json:"always,omitempty"` // approve only: true = allow-always
}
