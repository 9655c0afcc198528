// Package approval implements the exec-approval lifecycle core: parsing
// approval prompts out of gateway message text, tracking pending requests
// in memory with TTL expiry, and correlating resolution confirmations back
// to a pending request.
package approval

import "time"

// Action is the terminal outcome of an approval.
type Action string

const (
	// ActionAllowOnce allows the command for this request only.
	ActionAllowOnce Action = "allow-once"
	// ActionAllowAlways allows the command and adds it to the allowlist.
	ActionAllowAlways Action = "allow-always"
	// ActionDeny denies the command.
	ActionDeny Action = "deny"
)

// Info is the structured form of an exec approval prompt. It exists only if
// the source text carried the approval marker and an ID; every other field
// is best-effort with a documented default.
type Info struct {
	ID       string
	Command  string
	CWD      string
	Host     string
	Agent    string
	Security string
	Ask      string
	Expires  string
}

// Handle is an opaque channel-specific reference to a delivered approval
// message, used to later edit it. It is a closed set: one variant per
// supported channel.
type Handle interface {
	isDeliveryHandle()
}

// TelegramHandle references a delivered Telegram message.
type TelegramHandle struct {
	ChatID    int64
	MessageID int
}

func (TelegramHandle) isDeliveryHandle() {}

// SlackHandle references a delivered Slack message.
type SlackHandle struct {
	Channel   string // Slack channel ID
	Timestamp string // message ts, Slack's edit/delete key
}

func (SlackHandle) isDeliveryHandle() {}

// Pending is a tracked approval awaiting resolution. Owned exclusively by
// the Store; callers receive it back from Resolve/Entries and on expiry.
type Pending struct {
	Channel string // channel tag the request was delivered to
	Handle  Handle
	Info    Info
	SentAt  time.Time
}
