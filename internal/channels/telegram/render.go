package telegram

import (
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/clawrelay/internal/approval"
)

const (
	// commandPreviewMax keeps the rendered command block well under
	// Telegram's 4096-char message limit even with all metadata lines.
	commandPreviewMax = 3000

	shortIDLen = 8
)

// Callback data layout: "apr|<verb>|<id>". Telegram caps callback data at
// 64 bytes; verb max 6 chars + UUID 36 chars fits.
const (
	callbackPrefix = "apr"
	verbOnce       = "once"
	verbAlways     = "always"
	verbDeny       = "deny"
)

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// renderRequest builds the HTML body of an approval request message.
func renderRequest(info approval.Info) string {
	var b strings.Builder
	b.WriteString("⚠️ <b>Exec approval required</b>\n\n")
	fmt.Fprintf(&b, "<pre>%s</pre>\n\n", htmlEscaper.Replace(truncateCommand(info.Command)))
	fmt.Fprintf(&b, "ID: <code>%s</code>\n", htmlEscaper.Replace(info.ID))
	fmt.Fprintf(&b, "CWD: <code>%s</code>\n", htmlEscaper.Replace(info.CWD))
	fmt.Fprintf(&b, "Host: %s · Agent: %s\n", htmlEscaper.Replace(info.Host), htmlEscaper.Replace(info.Agent))
	fmt.Fprintf(&b, "Security: %s · Ask: %s · Expires in: %s",
		htmlEscaper.Replace(info.Security), htmlEscaper.Replace(info.Ask), htmlEscaper.Replace(info.Expires))
	return b.String()
}

// renderResolved builds the HTML body of a resolved approval message.
func renderResolved(info approval.Info, action approval.Action) string {
	icon := "✅"
	if action == approval.ActionDeny {
		icon = "⛔"
	}
	return fmt.Sprintf("%s <b>Exec approval %s</b>\n\n<pre>%s</pre>\n\nID: <code>%s</code>",
		icon, action,
		htmlEscaper.Replace(truncateCommand(info.Command)),
		htmlEscaper.Replace(info.ID))
}

// renderExpired builds the HTML body of an expired approval message.
func renderExpired(info approval.Info) string {
	return fmt.Sprintf("⏰ <b>Exec approval expired</b>\n\n<pre>%s</pre>\n\nID: <code>%s</code>",
		htmlEscaper.Replace(truncateCommand(info.Command)),
		htmlEscaper.Replace(info.ID))
}

// approvalKeyboard builds the inline button row for a pending approval.
func approvalKeyboard(id string) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("✅ Allow once").WithCallbackData(callbackData(verbOnce, id)),
			tu.InlineKeyboardButton("♾ Always").WithCallbackData(callbackData(verbAlways, id)),
			tu.InlineKeyboardButton("⛔ Deny").WithCallbackData(callbackData(verbDeny, id)),
		),
	)
}

func callbackData(verb, id string) string {
	return callbackPrefix + "|" + verb + "|" + id
}

// parseCallbackData reverses callbackData. Returns ok=false for callback
// payloads that are not approval buttons.
func parseCallbackData(data string) (id string, action approval.Action, ok bool) {
	parts := strings.SplitN(data, "|", 3)
	if len(parts) != 3 || parts[0] != callbackPrefix || parts[2] == "" {
		return "", "", false
	}
	switch parts[1] {
	case verbOnce:
		return parts[2], approval.ActionAllowOnce, true
	case verbAlways:
		return parts[2], approval.ActionAllowAlways, true
	case verbDeny:
		return parts[2], approval.ActionDeny, true
	}
	return "", "", false
}

func truncateCommand(cmd string) string {
	if len(cmd) <= commandPreviewMax {
		return cmd
	}
	return cmd[:commandPreviewMax] + "…"
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}
