package slack

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/nextlevelbuilder/clawrelay/internal/approval"
)

const commandPreviewMax = 2500

// Button action IDs; the gateway's Slack surface handles the interaction
// payloads, so these only need to be stable identifiers.
const (
	actionAllowOnce   = "approval_allow_once"
	actionAllowAlways = "approval_allow_always"
	actionDeny        = "approval_deny"
)

// requestBlocks renders the approval request as Block Kit blocks plus a
// plain-text notification fallback.
func requestBlocks(info approval.Info) ([]slack.Block, string) {
	fallback := fmt.Sprintf("Exec approval required: %s (ID: %s)", info.Command, info.ID)

	header := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf(":warning: *Exec approval required*\n```%s```", codeSafe(truncateCommand(info.Command))),
			false, false),
		nil, nil)

	meta := slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("ID `%s` · CWD `%s` · Host %s · Agent %s", info.ID, info.CWD, info.Host, info.Agent),
			false, false),
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("Security %s · Ask %s · Expires in %s", info.Security, info.Ask, info.Expires),
			false, false),
	)

	actions := slack.NewActionBlock("approval_actions",
		slack.NewButtonBlockElement(actionAllowOnce, info.ID,
			slack.NewTextBlockObject(slack.PlainTextType, "Allow once", false, false)).
			WithStyle(slack.StylePrimary),
		slack.NewButtonBlockElement(actionAllowAlways, info.ID,
			slack.NewTextBlockObject(slack.PlainTextType, "Always allow", false, false)),
		slack.NewButtonBlockElement(actionDeny, info.ID,
			slack.NewTextBlockObject(slack.PlainTextType, "Deny", false, false)).
			WithStyle(slack.StyleDanger),
	)

	return []slack.Block{header, meta, actions}, fallback
}

// resolvedBlocks renders the outcome message that replaces the request.
func resolvedBlocks(info approval.Info, action approval.Action) ([]slack.Block, string) {
	icon := ":white_check_mark:"
	if action == approval.ActionDeny {
		icon = ":no_entry:"
	}
	fallback := fmt.Sprintf("Exec approval %s: %s (ID: %s)", action, info.Command, info.ID)

	body := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("%s *Exec approval %s*\n```%s```", icon, action, codeSafe(truncateCommand(info.Command))),
			false, false),
		nil, nil)
	meta := slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("ID `%s`", info.ID), false, false))

	return []slack.Block{body, meta}, fallback
}

// expiredBlocks renders the TTL-expiry outcome.
func expiredBlocks(info approval.Info) ([]slack.Block, string) {
	fallback := fmt.Sprintf("Exec approval expired: %s (ID: %s)", info.Command, info.ID)

	body := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf(":alarm_clock: *Exec approval expired*\n```%s```", codeSafe(truncateCommand(info.Command))),
			false, false),
		nil, nil)
	meta := slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("ID `%s`", info.ID), false, false))

	return []slack.Block{body, meta}, fallback
}

// codeSafe keeps a command from breaking out of its fenced block.
func codeSafe(cmd string) string {
	return strings.ReplaceAll(cmd, "```", "`​``")
}

func truncateCommand(cmd string) string {
	if len(cmd) <= commandPreviewMax {
		return cmd
	}
	return cmd[:commandPreviewMax] + "…"
}
