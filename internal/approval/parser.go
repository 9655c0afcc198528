package approval

import (
	"regexp"
	"strings"
)

// Field defaults used when the prompt omits a label.
const (
	defaultCommand  = "unknown"
	defaultCWD      = "unknown"
	defaultHost     = "gateway"
	defaultAgent    = "main"
	defaultSecurity = "allowlist"
	defaultAsk      = "on-miss"
	defaultExpires  = "120s"
)

var (
	markerRe = regexp.MustCompile(`(?i)exec approval required`)
	idRe     = regexp.MustCompile(`(?i)\bid:\s*([0-9a-f-]+)`)

	// Command extraction, two strategies in order: a fenced block after the
	// label (possibly multi-line), then a plain rest-of-line fallback.
	cmdBlockRe = regexp.MustCompile("(?is)command:\\s*```(?:[a-z]*\\n)?(.*?)```")
	cmdLineRe  = regexp.MustCompile(`(?im)^\s*command:[ \t]*(\S.*)$`)

	cwdRe      = fieldRe("cwd")
	hostRe     = fieldRe("host")
	agentRe    = fieldRe("agent")
	securityRe = fieldRe("security")
	askRe      = fieldRe("ask")
	expiresRe  = fieldRe("expires in")
)

// fieldRe builds a case-insensitive "Label: value" line matcher.
func fieldRe(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^\s*` + label + `:[ \t]*(\S.*)$`)
}

// Parse recovers a structured approval from loosely formatted prompt text.
// Returns nil unless the text carries the approval marker and an ID; all
// other fields degrade to their defaults when absent or malformed. Parse is
// a total function: it never panics on any input.
func Parse(text string) *Info {
	if !markerRe.MatchString(text) {
		return nil
	}

	m := idRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	return &Info{
		ID:       m[1],
		Command:  extractCommand(text),
		CWD:      extractField(cwdRe, text, defaultCWD),
		Host:     extractField(hostRe, text, defaultHost),
		Agent:    extractField(agentRe, text, defaultAgent),
		Security: extractField(securityRe, text, defaultSecurity),
		Ask:      extractField(askRe, text, defaultAsk),
		Expires:  extractField(expiresRe, text, defaultExpires),
	}
}

func extractCommand(text string) string {
	if m := cmdBlockRe.FindStringSubmatch(text); m != nil {
		if cmd := strings.TrimSpace(m[1]); cmd != "" {
			return cmd
		}
	}
	if m := cmdLineRe.FindStringSubmatch(text); m != nil {
		if cmd := strings.TrimSpace(m[1]); cmd != "" {
			return cmd
		}
	}
	return defaultCommand
}

func extractField(re *regexp.Regexp, text, fallback string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		if v := strings.TrimSpace(m[1]); v != "" {
			return v
		}
	}
	return fallback
}
