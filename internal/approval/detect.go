package approval

import "strings"

// shortIDLen is the prefix length accepted as a short-form ID reference.
const shortIDLen = 8

// Detect scans pending entries for one referenced by text, either by full ID
// or by its first-8-character short form, and infers the action from keyword
// signals. The first structural match wins; short-form collisions between
// simultaneously pending IDs are not disambiguated.
//
// When an ID reference is found with no recognizable action keyword the
// action defaults to allow-once. That lenience is deliberate: resolution
// confirmations routinely phrase approval in free text, and a matched ID
// with ambiguous wording is far more likely an approval than noise.
func Detect(text string, pending map[string]*Pending) (string, Action, bool) {
	for id := range pending {
		if strings.Contains(text, id) {
			return id, inferAction(text), true
		}
		if len(id) >= shortIDLen && strings.Contains(text, id[:shortIDLen]) {
			return id, inferAction(text), true
		}
	}
	return "", "", false
}

// inferAction maps free-text keywords to an action, in precedence order.
func inferAction(text string) Action {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "allow-always"), strings.Contains(lower, "always allow"):
		return ActionAllowAlways
	case strings.Contains(lower, "deny"), strings.Contains(lower, "rejected"):
		return ActionDeny
	case strings.Contains(lower, "allow-once"), strings.Contains(lower, "allowed"):
		return ActionAllowOnce
	case strings.Contains(lower, "approved"):
		return ActionAllowOnce
	}
	return ActionAllowOnce
}
