package constants

import "strings"

// Action names a lifecycle event a webhook can subscribe to.
type Action string

const (
	ActionUpload     Action = "upload"
	ActionCompletion Action = "completion"
)

// legacy spellings still found in stored subscriptions
var actionAliases = map[Action][]string{
	ActionCompletion: {"conclusao"},
}

// Names returns the canonical name of a followed by its accepted aliases.
func (a Action) Names() []string {
	return append([]string{string(a)}, actionAliases[a]...)
}

// ParseActions splits a comma-separated action list into trimmed, lowercased tokens.
func ParseActions(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// HasAction reports whether the comma-separated list contains a exactly as a token.
// Substring matches such as "uploads" do not count.
func HasAction(actions string, a Action) bool {
	names := a.Names()
	for _, tok := range ParseActions(actions) {
		for _, n := range names {
			if tok == n {
				return true
			}
		}
	}
	return false
}
