package interaction

import "strings"

// PreferenceKey is the soul preference under which stated preferences are kept.
const PreferenceKey = "stated_preference"

// preferencePatterns are phrases that signal an explicit preference statement.
var preferencePatterns = []string{
	"i prefer",
	"i like",
	"i'd like",
	"i would like",
	"please always",
	"please never",
	"keep it",
	"be more",
	"be less",
}

// DetectPreference reports whether text states a preference and returns the
// statement trimmed of trailing punctuation.
func DetectPreference(text string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return "", false
	}
	for _, pat := range preferencePatterns {
		if strings.Contains(lower, pat) {
			return strings.TrimRight(strings.TrimSpace(text), ".!?"), true
		}
	}
	return "", false
}
