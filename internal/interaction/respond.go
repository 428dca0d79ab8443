package interaction

import (
	"fmt"
	"strings"
)

// #region keywords

var helpKeywords = []string{"help", "assist", "guide"}

var wisdomKeywords = []string{"wisdom", "knowledge", "learn"}

var gratitudeKeywords = []string{"thank", "grateful", "appreciate"}

// #endregion

// #region respond

// echoLimit is how many runes of the input a response repeats.
const echoLimit = 50

// Respond produces the canned reply for text via keyword heuristics.
// No model call.
func Respond(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, helpKeywords):
		return fmt.Sprintf("I'm here to help you. Processing: %s...", truncate(text, echoLimit))
	case containsAny(lower, wisdomKeywords):
		return fmt.Sprintf("Seeking wisdom is virtuous. Reflecting on: %s...", truncate(text, echoLimit))
	case containsAny(lower, gratitudeKeywords):
		return "Gratitude is a noble virtue. I'm glad to assist you."
	default:
		return fmt.Sprintf("Acknowledged. Processing your input: %s...", truncate(text, echoLimit))
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// #endregion
