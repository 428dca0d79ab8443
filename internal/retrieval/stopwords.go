package retrieval

import (
	"strings"
	"unicode"
)

// #region stopwords

// stopwords never serve as a graph entry point: function words plus the
// conversational filler that opens most requests.
var stopwords = func() map[string]bool {
	const list = `a about an and are as at be been being but by can could did do does
		for from had has have he her him how i if in into is it its may me might my
		no not of on or out shall she should so tell than that the them then they this
		to up us was we were what when where which who why will with would you your
		please just really also very much some any there here let know want need`
	set := make(map[string]bool)
	for _, w := range strings.Fields(list) {
		set[w] = true
	}
	return set
}()

// contentTokens returns the distinct lowercase words of text that are not
// stopwords, in order of first appearance.
func contentTokens(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	seen := make(map[string]bool, len(words))
	var out []string
	for _, w := range words {
		w = strings.Trim(w, "'")
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// #endregion stopwords
