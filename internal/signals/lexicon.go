package signals

import (
	"context"
	"strings"
	"unicode"
)

// #region word-lists

var positiveWords = wordSet("good", "great", "love", "happy", "joy", "wonderful", "excellent",
	"amazing", "beautiful", "blessed", "peace", "kind", "compassion", "wisdom", "understanding")

var negativeWords = wordSet("bad", "hate", "sad", "terrible", "awful", "pain", "anger",
	"fear", "anxiety", "worry", "stress")

var harmLemmas = wordSet("harm", "hurt", "damage", "destroy", "kill", "attack")

var ethicalLemmas = wordSet("respect", "dignity", "fairness", "justice", "equality", "rights")

var virtueWords = wordSet("wisdom", "knowledge", "love", "compassion", "justice", "truth",
	"virtue", "faith", "hope", "charity", "temperance", "prudence", "fortitude", "courage",
	"patience", "kindness")

var closedClass = map[string]string{
	"i": "PRON", "me": "PRON", "my": "PRON", "mine": "PRON", "myself": "PRON",
	"you": "PRON", "your": "PRON", "yours": "PRON", "we": "PRON", "us": "PRON",
	"our": "PRON", "they": "PRON", "them": "PRON", "their": "PRON", "he": "PRON",
	"him": "PRON", "his": "PRON", "she": "PRON", "her": "PRON", "it": "PRON",
	"its": "PRON", "what": "PRON", "who": "PRON", "whom": "PRON", "nothing": "PRON",
	"something": "PRON", "everything": "PRON", "anything": "PRON", "someone": "PRON",
	"everyone": "PRON", "anyone": "PRON",

	"the": "DET", "a": "DET", "an": "DET", "this": "DET", "that": "DET", "these": "DET",
	"those": "DET", "some": "DET", "any": "DET", "every": "DET", "each": "DET", "all": "DET",

	"in": "ADP", "on": "ADP", "at": "ADP", "by": "ADP", "for": "ADP", "from": "ADP",
	"into": "ADP", "of": "ADP", "to": "ADP", "with": "ADP", "about": "ADP", "over": "ADP",
	"under": "ADP", "through": "ADP", "without": "ADP", "after": "ADP", "before": "ADP",

	"and": "CCONJ", "or": "CCONJ", "but": "CCONJ", "nor": "CCONJ", "yet": "CCONJ",
	"if": "SCONJ", "because": "SCONJ", "while": "SCONJ", "although": "SCONJ",
	"than": "SCONJ", "as": "SCONJ", "when": "SCONJ", "so": "SCONJ",

	"is": "AUX", "are": "AUX", "was": "AUX", "were": "AUX", "be": "AUX", "been": "AUX",
	"being": "AUX", "am": "AUX", "do": "AUX", "does": "AUX", "did": "AUX", "have": "AUX",
	"has": "AUX", "had": "AUX", "will": "AUX", "would": "AUX", "could": "AUX",
	"should": "AUX", "may": "AUX", "might": "AUX", "can": "AUX", "shall": "AUX",
	"must": "AUX",

	"not": "PART", "no": "PART",
	"very": "ADV", "really": "ADV", "always": "ADV", "never": "ADV", "often": "ADV",
	"also": "ADV", "too": "ADV", "then": "ADV", "here": "ADV", "there": "ADV",
	"please": "INTJ", "hello": "INTJ", "hi": "INTJ", "thanks": "INTJ",
}

var verbLexicon = wordSet("use", "get", "want", "practice", "help", "make", "take", "give",
	"know", "learn", "think", "feel", "need", "go", "come", "see", "find", "tell", "ask",
	"try", "work", "hate", "seek", "build", "create", "steal", "lie", "manipulate",
	"hurt", "harm", "kill", "attack", "destroy", "damage", "respect", "guide", "assist",
	"thank", "appreciate", "believe", "share", "show", "teach", "understand", "deceive",
	"abuse", "read", "write", "study", "pray", "forgive", "protect", "grow", "explain")

var irregularLemmas = map[string]string{
	"was": "be", "were": "be", "is": "be", "are": "be", "am": "be", "been": "be",
	"did": "do", "does": "do", "has": "have", "had": "have", "got": "get", "went": "go",
	"made": "make", "took": "take", "gave": "give", "knew": "know", "thought": "think",
	"felt": "feel", "stole": "steal", "taught": "teach", "sought": "seek", "found": "find",
	"people": "person", "children": "child", "men": "man", "women": "woman",
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// #endregion word-lists

// #region lexicon-emotion

// LexiconEmotion is the basic-mode emotion provider: a positive/negative
// word ratio mapped onto joy, sadness or neutral.
type LexiconEmotion struct{}

// AnalyzeEmotion implements EmotionProvider.
func (LexiconEmotion) AnalyzeEmotion(_ context.Context, text string) (EmotionAnalysis, error) {
	var pos, neg int
	for _, tok := range words(text) {
		w := strings.ToLower(tok.text)
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	if pos+neg == 0 {
		return EmotionAnalysis{
			Label:     DefaultLabel,
			Score:     DefaultScore,
			AllScores: map[string]float64{DefaultLabel: DefaultScore},
		}, nil
	}
	ratio := float64(pos) / float64(pos+neg)
	scores := map[string]float64{"joy": ratio, "sadness": 1 - ratio}
	label, score := dominant(scores)
	return EmotionAnalysis{Label: label, Score: score, AllScores: scores}, nil
}

// SentimentRatio returns pos/(pos+neg) over the basic word lists, 0.5 when
// neither list matches.
func SentimentRatio(text string) float64 {
	a, _ := LexiconEmotion{}.AnalyzeEmotion(context.Background(), text)
	if s, ok := a.AllScores["joy"]; ok {
		return s
	}
	return DefaultScore
}

// #endregion lexicon-emotion

// #region lexicon-linguistics

// LexiconLinguistics is the basic-mode linguistic provider. It tags tokens
// with a closed-class table and suffix heuristics, extracts capitalised,
// virtue and content-word concepts, and pairs verbs with the nearest
// nominal on either side.
type LexiconLinguistics struct {
	MaxKeyLemmas int
}

type token struct {
	text     string
	lemma    string
	pos      string
	sentence int
	initial  bool // first word of its sentence
}

// AnalyzeLinguistics implements LinguisticProvider.
func (l LexiconLinguistics) AnalyzeLinguistics(_ context.Context, text string) (LinguisticOutput, error) {
	maxKey := l.MaxKeyLemmas
	if maxKey <= 0 {
		maxKey = 10
	}

	toks := words(text)
	hist := make(map[string]int)
	for i := range toks {
		toks[i].pos = tagOf(toks[i])
		toks[i].lemma = lemmatize(strings.ToLower(toks[i].text), toks[i].pos)
		hist[toks[i].pos]++
	}

	out := LinguisticOutput{
		Text: text,
		Features: Features{
			TokenCount:   len(toks),
			POSHistogram: hist,
			Sentences:    sentences(text),
		},
	}

	seen := make(map[string]bool)
	for _, t := range toks {
		if !isContent(t.pos) {
			continue
		}
		if t.pos == "PROPN" && !t.initial {
			out.Entities = append(out.Entities, Entity{Text: t.text, Label: "MISC", Lemma: t.lemma})
		}
		if len(out.Features.KeyLemmas) < maxKey && len(t.lemma) >= 3 && !seen[t.lemma] {
			out.Features.KeyLemmas = append(out.Features.KeyLemmas, t.lemma)
		}
		if seen[t.lemma] || len(t.lemma) < 2 {
			continue
		}
		seen[t.lemma] = true
		out.Concepts = append(out.Concepts, conceptOf(t))
	}

	out.Relationships, out.Features.DependencyLabels = relationships(toks)
	out.Patterns = patterns(toks)
	return out, nil
}

func conceptOf(t token) Concept {
	c := Concept{Name: t.text, Lemma: t.lemma, POSTag: t.pos}
	switch {
	case virtueWords[t.lemma]:
		c.Name = t.lemma
		c.EntityType = "CONCEPT"
		c.Category = "virtue"
	case t.pos == "PROPN":
		c.EntityType = "PROPER"
		c.Category = "entity"
	default:
		c.Name = t.lemma
		c.EntityType = "LEMMA"
		c.Category = "key_lemma"
	}
	return c
}

func relationships(toks []token) ([]Relationship, []string) {
	var rels []Relationship
	var labels []string
	for i, t := range toks {
		if t.pos != "VERB" {
			continue
		}
		subj := nearest(toks, i, -1, t.sentence)
		obj := nearest(toks, i, 1, t.sentence)
		labels = append(labels, "ROOT")
		if subj >= 0 {
			labels = append(labels, "nsubj")
		}
		if obj >= 0 {
			labels = append(labels, "dobj")
		}
		if subj < 0 || obj < 0 {
			continue
		}
		rels = append(rels, Relationship{
			Subject:        toks[subj].text,
			Predicate:      t.text,
			PredicateLemma: t.lemma,
			Object:         toks[obj].text,
			DependencyType: "nsubj:dobj",
		})
	}
	return rels, labels
}

// nearest walks from i in direction dir within one sentence and returns the
// first nominal token, stopping at another verb.
func nearest(toks []token, i, dir, sentence int) int {
	for j := i + dir; j >= 0 && j < len(toks); j += dir {
		if toks[j].sentence != sentence || toks[j].pos == "VERB" {
			return -1
		}
		if isNominal(toks[j].pos) {
			return j
		}
	}
	return -1
}

func patterns(toks []token) PatternMatches {
	var pm PatternMatches
	for i, t := range toks {
		if harmLemmas[t.lemma] {
			pm.Harm = append(pm.Harm, PatternMatch{Text: t.text, Lemma: t.lemma})
		}
		if ethicalLemmas[t.lemma] {
			pm.Ethical = append(pm.Ethical, PatternMatch{Text: t.text, Lemma: t.lemma})
		}
		if t.pos == "VERB" && i+1 < len(toks) && toks[i+1].sentence == t.sentence && isNominal(toks[i+1].pos) {
			pm.Command = append(pm.Command, PatternMatch{Text: t.text + " " + toks[i+1].text, Lemma: t.lemma})
		}
	}
	return pm
}

// #endregion lexicon-linguistics

// #region tokenization

func words(text string) []token {
	var toks []token
	sentence := 0
	start := -1
	initial := true
	runes := []rune(text)
	flush := func(end int) {
		if start < 0 {
			return
		}
		w := strings.Trim(string(runes[start:end]), "'")
		if w != "" {
			toks = append(toks, token{text: w, sentence: sentence, initial: initial})
			initial = false
		}
		start = -1
	}
	for i, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
		if r == '.' || r == '!' || r == '?' {
			if !initial {
				sentence++
			}
			initial = true
		}
	}
	flush(len(runes))
	return toks
}

func sentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func tagOf(t token) string {
	w := strings.ToLower(t.text)
	if tag, ok := closedClass[w]; ok {
		return tag
	}
	r := []rune(t.text)
	switch {
	case unicode.IsDigit(r[0]):
		return "NUM"
	case unicode.IsUpper(r[0]) && !t.initial && len(r) > 1:
		return "PROPN"
	case verbLexicon[w] || verbLexicon[lemmatize(w, "VERB")]:
		return "VERB"
	case strings.HasSuffix(w, "ly") && len(w) > 4:
		return "ADV"
	case strings.HasSuffix(w, "ing") && len(w) > 5, strings.HasSuffix(w, "ed") && len(w) > 4:
		return "VERB"
	case strings.HasSuffix(w, "ful"), strings.HasSuffix(w, "ous"), strings.HasSuffix(w, "ive"), strings.HasSuffix(w, "able"):
		return "ADJ"
	default:
		return "NOUN"
	}
}

func lemmatize(w, pos string) string {
	if l, ok := irregularLemmas[w]; ok {
		return l
	}
	n := len(w)
	switch {
	case pos == "VERB" && strings.HasSuffix(w, "ing") && n > 5:
		return undouble(w[:n-3])
	case pos == "VERB" && strings.HasSuffix(w, "ied") && n > 4:
		return w[:n-3] + "y"
	case pos == "VERB" && strings.HasSuffix(w, "ed") && n > 4:
		return undouble(w[:n-2])
	case strings.HasSuffix(w, "ies") && n > 4:
		return w[:n-3] + "y"
	case strings.HasSuffix(w, "sses"):
		return w[:n-2]
	case strings.HasSuffix(w, "s") && n > 3 && !strings.HasSuffix(w, "ss") &&
		!strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		return w[:n-1]
	}
	return w
}

// undouble reduces a trailing doubled consonant left by suffix stripping.
func undouble(stem string) string {
	n := len(stem)
	if n >= 3 && stem[n-1] == stem[n-2] && !strings.ContainsRune("aeiouls", rune(stem[n-1])) {
		return stem[:n-1]
	}
	return stem
}

func isContent(pos string) bool {
	return pos == "NOUN" || pos == "VERB" || pos == "ADJ" || pos == "PROPN"
}

func isNominal(pos string) bool {
	return pos == "NOUN" || pos == "PROPN" || pos == "PRON"
}

// #endregion tokenization
