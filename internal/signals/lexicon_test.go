package signals

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, text string) LinguisticOutput {
	t.Helper()
	out, err := LexiconLinguistics{}.AnalyzeLinguistics(context.Background(), text)
	require.NoError(t, err)
	return out
}

func lemmas(cs []Concept) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Lemma)
	}
	return out
}

func TestLexiconLinguistics_ProhibitedWordsBecomeConcepts(t *testing.T) {
	out := analyze(t, "I will use violence and deception to get what I want")

	assert.Equal(t, 11, out.Features.TokenCount)
	assert.Contains(t, lemmas(out.Concepts), "violence")
	assert.Contains(t, lemmas(out.Concepts), "deception")
	assert.NotContains(t, lemmas(out.Concepts), "i")
	assert.Len(t, out.Patterns.Command, 2)
	assert.Empty(t, out.Patterns.Harm)
}

func TestLexiconLinguistics_VirtueConcepts(t *testing.T) {
	out := analyze(t, "I practice wisdom and virtue")

	var virtues []string
	for _, c := range out.Concepts {
		if c.Category == "virtue" {
			virtues = append(virtues, c.Lemma)
		}
	}
	assert.Equal(t, []string{"wisdom", "virtue"}, virtues)
	require.Len(t, out.Relationships, 1)
	assert.Equal(t, "practice", out.Relationships[0].PredicateLemma)
	assert.Equal(t, "I", out.Relationships[0].Subject)
	assert.Equal(t, "wisdom", out.Relationships[0].Object)
	assert.GreaterOrEqual(t, out.DistinctPOS(), 3)
}

func TestLexiconLinguistics_HarmAndEthicalPatterns(t *testing.T) {
	out := analyze(t, "They attacked the village. We demand justice and respect.")

	require.Len(t, out.Patterns.Harm, 1)
	assert.Equal(t, "attack", out.Patterns.Harm[0].Lemma)
	assert.Len(t, out.Patterns.Ethical, 2)
	assert.Equal(t, []string{"They attacked the village", "We demand justice and respect"}, out.Features.Sentences)
}

func TestLexiconLinguistics_ProperNounEntity(t *testing.T) {
	out := analyze(t, "I visited Paris with Maria")

	require.Len(t, out.Entities, 2)
	assert.Equal(t, "Paris", out.Entities[0].Text)
	assert.Equal(t, "PROPER", out.Concepts[1].EntityType)
}

func TestLexiconLinguistics_Empty(t *testing.T) {
	out := analyze(t, "")
	assert.Zero(t, out.Features.TokenCount)
	assert.Empty(t, out.Concepts)
	assert.Empty(t, out.Features.Sentences)
}

func TestLemmatize(t *testing.T) {
	cases := map[string]struct {
		pos  string
		want string
	}{
		"running":     {"VERB", "run"},
		"wanted":      {"VERB", "want"},
		"practices":   {"NOUN", "practice"},
		"virtues":     {"NOUN", "virtue"},
		"stories":     {"NOUN", "story"},
		"was":         {"AUX", "be"},
		"kindness":    {"NOUN", "kindness"},
		"manipulated": {"VERB", "manipulat"},
	}
	for in, tc := range cases {
		assert.Equal(t, tc.want, lemmatize(in, tc.pos), in)
	}
}

func TestLexiconEmotion(t *testing.T) {
	ctx := context.Background()

	a, err := LexiconEmotion{}.AnalyzeEmotion(ctx, "What a wonderful and beautiful day, no stress")
	require.NoError(t, err)
	assert.Equal(t, "joy", a.Label)
	assert.InDelta(t, 2.0/3.0, a.Score, 1e-9)

	a, err = LexiconEmotion{}.AnalyzeEmotion(ctx, "the weather report")
	require.NoError(t, err)
	assert.Equal(t, "neutral", a.Label)
	assert.Equal(t, 0.5, a.Score)

	assert.Equal(t, 0.0, SentimentRatio("I hate this awful pain"))
	assert.Equal(t, 0.5, SentimentRatio("nothing here"))
}

func TestColorVector_UnitNorm(t *testing.T) {
	cfg := DefaultProducerConfig()
	cases := []struct {
		name   string
		scores map[string]float64
		emb    []float32
		text   string
	}{
		{"joy", map[string]float64{"joy": 0.9}, nil, ""},
		{"mixed", map[string]float64{"anger": 0.3, "love": 0.6, "unknown": 1}, []float32{1, 2, 3, 4, 5, 6, 7}, "calm trust"},
		{"keywords only", nil, nil, "harmony and inspiration"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := ColorVector(tc.scores, tc.emb, tc.text, cfg)
			assert.InDelta(t, 1.0, v.Norm(), 1e-9)
		})
	}
}

func TestColorVector_ZeroFallsBackToUniform(t *testing.T) {
	v := ColorVector(map[string]float64{"unknown": 1}, nil, "", DefaultProducerConfig())
	for _, x := range v {
		assert.InDelta(t, 1/math.Sqrt(7), x, 1e-12)
	}
}

func TestColorVector_DominantBand(t *testing.T) {
	v := ColorVector(map[string]float64{"sadness": 0.9, "joy": 0.1}, nil, "", DefaultProducerConfig())
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	assert.Equal(t, 5, best, "sadness maps to indigo")
}
