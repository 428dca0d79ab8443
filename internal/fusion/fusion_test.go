package fusion

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/gate"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/rules"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
)

func newArbiter() *Arbiter {
	return NewArbiter(gate.NewGate(gate.DefaultMatchConfig()), DefaultConfig())
}

func cleanBundle() signals.Bundle {
	return signals.Bundle{
		Mode: signals.ModeBasic,
		Emotion: signals.EmotionOutput{
			Available:     true,
			DominantLabel: "joy",
			DominantScore: 0.8,
			AllScores:     map[string]float64{"joy": 0.8},
			VectorID:      "chroma_u1_42",
			SimilarMemories: []signals.Memory{
				{ID: "chroma_u1_7", Similarity: 0.9},
			},
		},
		Linguistic: signals.LinguisticOutput{
			Available: true,
			Text:      "I practice wisdom and virtue",
			Features: signals.Features{
				TokenCount:   5,
				POSHistogram: map[string]int{"PRON": 1, "VERB": 1, "NOUN": 2, "CCONJ": 1},
				Sentences:    []string{"I practice wisdom and virtue"},
			},
			Concepts: []signals.Concept{
				{Name: "practice", Lemma: "practice"},
				{Name: "wisdom", Lemma: "wisdom"},
				{Name: "virtue", Lemma: "virtue"},
			},
		},
		Logging: signals.LoggingOutput{InteractionLogged: true, InteractionCount: 3, Response: "Seeking wisdom is virtuous."},
	}
}

// #region coherence-tests

func TestScoreFormula(t *testing.T) {
	in := CoherenceInputs{
		EmotionAvailable: true,
		DominantScore:    0.8,
		TokenCount:       5,
		DistinctPOS:      4,
		ConceptCount:     3,
		Logged:           true,
	}
	// linguistic = 0.5*min(1, 0.25*0.8) + 0.5*min(1, 0.3) = 0.1 + 0.15
	want := (0.33*0.8 + 0.34*0.25 + 0.33*1.0) / 1.0
	assert.InDelta(t, want, Score(in, DefaultWeights()), 1e-12)
}

func TestScoreFallbacks(t *testing.T) {
	sub := SubScores(CoherenceInputs{})
	assert.Equal(t, 0.5, sub[SourceEmotion])
	assert.Equal(t, 0.0, sub[SourceLinguistic])
	assert.Equal(t, 0.5, sub[SourceLogging])
}

func TestScoreCapsAndBounds(t *testing.T) {
	in := CoherenceInputs{
		EmotionAvailable: true,
		DominantScore:    3,
		TokenCount:       500,
		DistinctPOS:      12,
		ConceptCount:     40,
		EntityCount:      40,
		Logged:           true,
	}
	assert.Equal(t, 1.0, Score(in, DefaultWeights()))
	assert.Equal(t, 0.0, Score(in, Weights{}))
	assert.Equal(t, 0.0, Score(in, Weights{SourceEmotion: math.NaN()}))
}

func TestScoreNotNormalizedWeights(t *testing.T) {
	in := CoherenceInputs{EmotionAvailable: true, DominantScore: 1, Logged: true}
	w := Weights{SourceEmotion: 2, SourceLinguistic: 0, SourceLogging: 2}
	assert.InDelta(t, 1.0, Score(in, w), 1e-12)
}

// #endregion coherence-tests

// #region fuse-tests

func TestFuseAccepts(t *testing.T) {
	a := newArbiter()
	res := a.Fuse(context.Background(), cleanBundle(), rules.Default())

	require.True(t, res.Success)
	assert.Empty(t, res.Reason)
	assert.Nil(t, res.Details)
	assert.Greater(t, res.Coherence, 0.0)
	assert.LessOrEqual(t, res.Coherence, 1.0)
	assert.Equal(t, "joy", res.Sentiment.Label)
	assert.Len(t, res.Concepts, 3)
	assert.Equal(t, "Seeking wisdom is virtuous.", res.Response)
	assert.Equal(t, DefaultWeights(), res.WeightsUsed)
	assert.Equal(t, TriadSummary{
		Mode:             signals.ModeBasic,
		VectorID:         "chroma_u1_42",
		EmbeddingDim:     signals.Dim,
		SimilarCount:     1,
		ConceptCount:     3,
		EntityCount:      0,
		SentenceCount:    1,
		InteractionCount: 3,
	}, res.Summary)
	assert.False(t, res.Timestamp.IsZero())
}

func TestFuseRejects(t *testing.T) {
	a := newArbiter()
	b := cleanBundle()
	b.Linguistic.Text = "I will use violence and deception to get what I want"
	b.Linguistic.Concepts = []signals.Concept{
		{Name: "violence", Lemma: "violence"},
		{Name: "deception", Lemma: "deception"},
	}

	res := a.Fuse(context.Background(), b, rules.Default())

	assert.False(t, res.Success)
	assert.Equal(t, "Ethical violation", res.Reason)
	assert.Equal(t, 0.0, res.Coherence)
	require.NotNil(t, res.Details)
	assert.Len(t, res.Details.Violations, 2)
	assert.NotNil(t, res.Details.Warnings)
	assert.False(t, res.Compliance.Compliant)
}

func TestFuseUsesCurrentRules(t *testing.T) {
	a := newArbiter()
	rs := rules.Default()
	rs.ProhibitedConcepts = []string{"wisdom"}

	assert.False(t, a.Fuse(context.Background(), cleanBundle(), rs).Success)
	assert.True(t, a.Fuse(context.Background(), cleanBundle(), rules.Default()).Success)
}

// #endregion fuse-tests

// #region weight-tests

func TestUpdateWeights(t *testing.T) {
	a := newArbiter()
	w := a.UpdateWeights(map[Source]float64{SourceEmotion: 1})

	// emotion 0.33+0.05 = 0.38, sum 1.05
	assert.InDelta(t, 0.38/1.05, w[SourceEmotion], 1e-12)
	assert.InDelta(t, 0.34/1.05, w[SourceLinguistic], 1e-12)
	assert.InDelta(t, 1.0, w.Sum(), 1e-12)
	assert.Equal(t, w, a.Weights())
}

func TestUpdateWeightsStayInBounds(t *testing.T) {
	cfg := DefaultConfig()
	cases := []map[Source]float64{
		{SourceEmotion: -100, SourceLinguistic: -100},
		{SourceEmotion: 100, SourceLogging: -100},
		{SourceEmotion: 100, SourceLinguistic: 100},
		{SourceLogging: 100},
		{SourceLinguistic: -100},
		{SourceEmotion: 1e9, SourceLinguistic: -1e9, SourceLogging: 3},
	}
	for _, fb := range cases {
		a := newArbiter()
		// repeated feedback must not drift out of range either
		for i := 0; i < 5; i++ {
			w := a.UpdateWeights(fb)
			assert.InDelta(t, 1.0, w.Sum(), 1e-9, "feedback %v", fb)
			for src, v := range w {
				assert.GreaterOrEqual(t, v, cfg.MinWeight-1e-12, "%s under %v", src, fb)
				assert.LessOrEqual(t, v, cfg.MaxWeight+1e-12, "%s under %v", src, fb)
			}
		}
	}
}

func TestUpdateWeightsPinsAndRedistributes(t *testing.T) {
	a := newArbiter()
	w := a.UpdateWeights(map[Source]float64{SourceEmotion: -100, SourceLinguistic: -100})
	// logging pins at 0.6, the other two split the rest evenly
	assert.InDelta(t, 0.6, w[SourceLogging], 1e-9)
	assert.InDelta(t, 0.2, w[SourceEmotion], 1e-9)
	assert.InDelta(t, 0.2, w[SourceLinguistic], 1e-9)

	a = newArbiter()
	w = a.UpdateWeights(map[Source]float64{SourceEmotion: 100, SourceLogging: -100})
	// logging pins at 0.1, emotion and linguistic keep their 0.6:0.34 ratio
	assert.InDelta(t, 0.1, w[SourceLogging], 1e-9)
	assert.InDelta(t, 0.9*0.6/0.94, w[SourceEmotion], 1e-9)
	assert.InDelta(t, 0.9*0.34/0.94, w[SourceLinguistic], 1e-9)
}

func TestUpdateWeightsIgnoresUnknownAndNaN(t *testing.T) {
	a := newArbiter()
	w := a.UpdateWeights(map[Source]float64{"vision": 1, SourceEmotion: math.NaN()})
	assert.InDelta(t, 0.33, w[SourceEmotion], 1e-12)
	assert.Len(t, w, 3)
}

func TestWeightsReturnsCopy(t *testing.T) {
	a := newArbiter()
	w := a.Weights()
	w[SourceEmotion] = 99
	assert.InDelta(t, 0.33, a.Weights()[SourceEmotion], 1e-12)
}

func TestConcurrentFuseAndUpdate(t *testing.T) {
	a := newArbiter()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			a.Fuse(context.Background(), cleanBundle(), rules.Default())
		}()
		go func() {
			defer wg.Done()
			a.UpdateWeights(map[Source]float64{SourceLinguistic: 0.5})
		}()
	}
	wg.Wait()
	assert.InDelta(t, 1.0, a.Weights().Sum(), 1e-9)
}

// #endregion weight-tests
