package signals

import (
	"context"
	"errors"
	"math"
	"testing"
)

// #region mock

// mockEmbedder returns pre-configured embeddings or errors.
type mockEmbedder struct {
	embeddings map[string][]float32
	err        error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	if emb, ok := m.embeddings[text]; ok {
		return emb, nil
	}
	return nil, errors.New("no embedding for: " + text)
}

type mockEmotion struct {
	analysis EmotionAnalysis
	err      error
}

func (m *mockEmotion) AnalyzeEmotion(context.Context, string) (EmotionAnalysis, error) {
	return m.analysis, m.err
}

type failingLinguistics struct{}

func (failingLinguistics) AnalyzeLinguistics(context.Context, string) (LinguisticOutput, error) {
	return LinguisticOutput{}, errors.New("nlp service down")
}

// #endregion mock

// #region emotion-tests

func TestEmotion_ProviderFailureUsesDefaults(t *testing.T) {
	p := NewProducer(&mockEmotion{err: errors.New("timeout")}, nil, nil, DefaultProducerConfig())
	out := p.Emotion(context.Background(), "anything")

	if out.Available {
		t.Fatal("expected unavailable emotion output")
	}
	if out.DominantLabel != "neutral" || out.DominantScore != 0.5 {
		t.Fatalf("expected neutral/0.5, got %s/%f", out.DominantLabel, out.DominantScore)
	}
	if math.Abs(out.Color.Norm()-1) > 1e-9 {
		t.Fatalf("expected unit color vector, got norm %f", out.Color.Norm())
	}
}

func TestEmotion_NilProvider(t *testing.T) {
	p := NewProducer(nil, nil, nil, DefaultProducerConfig())
	out := p.Emotion(context.Background(), "hello")
	if out.DominantScore != DefaultScore {
		t.Fatalf("expected default score, got %f", out.DominantScore)
	}
	if out.Embedding != nil {
		t.Fatal("expected nil embedding without embedder")
	}
}

func TestEmotion_EmbedderFailureDegrades(t *testing.T) {
	emb := &mockEmbedder{err: errors.New("down")}
	p := NewProducer(LexiconEmotion{}, emb, nil, DefaultProducerConfig())
	out := p.Emotion(context.Background(), "what a wonderful day")
	if !out.Available {
		t.Fatal("emotion should still be available")
	}
	if out.Embedding != nil {
		t.Fatal("expected nil embedding on embedder error")
	}
}

func TestEmotion_UsesEmbedding(t *testing.T) {
	text := "plain words"
	emb := &mockEmbedder{embeddings: map[string][]float32{text: {1, 0, 0, 0, 0, 0, 0, 0.5}}}
	p := NewProducer(&mockEmotion{analysis: EmotionAnalysis{Label: "neutral", Score: 0.9,
		AllScores: map[string]float64{"neutral": 0.9}}}, emb, nil, DefaultProducerConfig())

	out := p.Emotion(context.Background(), text)

	if len(out.Embedding) != 8 {
		t.Fatalf("expected embedding of len 8, got %d", len(out.Embedding))
	}
	if out.Color[0] <= 0 {
		t.Fatalf("expected red band raised by embedding, got %f", out.Color[0])
	}
}

// #endregion emotion-tests

// #region linguistic-tests

func TestLinguistic_ProviderFailureUsesDefaults(t *testing.T) {
	p := NewProducer(nil, nil, failingLinguistics{}, DefaultProducerConfig())
	out := p.Linguistic(context.Background(), "some text")
	if out.Available {
		t.Fatal("expected unavailable linguistic output")
	}
	if len(out.Concepts) != 0 || out.Features.TokenCount != 0 {
		t.Fatalf("expected empty defaults, got %+v", out)
	}
	if out.Features.POSHistogram == nil {
		t.Fatal("histogram should be non-nil")
	}
}

func TestNormalizeLinguistic_FillsLemmas(t *testing.T) {
	out := NormalizeLinguistic(LinguisticOutput{
		Concepts:      []Concept{{Name: "Violence"}},
		Relationships: []Relationship{{Subject: "a", Predicate: "Attacks", Object: "b"}},
	}, "t", nil)
	if out.Concepts[0].Lemma != "violence" {
		t.Fatalf("expected lowercased lemma, got %q", out.Concepts[0].Lemma)
	}
	if out.Relationships[0].PredicateLemma != "attacks" {
		t.Fatalf("expected predicate lemma, got %q", out.Relationships[0].PredicateLemma)
	}
}

// #endregion linguistic-tests

// #region normalize-tests

func TestNormalizeEmotion_PicksDominantAndClamps(t *testing.T) {
	out := NormalizeEmotion(EmotionAnalysis{AllScores: map[string]float64{
		"Joy":     1.4,
		"sadness": math.NaN(),
		"fear":    0.2,
	}}, nil)
	if out.DominantLabel != "joy" || out.DominantScore != 1 {
		t.Fatalf("expected joy/1, got %s/%f", out.DominantLabel, out.DominantScore)
	}
	if out.AllScores["sadness"] != 0 {
		t.Fatalf("expected NaN clamped to 0, got %f", out.AllScores["sadness"])
	}
}

func TestNormalizeEmotion_EmptyAnswer(t *testing.T) {
	out := NormalizeEmotion(EmotionAnalysis{}, nil)
	if out.DominantLabel != DefaultLabel || out.DominantScore != DefaultScore {
		t.Fatalf("expected defaults, got %s/%f", out.DominantLabel, out.DominantScore)
	}
}

// #endregion normalize-tests
