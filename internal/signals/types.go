package signals

import "context"

// Dim is the dimensionality of the affect (ROYGBIV) vector.
const Dim = 7

// Affect is a 7-component color-emotion vector: red, orange, yellow, green,
// blue, indigo, violet.
type Affect [Dim]float64

// #region mode

// Mode tags which analysis tier produced a bundle.
type Mode string

const (
	ModeBasic    Mode = "basic"
	ModeEnhanced Mode = "enhanced"
)

// #endregion mode

// #region provider-interfaces

// EmotionProvider classifies text into an emotion distribution.
type EmotionProvider interface {
	AnalyzeEmotion(ctx context.Context, text string) (EmotionAnalysis, error)
}

// Embedder abstracts the embedding RPC so the producer can be tested without gRPC.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LinguisticProvider extracts tokens, concepts, relationships and patterns.
type LinguisticProvider interface {
	AnalyzeLinguistics(ctx context.Context, text string) (LinguisticOutput, error)
}

// #endregion provider-interfaces

// #region emotion

// EmotionAnalysis is the raw provider answer before normalization.
type EmotionAnalysis struct {
	Label     string
	Score     float64
	AllScores map[string]float64
}

// Memory is a previously stored interaction similar to the current one.
type Memory struct {
	ID         string
	Similarity float64
	Metadata   map[string]any
}

// EmotionOutput is the emotion triad's contribution to a bundle.
type EmotionOutput struct {
	Available       bool // false when the provider failed and defaults were applied
	DominantLabel   string
	DominantScore   float64
	AllScores       map[string]float64
	Embedding       []float32
	Color           Affect
	VectorID        string
	SimilarMemories []Memory
}

// #endregion emotion

// #region linguistic

// Entity is a named entity recognized in the text.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Lemma string `json:"lemma,omitempty"`
}

// Concept is a salient term extracted from the text.
type Concept struct {
	Name       string `json:"name"`
	Lemma      string `json:"lemma"`
	EntityType string `json:"entity_type,omitempty"`
	POSTag     string `json:"pos_tag,omitempty"`
	Category   string `json:"category,omitempty"`
}

// Relationship is a subject-predicate-object triple.
type Relationship struct {
	Subject        string `json:"subject"`
	Predicate      string `json:"predicate"`
	PredicateLemma string `json:"predicate_lemma"`
	Object         string `json:"object"`
	DependencyType string `json:"dependency_type,omitempty"`
}

// PatternMatch is one token span matched by a pattern matcher.
type PatternMatch struct {
	Text  string `json:"text"`
	Lemma string `json:"lemma,omitempty"`
}

// PatternMatches groups matches by matcher.
type PatternMatches struct {
	Harm    []PatternMatch `json:"harm"`
	Ethical []PatternMatch `json:"ethical"`
	Command []PatternMatch `json:"command"`
}

// Features are the surface statistics of the analyzed text.
type Features struct {
	TokenCount       int            `json:"token_count"`
	POSHistogram     map[string]int `json:"pos_histogram"`
	Sentences        []string       `json:"sentences"`
	KeyLemmas        []string       `json:"key_lemmas"`
	DependencyLabels []string       `json:"dependency_labels,omitempty"`
}

// LinguisticOutput is the linguistic triad's contribution to a bundle.
type LinguisticOutput struct {
	Available     bool
	Text          string
	Features      Features
	Entities      []Entity
	Concepts      []Concept
	Relationships []Relationship
	Patterns      PatternMatches
}

// DistinctPOS returns the number of distinct part-of-speech tags observed.
func (l LinguisticOutput) DistinctPOS() int {
	n := 0
	for _, c := range l.Features.POSHistogram {
		if c > 0 {
			n++
		}
	}
	return n
}

// #endregion linguistic

// #region logging

// LoggingOutput is the logging triad's contribution to a bundle.
type LoggingOutput struct {
	InteractionLogged bool
	InteractionCount  int
	Response          string
	SessionID         string
}

// #endregion logging

// #region bundle

// Bundle carries the three triad outputs for one request.
type Bundle struct {
	Mode       Mode
	Emotion    EmotionOutput
	Linguistic LinguisticOutput
	Logging    LoggingOutput
}

// #endregion bundle

// #region config

// ProducerConfig holds tuning knobs for signal computation.
type ProducerConfig struct {
	Mode               Mode
	EmbeddingInfluence float64 // weight of the first Dim embedding components
	KeywordBoost       float64 // added per color keyword hit
}

// DefaultProducerConfig returns the basic-mode defaults.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Mode:               ModeBasic,
		EmbeddingInfluence: 0.2,
		KeywordBoost:       0.15,
	}
}

// #endregion config
