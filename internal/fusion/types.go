package fusion

import (
	"time"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/gate"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
)

// RejectReason is the Reason of every rejected fusion.
const RejectReason = "Ethical violation"

// #region source

// Source names one of the three triads.
type Source string

const (
	SourceEmotion    Source = "emotion"
	SourceLinguistic Source = "linguistic"
	SourceLogging    Source = "logging"
)

// Sources lists the triads in fixed order.
var Sources = []Source{SourceEmotion, SourceLinguistic, SourceLogging}

// Weights maps each triad to its share of the coherence score.
type Weights map[Source]float64

// DefaultWeights returns the initial triad weights.
func DefaultWeights() Weights {
	return Weights{
		SourceEmotion:    0.33,
		SourceLinguistic: 0.34,
		SourceLogging:    0.33,
	}
}

// Clone returns a copy of w.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	var s float64
	for _, src := range Sources {
		s += w[src]
	}
	return s
}

// #endregion source

// #region config

// Config holds the arbiter's weights and adaptation bounds.
type Config struct {
	Weights      Weights
	LearningRate float64
	MinWeight    float64
	MaxWeight    float64
}

// DefaultConfig returns the standard arbiter configuration.
func DefaultConfig() Config {
	return Config{
		Weights:      DefaultWeights(),
		LearningRate: 0.05,
		MinWeight:    0.1,
		MaxWeight:    0.6,
	}
}

// #endregion config

// #region coherence-inputs

// CoherenceInputs are the bundle statistics the coherence score reads.
type CoherenceInputs struct {
	EmotionAvailable bool
	DominantScore    float64
	TokenCount       int
	DistinctPOS      int
	ConceptCount     int
	EntityCount      int
	Logged           bool
}

// InputsFromBundle extracts the coherence inputs from a bundle.
func InputsFromBundle(b signals.Bundle) CoherenceInputs {
	return CoherenceInputs{
		EmotionAvailable: b.Emotion.Available,
		DominantScore:    b.Emotion.DominantScore,
		TokenCount:       b.Linguistic.Features.TokenCount,
		DistinctPOS:      b.Linguistic.DistinctPOS(),
		ConceptCount:     len(b.Linguistic.Concepts),
		EntityCount:      len(b.Linguistic.Entities),
		Logged:           b.Logging.InteractionLogged,
	}
}

// #endregion coherence-inputs

// #region result

// Sentiment is the emotion summary carried by a result.
type Sentiment struct {
	Label     string             `json:"label"`
	Score     float64            `json:"score"`
	AllScores map[string]float64 `json:"all_scores,omitempty"`
}

// RejectionDetails lists what caused a rejection.
type RejectionDetails struct {
	Violations []gate.Finding `json:"violations"`
	Warnings   []gate.Finding `json:"warnings"`
}

// TriadSummary counts what each triad produced.
type TriadSummary struct {
	Mode             signals.Mode `json:"mode"`
	VectorID         string       `json:"vector_id,omitempty"`
	EmbeddingDim     int          `json:"embedding_dim"`
	SimilarCount     int          `json:"similar_count"`
	ConceptCount     int          `json:"concept_count"`
	EntityCount      int          `json:"entity_count"`
	SentenceCount    int          `json:"sentence_count"`
	InteractionCount int          `json:"interaction_count"`
}

// Result is the outcome of one fusion. A rejected result has Success false,
// Reason RejectReason, Details set and Coherence 0.
type Result struct {
	Success       bool                   `json:"success"`
	Reason        string                 `json:"reason,omitempty"`
	Details       *RejectionDetails      `json:"details,omitempty"`
	Coherence     float64                `json:"coherence"`
	Sentiment     Sentiment              `json:"sentiment"`
	Concepts      []signals.Concept      `json:"concepts,omitempty"`
	Entities      []signals.Entity       `json:"entities,omitempty"`
	Relationships []signals.Relationship `json:"relationships,omitempty"`
	Features      signals.Features       `json:"linguistic_features"`
	Patterns      signals.PatternMatches `json:"pattern_matches"`
	Compliance    gate.ComplianceResult  `json:"compliance"`
	Response      string                 `json:"response,omitempty"`
	WeightsUsed   Weights                `json:"weights_used,omitempty"`
	Summary       TriadSummary           `json:"triad_summary"`
	Timestamp     time.Time              `json:"timestamp"`
}

// #endregion result
