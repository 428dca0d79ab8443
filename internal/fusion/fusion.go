package fusion

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/gate"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/rules"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
)

var tracer = otel.Tracer("github.com/danielpatrickdp/triad-fusion/go-controller/internal/fusion")

// #region arbiter

// Arbiter fuses triad outputs into one decision. It is safe for concurrent
// use; weight updates are serialized.
type Arbiter struct {
	gate   *gate.Gate
	config Config

	mu      sync.RWMutex
	weights Weights
}

// NewArbiter creates an Arbiter. Missing weights fall back to the defaults.
func NewArbiter(g *gate.Gate, config Config) *Arbiter {
	if len(config.Weights) == 0 {
		config.Weights = DefaultWeights()
	}
	return &Arbiter{gate: g, config: config, weights: config.Weights.Clone()}
}

// #endregion arbiter

// #region fuse

// Fuse checks compliance first. A non-compliant bundle is rejected with
// coherence 0; otherwise the coherence score is computed under the current
// weights and the full result assembled.
func (a *Arbiter) Fuse(ctx context.Context, b signals.Bundle, rs rules.RuleSet) Result {
	_, span := tracer.Start(ctx, "fusion.Fuse")
	defer span.End()

	compliance := a.gate.Evaluate(gate.InputFromBundle(b), rs)
	now := time.Now().UTC()

	if !compliance.Compliant {
		span.SetAttributes(
			attribute.Bool("fusion.success", false),
			attribute.Int("fusion.violations", len(compliance.Violations)),
		)
		log.Info().Str("component", "fusion").Strs("violation_types", compliance.ViolationTypes()).
			Int("warnings", len(compliance.Warnings)).Msg("fusion rejected")
		return Result{
			Success: false,
			Reason:  RejectReason,
			Details: &RejectionDetails{
				Violations: compliance.Violations,
				Warnings:   compliance.Warnings,
			},
			Coherence:  0,
			Compliance: compliance,
			Summary:    summarize(b),
			Timestamp:  now,
		}
	}

	weights := a.Weights()
	coherence := Score(InputsFromBundle(b), weights)
	span.SetAttributes(
		attribute.Bool("fusion.success", true),
		attribute.Float64("fusion.coherence", coherence),
	)

	return Result{
		Success:   true,
		Coherence: coherence,
		Sentiment: Sentiment{
			Label:     b.Emotion.DominantLabel,
			Score:     b.Emotion.DominantScore,
			AllScores: b.Emotion.AllScores,
		},
		Concepts:      b.Linguistic.Concepts,
		Entities:      b.Linguistic.Entities,
		Relationships: b.Linguistic.Relationships,
		Features:      b.Linguistic.Features,
		Patterns:      b.Linguistic.Patterns,
		Compliance:    compliance,
		Response:      b.Logging.Response,
		WeightsUsed:   weights,
		Summary:       summarize(b),
		Timestamp:     now,
	}
}

func summarize(b signals.Bundle) TriadSummary {
	return TriadSummary{
		Mode:             b.Mode,
		VectorID:         b.Emotion.VectorID,
		EmbeddingDim:     embeddingDim(b.Emotion),
		SimilarCount:     len(b.Emotion.SimilarMemories),
		ConceptCount:     len(b.Linguistic.Concepts),
		EntityCount:      len(b.Linguistic.Entities),
		SentenceCount:    len(b.Linguistic.Features.Sentences),
		InteractionCount: b.Logging.InteractionCount,
	}
}

// embeddingDim reports the stored vector's dimension: the embedding when
// present, otherwise the affect vector.
func embeddingDim(e signals.EmotionOutput) int {
	if len(e.Embedding) > 0 {
		return len(e.Embedding)
	}
	return signals.Dim
}

// #endregion fuse
