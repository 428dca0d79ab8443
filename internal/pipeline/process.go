package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/fusion"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/gate"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/interaction"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/logging"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/metrics"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/rules"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
)

var tracer = otel.Tracer("github.com/danielpatrickdp/triad-fusion/go-controller/internal/pipeline")

// snippetLimit bounds the text stored as vector metadata.
const snippetLimit = 200

// #region process

// Process runs one interaction end to end:
//  1. Triads: emotion, linguistic and logging run concurrently
//  2. Fusion: compliance gate, then coherence under the current weights
//  3. Soul: moving-average update, only when the fusion succeeded
//  4. Provenance: the decision and its compliance inputs go to the fusion log
//
// A policy rejection is reported through the Outcome, not as an error.
func (a *App) Process(ctx context.Context, req Request) (Outcome, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Outcome{}, fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.UserID) == "" {
		return Outcome{}, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, "pipeline.Process", trace.WithAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("session_id", req.SessionID),
	))
	defer span.End()

	// one rule set per request, even if a reload lands mid-flight
	rs := a.rules.Current()
	a.souls.GetOrCreate(ctx, req.UserID)

	bundle, err := a.runTriads(ctx, req)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}

	fused := a.arbiter.Fuse(ctx, bundle, rs)
	recordFusion(fused)

	out := Outcome{
		DecisionID:   uuid.NewString(),
		SessionID:    req.SessionID,
		Fused:        fused,
		RulesVersion: rs.Version,
	}

	if fused.Success {
		rec, m, err := a.souls.Update(ctx, req.UserID, bundle.Emotion.Color, fused.Coherence)
		if err != nil {
			log.Warn().Err(err).Str("component", "pipeline").Str("user_id", req.UserID).
				Msg("soul persisted late, in-memory state is current")
		}
		if pref, ok := interaction.DetectPreference(req.Text); ok {
			if err := a.souls.SetPreference(ctx, req.UserID, interaction.PreferenceKey, pref); err != nil {
				log.Warn().Err(err).Str("component", "pipeline").Msg("preference persist failed")
			}
			rec.Preferences[interaction.PreferenceKey] = pref
		}
		out.Soul = &rec
		out.SoulMetrics = &m
		out.Related = a.related.Related(ctx, bundle.Linguistic.Concepts, req.Text)
	}

	a.recordDecision(req, bundle, out, rs)

	span.SetAttributes(
		attribute.Bool("fusion.success", fused.Success),
		attribute.Float64("fusion.coherence", fused.Coherence),
	)
	log.Info().Str("component", "pipeline").
		Str("decision_id", out.DecisionID).
		Str("user_id", req.UserID).
		Bool("success", fused.Success).
		Float64("coherence", fused.Coherence).
		Int("violations", len(fused.Compliance.Violations)).
		Msg("interaction processed")
	return out, nil
}

// #endregion process

// #region triads

// runTriads runs the three triads concurrently. Triads degrade to failure
// defaults instead of erroring; only cancellation aborts the request.
func (a *App) runTriads(ctx context.Context, req Request) (signals.Bundle, error) {
	b := signals.Bundle{Mode: a.producer.Mode()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.Emotion = a.emotionTriad(gctx, req)
		return gctx.Err()
	})
	g.Go(func() error {
		b.Linguistic = a.linguisticTriad(gctx, req)
		return gctx.Err()
	})
	g.Go(func() error {
		b.Logging = a.loggingTriad(gctx, req)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return signals.Bundle{}, fmt.Errorf("run triads: %w", err)
	}
	return b, nil
}

func (a *App) emotionTriad(ctx context.Context, req Request) signals.EmotionOutput {
	ctx, span := tracer.Start(ctx, "triad.emotion")
	defer span.End()
	defer observe("emotion", time.Now())

	out := a.producer.Emotion(ctx, req.Text)

	// the embedding is stored when the provider supplies one, the affect
	// vector otherwise
	vec := out.Embedding
	if len(vec) == 0 {
		vec = out.Color.Float32()
	}
	out.VectorID = VectorID(req.UserID, req.Text)
	err := a.vectors.Upsert(out.VectorID, vec, map[string]any{
		"user_id":         req.UserID,
		"session_id":      req.SessionID,
		"sentiment_label": out.DominantLabel,
		"sentiment_score": out.DominantScore,
		"text_snippet":    snippet(req.Text, snippetLimit),
	})
	if err != nil {
		metrics.PersistErrors.WithLabelValues("vector").Inc()
		log.Error().Err(err).Str("component", "pipeline").Str("vector_id", out.VectorID).Msg("vector persist failed")
	}
	metrics.VectorCount.Set(float64(a.vectors.Count()))

	res := a.retriever.Similar(vec, req.UserID, out.VectorID)
	out.SimilarMemories = res.Memories
	span.SetAttributes(attribute.Int("similar", len(res.Memories)))
	log.Debug().Str("component", "pipeline").Str("reason", res.Reason).Msg("similar memories")
	return out
}

func (a *App) linguisticTriad(ctx context.Context, req Request) signals.LinguisticOutput {
	ctx, span := tracer.Start(ctx, "triad.linguistic")
	defer span.End()
	defer observe("linguistic", time.Now())

	out := a.producer.Linguistic(ctx, req.Text)
	if err := a.concepts.UpsertConcepts(ctx, out.Concepts); err != nil {
		metrics.PersistErrors.WithLabelValues("graph").Inc()
		log.Error().Err(err).Str("component", "pipeline").Msg("concept persist failed")
		return out
	}
	n, err := a.concepts.AddRelationships(ctx, out.Relationships)
	if err != nil {
		metrics.PersistErrors.WithLabelValues("graph").Inc()
		log.Error().Err(err).Str("component", "pipeline").Msg("relationship persist failed")
	}
	span.SetAttributes(
		attribute.Int("concepts", len(out.Concepts)),
		attribute.Int("relationships", n),
	)
	return out
}

func (a *App) loggingTriad(ctx context.Context, req Request) signals.LoggingOutput {
	ctx, span := tracer.Start(ctx, "triad.logging")
	defer span.End()
	defer observe("logging", time.Now())

	out := signals.LoggingOutput{
		Response:  interaction.Respond(req.Text),
		SessionID: req.SessionID,
	}
	if _, err := a.interactions.Append(ctx, interaction.Entry{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Text:      req.Text,
	}); err != nil {
		metrics.PersistErrors.WithLabelValues("interaction").Inc()
		log.Error().Err(err).Str("component", "pipeline").Msg("interaction log failed")
		return out
	}
	out.InteractionLogged = true

	n, err := a.interactions.CountSession(ctx, req.SessionID)
	if err != nil {
		log.Warn().Err(err).Str("component", "pipeline").Msg("session count failed")
	}
	out.InteractionCount = n
	return out
}

// #endregion triads

// #region provenance

func (a *App) recordDecision(req Request, b signals.Bundle, out Outcome, rs rules.RuleSet) {
	decision := "accept"
	if !out.Fused.Success {
		decision = "reject"
	}
	rec := logging.DecisionRecord{
		DecisionID:     out.DecisionID,
		Text:           req.Text,
		Input:          gate.InputFromBundle(b),
		Compliant:      out.Fused.Compliance.Compliant,
		ViolationTypes: out.Fused.Compliance.ViolationTypes(),
		WarningCount:   len(out.Fused.Compliance.Warnings),
		RulesVersion:   rs.Version,
		Coherence:      out.Fused.Coherence,
		Weights:        weightsToMap(out.Fused.WeightsUsed),
	}
	recJSON, err := logging.EncodeRecord(rec)
	if err != nil {
		log.Error().Err(err).Str("component", "pipeline").Msg("encode decision record failed")
	}
	err = logging.LogDecision(a.db, logging.DecisionEntry{
		DecisionID:   out.DecisionID,
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		Decision:     decision,
		Reason:       out.Fused.Reason,
		Coherence:    out.Fused.Coherence,
		RulesVersion: rs.Version,
		RecordJSON:   recJSON,
		CreatedAt:    out.Fused.Timestamp,
	})
	if err != nil {
		metrics.PersistErrors.WithLabelValues("fusion_log").Inc()
		log.Error().Err(err).Str("component", "pipeline").Str("decision_id", out.DecisionID).
			Msg("fusion log write failed")
	}
}

// #endregion provenance

// #region helpers

// VectorID is the stable vector-store id of text written by userID.
func VectorID(userID, text string) string {
	h := fnv.New32a()
	h.Write([]byte(text))
	return fmt.Sprintf("chroma_%s_%d", userID, h.Sum32()%1_000_000)
}

func snippet(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func observe(triad string, start time.Time) {
	metrics.TriadDuration.WithLabelValues(triad).Observe(time.Since(start).Seconds())
}

func recordFusion(r fusion.Result) {
	if r.Success {
		metrics.FusionTotal.WithLabelValues("accepted").Inc()
		metrics.Coherence.Observe(r.Coherence)
	} else {
		metrics.FusionTotal.WithLabelValues("rejected").Inc()
	}
	for _, v := range r.Compliance.Violations {
		metrics.Violations.WithLabelValues(string(v.Type)).Inc()
	}
	for _, w := range r.Compliance.Warnings {
		metrics.Warnings.WithLabelValues(string(w.Type)).Inc()
	}
}

// #endregion helpers
