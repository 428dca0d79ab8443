// Package maintenance runs the periodic consolidation cycle: store
// validation, optional relationship decay and soul validation.
package maintenance

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/eval"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/metrics"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/soul"
)

// VectorCounter reports the size of the vector store.
type VectorCounter interface {
	Count() int
}

// ConceptGraph is the part of the concept store the cycle touches.
type ConceptGraph interface {
	ConceptCount(ctx context.Context) (int, error)
	DecayAll(ctx context.Context, halfLifeHours float64) (int64, error)
}

// SoulScanner iterates soul records.
type SoulScanner interface {
	Scan(ctx context.Context, fn func(soul.Record) error) error
	Stats() soul.Stats
}

// #region cycle
// Cycle holds the collaborators of one maintenance pass.
type Cycle struct {
	vectors  VectorCounter
	concepts ConceptGraph
	souls    SoulScanner
	harness  *eval.EvalHarness

	// DecayHalfLifeHours enables stage 2 when > 0.
	DecayHalfLifeHours float64
}

// NewCycle creates a Cycle. Any collaborator may be nil; its stage then
// reports an error status.
func NewCycle(vectors VectorCounter, concepts ConceptGraph, souls SoulScanner, harness *eval.EvalHarness) *Cycle {
	if harness == nil {
		harness = eval.NewEvalHarness(eval.DefaultEvalConfig())
	}
	return &Cycle{vectors: vectors, concepts: concepts, souls: souls, harness: harness}
}

// Run executes the three stages in order. A failing stage is recorded in
// its report; only context cancellation marks the whole run unsuccessful.
func (c *Cycle) Run(ctx context.Context) Report {
	start := time.Now()
	report := Report{StartedAt: start.UTC()}
	log.Info().Str("component", "maintenance").Msg("cycle start")

	report.Validation = c.validate(ctx)
	report.Cleanup = c.cleanup(ctx)
	report.SoulRefinement = c.refine(ctx)

	report.DurationSeconds = time.Since(start).Seconds()
	if err := ctx.Err(); err != nil {
		report.Error = err.Error()
		metrics.MaintenanceRuns.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("component", "maintenance").Msg("cycle aborted")
		return report
	}
	report.Success = true
	metrics.MaintenanceRuns.WithLabelValues("success").Inc()
	log.Info().Str("component", "maintenance").
		Float64("duration_s", report.DurationSeconds).
		Int("users", report.SoulRefinement.UsersProcessed).
		Int("failed_users", len(report.SoulRefinement.FailedUsers)).
		Msg("cycle complete")
	return report
}

// #endregion cycle

// #region stages
func (c *Cycle) validate(ctx context.Context) ValidationReport {
	var r ValidationReport
	if c.vectors == nil {
		r.Vectors = CountCheck{Status: "error", Error: "vector store unavailable"}
	} else {
		r.Vectors = CountCheck{Count: c.vectors.Count(), Status: "valid"}
		metrics.VectorCount.Set(float64(r.Vectors.Count))
	}

	if c.concepts == nil {
		r.Concepts = CountCheck{Status: "error", Error: "concept store unavailable"}
		return r
	}
	n, err := c.concepts.ConceptCount(ctx)
	if err != nil {
		log.Error().Err(err).Str("component", "maintenance").Msg("concept validation failed")
		r.Concepts = CountCheck{Status: "error", Error: err.Error()}
		return r
	}
	r.Concepts = CountCheck{Count: n, Status: "valid"}
	return r
}

func (c *Cycle) cleanup(ctx context.Context) CleanupReport {
	if c.DecayHalfLifeHours <= 0 || c.concepts == nil {
		return CleanupReport{Status: "skipped"}
	}
	pruned, err := c.concepts.DecayAll(ctx, c.DecayHalfLifeHours)
	if err != nil {
		log.Error().Err(err).Str("component", "maintenance").Msg("relationship decay failed")
		return CleanupReport{Status: "error", Error: err.Error()}
	}
	return CleanupReport{Status: "complete", RelationshipsPruned: pruned}
}

func (c *Cycle) refine(ctx context.Context) RefinementReport {
	if c.souls == nil {
		return RefinementReport{Status: "error", Error: "soul manager unavailable"}
	}
	var r RefinementReport
	err := c.souls.Scan(ctx, func(rec soul.Record) error {
		r.UsersProcessed++
		res := c.harness.Run(rec)
		if !res.Passed {
			r.FailedUsers = append(r.FailedUsers, rec.UserID)
			log.Warn().Str("component", "maintenance").Str("user_id", rec.UserID).
				Str("reason", res.Reason).Msg("soul failed validation")
			return nil
		}
		log.Debug().Str("component", "maintenance").Str("user_id", rec.UserID).
			Float64("alignment", rec.Alignment).Int("interactions", rec.InteractionCount).
			Msg("soul state")
		return nil
	})
	r.Stats = c.souls.Stats()
	if err != nil {
		r.Status = "error"
		r.Error = err.Error()
		return r
	}
	r.Status = "complete"
	return r
}

// #endregion stages
