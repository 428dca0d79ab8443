package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/soul"
)

// #region eval-harness
// EvalHarness validates soul records during maintenance.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks one record: finite components, unit norm, alignment in [0,1]
// and a non-negative interaction count. All checks run.
func (h *EvalHarness) Run(rec soul.Record) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. Finite components
	nonFinite := 0
	for _, x := range rec.Vector {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			nonFinite++
		}
	}
	check("non_finite_components", float64(nonFinite), nonFinite == 0,
		fmt.Sprintf("%d non-finite vector components", nonFinite))

	// 2. Unit norm
	norm := rec.Vector.Norm()
	tol := h.config.NormTolerance * signals.Dim
	normPass := !math.IsNaN(norm) && math.Abs(norm-1) <= tol
	check("vector_norm", norm, normPass,
		fmt.Sprintf("vector norm %.6f outside 1±%.1e", norm, tol))

	// 3. Alignment bounds
	alignPass := rec.Alignment >= 0 && rec.Alignment <= 1
	check("alignment", rec.Alignment, alignPass,
		fmt.Sprintf("alignment %.4f outside [0,1]", rec.Alignment))

	// 4. Interaction count
	check("interaction_count", float64(rec.InteractionCount), rec.InteractionCount >= 0,
		fmt.Sprintf("negative interaction count %d", rec.InteractionCount))

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness
