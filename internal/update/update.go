package update

import (
	"math"
	"time"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
)

// #region update-function
// Update is a pure function computing the next soul state from the current
// one, a new affect signal and the interaction's coherence.
//
//	vector    = normalize(r*old + (1-r)*signal)
//	alignment = clamp01(a*old + (1-a)*coherence)
//	count     = count + 1
//
// Non-finite signal components count as 0. When the blend has zero norm
// the previous vector is kept.
func Update(old State, signal signals.Affect, coherence float64, config Config) Result {
	start := time.Now()

	sanitized := 0
	for i, x := range signal {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			signal[i] = 0
			sanitized++
		}
	}
	if math.IsNaN(coherence) || math.IsInf(coherence, 0) {
		coherence = 0
	}

	r := config.VectorRetention
	var blended signals.Affect
	for i := range blended {
		blended[i] = r*old.Vector[i] + (1-r)*signal[i]
	}

	decision := Decision{Action: "commit", Reason: "moving average applied"}
	next, ok := blended.Normalized()
	if !ok {
		next = old.Vector
		decision = Decision{Action: "retain_vector", Reason: "blended vector has zero norm"}
	}

	a := config.AlignmentRetention
	alignment := clamp01(a*old.Alignment + (1-a)*clamp01(coherence))

	var delta float64
	for i := range next {
		d := next[i] - old.Vector[i]
		delta += d * d
	}

	return Result{
		State: State{
			Vector:           next,
			Alignment:        alignment,
			InteractionCount: old.InteractionCount + 1,
			LastUpdated:      time.Now().UTC(),
		},
		Decision: decision,
		Metrics: Metrics{
			DeltaNorm:           math.Sqrt(delta),
			AlignmentDelta:      alignment - old.Alignment,
			SanitizedComponents: sanitized,
			Degenerate:          !ok,
			UpdateTimeMicros:    time.Since(start).Microseconds(),
		},
	}
}

// #endregion update-function

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
