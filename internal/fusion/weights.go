package fusion

import "math"

// UpdateWeights nudges each named triad's weight by delta times the learning
// rate, then renormalizes so the weights sum to 1 and each stays within
// [MinWeight, MaxWeight]. Unknown sources and non-finite deltas are ignored. The new
// weights are returned.
func (a *Arbiter) UpdateWeights(feedback map[Source]float64) Weights {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.weights.Clone()
	for src, delta := range feedback {
		if _, known := next[src]; !known || math.IsNaN(delta) || math.IsInf(delta, 0) {
			continue
		}
		w := next[src] + delta*a.config.LearningRate
		next[src] = clamp(w, a.config.MinWeight, a.config.MaxWeight)
	}

	a.weights = bound(next, a.config.MinWeight, a.config.MaxWeight)
	return a.weights.Clone()
}

// bound rescales w to sum to 1 with every weight in [lo, hi]. Weights that
// would leave the range are pinned at the bound and the remaining share is
// spread over the free weights in proportion to their values. When len(w)
// weights cannot satisfy the bounds it returns the plain renormalization.
func bound(w Weights, lo, hi float64) Weights {
	total := w.Sum()
	if total <= 0 {
		return w
	}
	for src := range w {
		w[src] /= total
	}
	n := float64(len(w))
	if n*lo > 1 || n*hi < 1 {
		return w
	}

	// sum of clamp(scale*w) is non-decreasing in scale; bisect for 1
	clamped := func(scale float64) float64 {
		var sum float64
		for _, v := range w {
			sum += clamp(scale*v, lo, hi)
		}
		return sum
	}
	low, high := 0.0, 1.0
	for i := 0; clamped(high) < 1 && i < 64; i++ {
		high *= 2
	}
	for i := 0; i < 100; i++ {
		mid := (low + high) / 2
		if clamped(mid) < 1 {
			low = mid
		} else {
			high = mid
		}
	}

	out := make(Weights, len(w))
	var sum float64
	for src, v := range w {
		out[src] = clamp(high*v, lo, hi)
		sum += out[src]
	}
	// fold the bisection residue into one free weight
	for _, src := range Sources {
		v, ok := out[src]
		if ok && v > lo && v < hi {
			out[src] = clamp(v+1-sum, lo, hi)
			break
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Weights returns a copy of the current weights.
func (a *Arbiter) Weights() Weights {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.weights.Clone()
}
