package fusion

import "math"

const fallbackEmotionScore = 0.5

// Score combines the three triad sub-scores into a coherence value in
// [0, 1]: the weighted sum divided by the weight sum. A non-positive weight
// sum or a NaN result yields 0.
func Score(in CoherenceInputs, w Weights) float64 {
	sub := SubScores(in)
	total := w.Sum()
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return 0
	}
	var sum float64
	for _, src := range Sources {
		sum += w[src] * sub[src]
	}
	return clamp01(sum / total)
}

// SubScores returns the per-triad scores before weighting.
func SubScores(in CoherenceInputs) map[Source]float64 {
	emotion := fallbackEmotionScore
	if in.EmotionAvailable {
		emotion = clamp01(in.DominantScore)
	}

	richness := math.Min(1, (float64(in.TokenCount)/20)*(float64(in.DistinctPOS)/5))
	density := math.Min(1, float64(in.ConceptCount+in.EntityCount)/10)
	linguistic := 0.5*richness + 0.5*density

	logging := 0.5
	if in.Logged {
		logging = 1.0
	}

	return map[Source]float64{
		SourceEmotion:    emotion,
		SourceLinguistic: clamp01(linguistic),
		SourceLogging:    logging,
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
