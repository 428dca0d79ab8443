package signals

import (
	"math"
	"strings"
)

// #region color-table

type colorWeight struct {
	index  int
	weight float64
}

// emotionColors maps the 28 emotion labels onto ROYGBIV bands.
var emotionColors = map[string]colorWeight{
	"anger":       {0, 0.8},
	"annoyance":   {0, 0.5},
	"desire":      {0, 0.6},
	"excitement":  {0, 0.7},
	"disapproval": {0, 0.4},

	"amusement": {1, 0.7},
	"optimism":  {1, 0.8},
	"caring":    {1, 0.6},

	"joy":        {2, 0.9},
	"admiration": {2, 0.7},
	"gratitude":  {2, 0.8},
	"pride":      {2, 0.7},
	"relief":     {2, 0.6},

	"realization": {3, 0.6},
	"approval":    {3, 0.7},
	"curiosity":   {3, 0.5},

	"neutral": {4, 0.6},

	"confusion":      {5, 0.5},
	"disappointment": {5, 0.6},
	"sadness":        {5, 0.8},
	"grief":          {5, 0.9},
	"nervousness":    {5, 0.6},
	"fear":           {5, 0.7},
	"remorse":        {5, 0.7},
	"disgust":        {5, 0.6},

	"surprise":      {6, 0.7},
	"love":          {6, 0.9},
	"embarrassment": {6, 0.5},
}

var colorKeywords = [Dim][]string{
	{"anger", "passion", "energy", "urgency"},
	{"enthusiasm", "creativity", "determination"},
	{"joy", "optimism", "clarity", "hope"},
	{"balance", "growth", "harmony", "peace"},
	{"calm", "trust", "wisdom", "depth"},
	{"intuition", "insight", "spirituality"},
	{"inspiration", "imagination", "mystery"},
}

// #endregion color-table

// #region color-vector

// ColorVector maps an emotion distribution, an optional embedding and the raw
// text onto a unit-norm Affect. A zero result yields the uniform vector.
func ColorVector(allScores map[string]float64, embedding []float32, text string, cfg ProducerConfig) Affect {
	var v Affect
	for label, score := range allScores {
		cw, ok := emotionColors[strings.ToLower(label)]
		if !ok || !finite(score) {
			continue
		}
		v[cw.index] += score * cw.weight
	}

	if len(embedding) >= Dim {
		var norm float64
		for i := 0; i < Dim; i++ {
			norm += float64(embedding[i]) * float64(embedding[i])
		}
		norm = math.Sqrt(norm)
		if norm > 0 && finite(norm) {
			for i := 0; i < Dim; i++ {
				v[i] += cfg.EmbeddingInfluence * math.Abs(float64(embedding[i])) / norm
			}
		}
	}

	lower := strings.ToLower(text)
	for i, words := range colorKeywords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				v[i] += cfg.KeywordBoost
			}
		}
	}

	if n, ok := v.Normalized(); ok {
		return n
	}
	return Uniform()
}

// Uniform returns the unit vector with equal components.
func Uniform() Affect {
	var u Affect
	c := 1 / math.Sqrt(Dim)
	for i := range u {
		u[i] = c
	}
	return u
}

// #endregion color-vector

// #region affect-math

// Norm returns the L2 norm of a.
func (a Affect) Norm() float64 {
	var s float64
	for _, x := range a {
		s += x * x
	}
	return math.Sqrt(s)
}

// Normalized returns a scaled to unit length. ok is false when the norm is
// zero or not finite.
func (a Affect) Normalized() (Affect, bool) {
	n := a.Norm()
	if n == 0 || !finite(n) {
		return a, false
	}
	var out Affect
	for i, x := range a {
		out[i] = x / n
	}
	return out, true
}

// Float32 returns a copy of a as a float32 slice for vector storage.
func (a Affect) Float32() []float32 {
	out := make([]float32, Dim)
	for i, x := range a {
		out[i] = float32(x)
	}
	return out
}

// #endregion affect-math

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
