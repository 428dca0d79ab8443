package signals

import (
	"errors"
	"sort"
	"strings"
)

var errNoProvider = errors.New("signals: provider not configured")

const (
	// DefaultLabel and DefaultScore stand in for a failed emotion provider.
	DefaultLabel = "neutral"
	DefaultScore = 0.5
)

// #region normalize-emotion

// NormalizeEmotion applies failure defaults and clamps scores into [0, 1].
// When the provider gave a distribution but no label, the dominant entry is
// picked from the distribution.
func NormalizeEmotion(a EmotionAnalysis, err error) EmotionOutput {
	if err != nil {
		return EmotionOutput{
			DominantLabel: DefaultLabel,
			DominantScore: DefaultScore,
			AllScores:     map[string]float64{DefaultLabel: DefaultScore},
		}
	}

	scores := make(map[string]float64, len(a.AllScores))
	for label, s := range a.AllScores {
		label = strings.ToLower(strings.TrimSpace(label))
		if label == "" {
			continue
		}
		scores[label] = clamp01(s)
	}

	label := strings.ToLower(strings.TrimSpace(a.Label))
	score := clamp01(a.Score)
	if label == "" {
		label, score = dominant(scores)
	}
	if label == "" {
		label, score = DefaultLabel, DefaultScore
	}
	if len(scores) == 0 {
		scores[label] = score
	}
	return EmotionOutput{
		Available:     true,
		DominantLabel: label,
		DominantScore: score,
		AllScores:     scores,
	}
}

// dominant returns the highest scoring label; ties resolve alphabetically.
func dominant(scores map[string]float64) (string, float64) {
	labels := make([]string, 0, len(scores))
	for l := range scores {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	best, bestScore := "", -1.0
	for _, l := range labels {
		if scores[l] > bestScore {
			best, bestScore = l, scores[l]
		}
	}
	if best == "" {
		return "", 0
	}
	return best, bestScore
}

// #endregion normalize-emotion

// #region normalize-linguistic

// NormalizeLinguistic applies failure defaults and fills derived fields the
// provider may have omitted.
func NormalizeLinguistic(l LinguisticOutput, text string, err error) LinguisticOutput {
	if err != nil {
		return LinguisticOutput{
			Text: text,
			Features: Features{
				POSHistogram: map[string]int{},
			},
		}
	}
	l.Available = true
	if l.Text == "" {
		l.Text = text
	}
	if l.Features.POSHistogram == nil {
		l.Features.POSHistogram = map[string]int{}
	}
	if l.Features.TokenCount < 0 {
		l.Features.TokenCount = 0
	}
	for i := range l.Concepts {
		if l.Concepts[i].Lemma == "" {
			l.Concepts[i].Lemma = strings.ToLower(l.Concepts[i].Name)
		}
	}
	for i := range l.Relationships {
		if l.Relationships[i].PredicateLemma == "" {
			l.Relationships[i].PredicateLemma = strings.ToLower(l.Relationships[i].Predicate)
		}
	}
	return l
}

// #endregion normalize-linguistic

// clamp01 restricts v to [0, 1]; NaN maps to 0.
func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
