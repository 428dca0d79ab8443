package gate

import "github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"

// #region finding-type
// FindingType enumerates violation and warning categories.
type FindingType string

const (
	ViolationProhibitedLemma     FindingType = "prohibited_concept_lemma"
	ViolationProhibitedPredicate FindingType = "prohibited_relationship_predicate"
	ViolationHarmPattern         FindingType = "harm_pattern_detected"

	WarningEmotionThreshold  FindingType = "emotion_threshold_exceeded"
	WarningExcessiveCommands FindingType = "excessive_commands"
)

// Severity grades a finding.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// MatchKind records how a term matched a rule.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchRoot  MatchKind = "root"
)

// #endregion finding-type

// #region finding
// Finding is one violation or warning. Rule names the prohibited concept,
// emotion or limit that fired; Matched and Lemma carry the source text.
type Finding struct {
	Type      FindingType `json:"type"`
	Severity  Severity    `json:"severity"`
	Rule      string      `json:"rule"`
	Matched   string      `json:"matched,omitempty"`
	Lemma     string      `json:"lemma,omitempty"`
	Match     MatchKind   `json:"match,omitempty"`
	Score     float64     `json:"score,omitempty"`
	Threshold float64     `json:"threshold,omitempty"`
	Count     int         `json:"count,omitempty"`
}

// #endregion finding

// #region match-config
// MatchConfig holds the lemma-matching tunables.
type MatchConfig struct {
	MinLemmaLen       int // lemmas shorter than this are ignored
	MinRootCompareLen int // both strings must be at least this long for root matching
	RootTrim          int // root length = shorter length - RootTrim
	MinRootLen        int // roots shorter than this never match
	MaxCommandMatches int // more command matches than this raise a warning
}

// DefaultMatchConfig returns the standard tunables.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		MinLemmaLen:       3,
		MinRootCompareLen: 5,
		RootTrim:          3,
		MinRootLen:        4,
		MaxCommandMatches: 3,
	}
}

// #endregion match-config

// #region input
// Input is everything the gate inspects for one request.
type Input struct {
	Text          string                 `json:"text"`
	Concepts      []signals.Concept      `json:"concepts"`
	Relationships []signals.Relationship `json:"relationships"`
	Patterns      signals.PatternMatches `json:"patterns"`
	EmotionScores map[string]float64     `json:"emotion_scores,omitempty"`
}

// InputFromBundle extracts the gate input from a signal bundle.
func InputFromBundle(b signals.Bundle) Input {
	return Input{
		Text:          b.Linguistic.Text,
		Concepts:      b.Linguistic.Concepts,
		Relationships: b.Linguistic.Relationships,
		Patterns:      b.Linguistic.Patterns,
		EmotionScores: b.Emotion.AllScores,
	}
}

// #endregion input

// #region compliance-result
// ComplianceResult is the output of a gate evaluation. Compliant is true
// exactly when Violations is empty.
type ComplianceResult struct {
	Compliant    bool      `json:"compliant"`
	Violations   []Finding `json:"violations"`
	Warnings     []Finding `json:"warnings"`
	VirtuesFound []string  `json:"virtues_found"`
	RulesVersion string    `json:"rules_version"`
}

// ViolationTypes returns the distinct violation types in first-seen order.
func (r ComplianceResult) ViolationTypes() []string {
	seen := make(map[FindingType]bool)
	var out []string
	for _, v := range r.Violations {
		if !seen[v.Type] {
			seen[v.Type] = true
			out = append(out, string(v.Type))
		}
	}
	return out
}

// #endregion compliance-result
