package gate

import (
	"sort"
	"strings"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/rules"
)

// #region gate
// Gate evaluates requests against a rule set. It holds no mutable state and
// is safe for concurrent use.
type Gate struct {
	config MatchConfig
}

// NewGate creates a Gate with the given tunables.
func NewGate(config MatchConfig) *Gate {
	return &Gate{config: config}
}

// Config returns the gate's tunables.
func (g *Gate) Config() MatchConfig {
	return g.config
}

// #endregion gate

// #region evaluate
// Evaluate runs every check in a fixed order and accumulates the findings;
// no check short-circuits another.
func (g *Gate) Evaluate(in Input, rs rules.RuleSet) ComplianceResult {
	res := ComplianceResult{
		Violations:   []Finding{},
		Warnings:     []Finding{},
		VirtuesFound: []string{},
		RulesVersion: rs.Version,
	}

	res.Violations = append(res.Violations, g.checkConcepts(in, rs)...)
	res.Violations = append(res.Violations, g.checkPredicates(in, rs)...)
	res.Violations = append(res.Violations, checkHarm(in)...)
	res.VirtuesFound = checkVirtues(in, rs)
	res.Warnings = append(res.Warnings, checkEmotions(in, rs)...)
	res.Warnings = append(res.Warnings, g.checkCommands(in)...)

	res.Compliant = len(res.Violations) == 0
	return res
}

// #endregion evaluate

// #region checks

// checkConcepts matches concept lemmas against prohibited concepts. A
// concept records at most one violation: the first prohibited entry it matches.
func (g *Gate) checkConcepts(in Input, rs rules.RuleSet) []Finding {
	var out []Finding
	for _, c := range in.Concepts {
		lemma := c.Lemma
		if lemma == "" {
			lemma = c.Name
		}
		for _, p := range rs.ProhibitedConcepts {
			if kind, ok := g.matchTerm(lemma, p); ok {
				out = append(out, Finding{
					Type:     ViolationProhibitedLemma,
					Severity: SeverityHigh,
					Rule:     p,
					Matched:  c.Name,
					Lemma:    lemma,
					Match:    kind,
				})
			}
		}
	}
	return out
}

// checkPredicates applies the same matching to relationship predicates.
func (g *Gate) checkPredicates(in Input, rs rules.RuleSet) []Finding {
	var out []Finding
	for _, r := range in.Relationships {
		lemma := r.PredicateLemma
		if lemma == "" {
			lemma = r.Predicate
		}
		for _, p := range rs.ProhibitedConcepts {
			if kind, ok := g.matchTerm(lemma, p); ok {
				out = append(out, Finding{
					Type:     ViolationProhibitedPredicate,
					Severity: SeverityHigh,
					Rule:     p,
					Matched:  r.Subject + " " + r.Predicate + " " + r.Object,
					Lemma:    lemma,
					Match:    kind,
				})
			}
		}
	}
	return out
}

func checkHarm(in Input) []Finding {
	out := make([]Finding, 0, len(in.Patterns.Harm))
	for _, m := range in.Patterns.Harm {
		out = append(out, Finding{
			Type:     ViolationHarmPattern,
			Severity: SeverityHigh,
			Rule:     "harm",
			Matched:  m.Text,
			Lemma:    m.Lemma,
		})
	}
	return out
}

// checkVirtues reports each required virtue that appears in the text or
// names a concept. It never produces a violation.
func checkVirtues(in Input, rs rules.RuleSet) []string {
	lower := strings.ToLower(in.Text)
	names := make(map[string]bool, len(in.Concepts)*2)
	for _, c := range in.Concepts {
		names[strings.ToLower(c.Name)] = true
		names[strings.ToLower(c.Lemma)] = true
	}
	found := []string{}
	for _, v := range rs.RequiredVirtues {
		lv := strings.ToLower(v)
		if lv == "" {
			continue
		}
		if strings.Contains(lower, lv) || names[lv] {
			found = append(found, v)
		}
	}
	return found
}

// checkEmotions warns for every emotion scoring above its threshold.
// Emotions are visited in name order so results are deterministic.
func checkEmotions(in Input, rs rules.RuleSet) []Finding {
	thresholds := rs.Thresholds()
	if len(thresholds) == 0 || len(in.EmotionScores) == 0 {
		return nil
	}
	names := make([]string, 0, len(thresholds))
	for name := range thresholds {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Finding
	for _, name := range names {
		score, ok := in.EmotionScores[strings.ToLower(name)]
		if !ok {
			score, ok = in.EmotionScores[name]
		}
		if ok && score > thresholds[name] {
			out = append(out, Finding{
				Type:      WarningEmotionThreshold,
				Severity:  SeverityMedium,
				Rule:      name,
				Score:     score,
				Threshold: thresholds[name],
			})
		}
	}
	return out
}

func (g *Gate) checkCommands(in Input) []Finding {
	n := len(in.Patterns.Command)
	if n <= g.config.MaxCommandMatches {
		return nil
	}
	return []Finding{{
		Type:      WarningExcessiveCommands,
		Severity:  SeverityMedium,
		Rule:      "max_command_matches",
		Count:     n,
		Threshold: float64(g.config.MaxCommandMatches),
	}}
}

// #endregion checks

// #region matching

// matchTerm compares a lemma to a prohibited term case-insensitively: an
// exact match, or a shared root when both are long enough. The root is the
// shorter length minus RootTrim characters.
func (g *Gate) matchTerm(lemma, prohibited string) (MatchKind, bool) {
	a := []rune(strings.ToLower(strings.TrimSpace(lemma)))
	b := []rune(strings.ToLower(strings.TrimSpace(prohibited)))
	if len(a) < g.config.MinLemmaLen || len(b) == 0 {
		return "", false
	}
	if string(a) == string(b) {
		return MatchExact, true
	}
	if len(a) < g.config.MinRootCompareLen || len(b) < g.config.MinRootCompareLen {
		return "", false
	}
	rootLen := min(len(a), len(b)) - g.config.RootTrim
	if rootLen < g.config.MinRootLen {
		return "", false
	}
	if string(a[:rootLen]) == string(b[:rootLen]) {
		return MatchRoot, true
	}
	return "", false
}

// #endregion matching
