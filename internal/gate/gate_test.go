package gate

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/rules"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
)

func lemmaConcepts(lemmas ...string) []signals.Concept {
	out := make([]signals.Concept, len(lemmas))
	for i, l := range lemmas {
		out[i] = signals.Concept{Name: l, Lemma: l}
	}
	return out
}

func rulesWith(prohibited ...string) rules.RuleSet {
	rs := rules.Default()
	rs.ProhibitedConcepts = prohibited
	return rs
}

func TestGateCompliantOnCleanInput(t *testing.T) {
	g := NewGate(DefaultMatchConfig())
	res := g.Evaluate(Input{
		Text:     "I practice wisdom and virtue",
		Concepts: lemmaConcepts("practice", "wisdom", "virtue"),
	}, rules.Default())

	if !res.Compliant {
		t.Fatalf("expected compliant, got violations %+v", res.Violations)
	}
	if len(res.Violations) != 0 || len(res.Warnings) != 0 {
		t.Fatalf("expected no findings, got %+v / %+v", res.Violations, res.Warnings)
	}
	if res.RulesVersion != "1.0" {
		t.Fatalf("expected rules version 1.0, got %s", res.RulesVersion)
	}
}

func TestGateExactProhibitedLemma(t *testing.T) {
	g := NewGate(DefaultMatchConfig())
	res := g.Evaluate(Input{
		Text:     "I will use violence and deception to get what I want",
		Concepts: lemmaConcepts("use", "violence", "deception", "get", "want"),
	}, rules.Default())

	want := []Finding{
		{Type: ViolationProhibitedLemma, Severity: SeverityHigh, Rule: "violence", Matched: "violence", Lemma: "violence", Match: MatchExact},
		{Type: ViolationProhibitedLemma, Severity: SeverityHigh, Rule: "deception", Matched: "deception", Lemma: "deception", Match: MatchExact},
	}
	if diff := cmp.Diff(want, res.Violations); diff != "" {
		t.Fatalf("violations mismatch (-want +got):\n%s", diff)
	}
	if res.Compliant {
		t.Fatal("expected non-compliant")
	}
}

func TestGateRootMatch(t *testing.T) {
	g := NewGate(DefaultMatchConfig())
	res := g.Evaluate(Input{Concepts: lemmaConcepts("manipulate")}, rulesWith("manipulation"))

	if len(res.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(res.Violations))
	}
	if res.Violations[0].Match != MatchRoot {
		t.Fatalf("expected root match, got %s", res.Violations[0].Match)
	}
}

func TestGateMatchingEdgeCases(t *testing.T) {
	g := NewGate(DefaultMatchConfig())
	cases := []struct {
		name       string
		lemma      string
		prohibited string
		want       bool
	}{
		{"short lemma ignored", "ab", "ab", false},
		{"three letters exact", "war", "war", true},
		{"cat vs category", "cat", "category", false},
		{"case insensitive", "Violence", "VIOLENCE", true},
		{"root too short", "harmony", "harm", false},
		{"root below minimum", "stealth", "steal", false},
		{"shared root", "deceptive", "deception", true},
		{"different roots", "violin", "violence", false},
		{"unicode root", "überwachung", "überwachen", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, got := g.matchTerm(tc.lemma, tc.prohibited)
			if got != tc.want {
				t.Fatalf("matchTerm(%q, %q) = %v, want %v", tc.lemma, tc.prohibited, got, tc.want)
			}
		})
	}
}

func TestGateRecordsEveryMatchingRule(t *testing.T) {
	g := NewGate(DefaultMatchConfig())

	res := g.Evaluate(Input{Concepts: lemmaConcepts("violence")}, rulesWith("violence", "violent", "theft"))
	got := make([]string, len(res.Violations))
	for i, v := range res.Violations {
		got[i] = v.Rule + "/" + string(v.Match)
	}
	want := []string{"violence/" + string(MatchExact), "violent/" + string(MatchRoot)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("concept violations mismatch (-want +got):\n%s", diff)
	}

	res = g.Evaluate(Input{
		Relationships: []signals.Relationship{
			{Subject: "they", Predicate: "destroyed", PredicateLemma: "destroy", Object: "homes"},
		},
	}, rulesWith("destroy", "destruction"))
	if len(res.Violations) != 2 || res.Violations[0].Rule != "destroy" || res.Violations[1].Rule != "destruction" {
		t.Fatalf("expected both predicate rules to fire, got %+v", res.Violations)
	}
	if got := res.ViolationTypes(); len(got) != 1 || got[0] != string(ViolationProhibitedPredicate) {
		t.Fatalf("expected one distinct type, got %v", got)
	}
}

func TestGateProhibitedPredicate(t *testing.T) {
	g := NewGate(DefaultMatchConfig())
	res := g.Evaluate(Input{
		Relationships: []signals.Relationship{
			{Subject: "they", Predicate: "abused", PredicateLemma: "abuse", Object: "trust"},
			{Subject: "we", Predicate: "shared", PredicateLemma: "share", Object: "bread"},
		},
	}, rules.Default())

	if len(res.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %+v", res.Violations)
	}
	v := res.Violations[0]
	if v.Type != ViolationProhibitedPredicate || v.Rule != "abuse" || v.Matched != "they abused trust" {
		t.Fatalf("unexpected violation %+v", v)
	}
}

func TestGateHarmPatternsAreEachViolations(t *testing.T) {
	g := NewGate(DefaultMatchConfig())
	res := g.Evaluate(Input{
		Patterns: signals.PatternMatches{Harm: []signals.PatternMatch{
			{Text: "hurt", Lemma: "hurt"},
			{Text: "attacking", Lemma: "attack"},
		}},
	}, rules.RuleSet{Version: "empty"})

	if len(res.Violations) != 2 || res.Compliant {
		t.Fatalf("expected 2 harm violations, got %+v", res.Violations)
	}
	if got := res.ViolationTypes(); len(got) != 1 || got[0] != string(ViolationHarmPattern) {
		t.Fatalf("unexpected violation types %v", got)
	}
}

func TestGateAccumulatesAcrossChecks(t *testing.T) {
	g := NewGate(DefaultMatchConfig())
	rs := rules.Default()
	rs.EmotionValidation = &rules.EmotionValidation{WarningThresholds: map[string]float64{"anger": 0.5}}

	res := g.Evaluate(Input{
		Text:          "theft and hurt",
		Concepts:      lemmaConcepts("theft"),
		Relationships: []signals.Relationship{{Subject: "x", Predicate: "harm", PredicateLemma: "harm", Object: "y"}},
		Patterns:      signals.PatternMatches{Harm: []signals.PatternMatch{{Text: "hurt", Lemma: "hurt"}}},
		EmotionScores: map[string]float64{"anger": 0.9},
	}, rs)

	wantTypes := []string{string(ViolationProhibitedLemma), string(ViolationProhibitedPredicate), string(ViolationHarmPattern)}
	if diff := cmp.Diff(wantTypes, res.ViolationTypes()); diff != "" {
		t.Fatalf("violation order mismatch (-want +got):\n%s", diff)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Type != WarningEmotionThreshold {
		t.Fatalf("expected emotion warning, got %+v", res.Warnings)
	}
}

func TestGateWarningsAloneStayCompliant(t *testing.T) {
	g := NewGate(DefaultMatchConfig())
	rs := rules.Default()
	rs.EmotionValidation = &rules.EmotionValidation{WarningThresholds: map[string]float64{"anger": 0.7, "fear": 0.7}}

	cmds := make([]signals.PatternMatch, 4)
	res := g.Evaluate(Input{
		EmotionScores: map[string]float64{"anger": 0.9, "fear": 0.7},
		Patterns:      signals.PatternMatches{Command: cmds},
	}, rs)

	if !res.Compliant {
		t.Fatal("warnings must not affect compliance")
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected anger and command warnings, got %+v", res.Warnings)
	}
	if res.Warnings[0].Rule != "anger" || res.Warnings[1].Type != WarningExcessiveCommands || res.Warnings[1].Count != 4 {
		t.Fatalf("unexpected warnings %+v", res.Warnings)
	}
}

func TestGateCommandLimitBoundary(t *testing.T) {
	g := NewGate(DefaultMatchConfig())
	res := g.Evaluate(Input{Patterns: signals.PatternMatches{Command: make([]signals.PatternMatch, 3)}}, rules.Default())
	if len(res.Warnings) != 0 {
		t.Fatalf("three commands should not warn, got %+v", res.Warnings)
	}
}

func TestGateVirtues(t *testing.T) {
	g := NewGate(DefaultMatchConfig())
	res := g.Evaluate(Input{
		Text:     "Justice matters",
		Concepts: []signals.Concept{{Name: "Prudence", Lemma: "prudence"}},
	}, rules.Default())

	if diff := cmp.Diff([]string{"prudence", "justice"}, res.VirtuesFound); diff != "" {
		t.Fatalf("virtues mismatch (-want +got):\n%s", diff)
	}
}

func TestGateWithLexiconProvider(t *testing.T) {
	out, err := signals.LexiconLinguistics{}.AnalyzeLinguistics(context.Background(),
		"I will use violence and deception to get what I want")
	if err != nil {
		t.Fatal(err)
	}
	b := signals.Bundle{Linguistic: signals.NormalizeLinguistic(out, "", nil)}

	res := NewGate(DefaultMatchConfig()).Evaluate(InputFromBundle(b), rules.Default())

	if res.Compliant {
		t.Fatal("expected violation from lexicon analysis")
	}
}
