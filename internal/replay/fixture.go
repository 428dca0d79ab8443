package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/gate"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/logging"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/rules"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                   `json:"description"`
	Rules           *rules.RuleSet           `json:"rules,omitempty"` // nil means rules.Default()
	Match           *FixtureMatchConfig      `json:"match,omitempty"` // nil means gate.DefaultMatchConfig()
	Records         []logging.DecisionRecord `json:"records"`
	ExpectedResults []FixtureExpectedResult  `json:"expected_results"`
}

// FixtureMatchConfig mirrors gate.MatchConfig with JSON tags.
type FixtureMatchConfig struct {
	MinLemmaLen       int `json:"min_lemma_len"`
	MinRootCompareLen int `json:"min_root_compare_len"`
	RootTrim          int `json:"root_trim"`
	MinRootLen        int `json:"min_root_len"`
	MaxCommandMatches int `json:"max_command_matches"`
}

// FixtureExpectedResult captures the expected outcome per record.
type FixtureExpectedResult struct {
	DecisionID string `json:"decision_id"`
	Compliant  bool   `json:"compliant"`
	Flip       Flip   `json:"flip,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// RuleSet returns the fixture's rules or the defaults.
func (f *Fixture) RuleSet() rules.RuleSet {
	if f.Rules == nil {
		return rules.Default()
	}
	return *f.Rules
}

// MatchConfig returns the fixture's matching tunables or the defaults.
func (f *Fixture) MatchConfig() gate.MatchConfig {
	if f.Match == nil {
		return gate.DefaultMatchConfig()
	}
	return gate.MatchConfig{
		MinLemmaLen:       f.Match.MinLemmaLen,
		MinRootCompareLen: f.Match.MinRootCompareLen,
		RootTrim:          f.Match.RootTrim,
		MinRootLen:        f.Match.MinRootLen,
		MaxCommandMatches: f.Match.MaxCommandMatches,
	}
}

// Run replays the fixture's records under its rules.
func (f *Fixture) Run() []ReplayResult {
	return Replay(f.Records, f.RuleSet(), gate.NewGate(f.MatchConfig()))
}

// #endregion fixture-loader
