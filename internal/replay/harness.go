package replay

import (
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/gate"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/logging"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/rules"
)

// #region types
// Flip describes how a decision changed under the candidate rules.
type Flip string

const (
	FlipNone         Flip = ""
	FlipPassToReject Flip = "pass_to_reject"
	FlipRejectToPass Flip = "reject_to_pass"
)

// ReplayResult captures the outcome of re-evaluating one logged decision.
type ReplayResult struct {
	DecisionID     string
	Text           string
	Original       bool // compliant when logged
	Replayed       bool // compliant under the candidate rules
	Flip           Flip
	ViolationTypes []string
	WarningCount   int
	Compliance     gate.ComplianceResult
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	Total        int
	Accepts      int // compliant under the candidate rules
	Rejects      int
	Unchanged    int
	PassToReject int
	RejectToPass int
	RulesVersion string
}

// #endregion types

// #region replay
// Replay re-evaluates every record's logged compliance inputs under rs.
// Operates entirely in-memory; nothing is written.
func Replay(records []logging.DecisionRecord, rs rules.RuleSet, g *gate.Gate) []ReplayResult {
	results := make([]ReplayResult, 0, len(records))
	for _, rec := range records {
		cr := g.Evaluate(rec.Input, rs)

		flip := FlipNone
		switch {
		case rec.Compliant && !cr.Compliant:
			flip = FlipPassToReject
		case !rec.Compliant && cr.Compliant:
			flip = FlipRejectToPass
		}

		results = append(results, ReplayResult{
			DecisionID:     rec.DecisionID,
			Text:           rec.Text,
			Original:       rec.Compliant,
			Replayed:       cr.Compliant,
			Flip:           flip,
			ViolationTypes: cr.ViolationTypes(),
			WarningCount:   len(cr.Warnings),
			Compliance:     cr,
		})
	}
	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, rs rules.RuleSet) ReplaySummary {
	s := ReplaySummary{
		Total:        len(results),
		RulesVersion: rs.Version,
	}
	for _, r := range results {
		if r.Replayed {
			s.Accepts++
		} else {
			s.Rejects++
		}
		switch r.Flip {
		case FlipPassToReject:
			s.PassToReject++
		case FlipRejectToPass:
			s.RejectToPass++
		default:
			s.Unchanged++
		}
	}
	return s
}

// #endregion replay
