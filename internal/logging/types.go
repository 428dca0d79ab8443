package logging

import (
	"time"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/gate"
)

// #region decision-entry
// DecisionEntry is a single row in the fusion_log table.
type DecisionEntry struct {
	ID           int64
	DecisionID   string
	UserID       string
	SessionID    string
	Decision     string // "accept" | "reject"
	Reason       string
	Coherence    float64
	RulesVersion string
	RecordJSON   string // DecisionRecord
	CreatedAt    time.Time
}

// #endregion decision-entry

// #region decision-record
// DecisionRecord captures the complete compliance inputs for a single
// interaction. Serialized as JSON into fusion_log.record_json for
// deterministic replay under other rule sets.
type DecisionRecord struct {
	DecisionID string `json:"decision_id"`
	Text       string `json:"text"`

	// Exact compliance inputs as evaluated at runtime
	Input gate.Input `json:"input"`

	// Compliance output
	Compliant      bool     `json:"compliant"`
	ViolationTypes []string `json:"violation_types,omitempty"`
	WarningCount   int      `json:"warning_count"`
	RulesVersion   string   `json:"rules_version"`

	// Fusion output
	Coherence float64            `json:"coherence"`
	Weights   map[string]float64 `json:"weights,omitempty"`
}

// #endregion decision-record
