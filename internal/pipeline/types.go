package pipeline

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/fusion"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/maintenance"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/retrieval"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/soul"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/update"
)

// ErrInvalidRequest is returned by Process for empty text or user id.
var ErrInvalidRequest = errors.New("pipeline: invalid request")

// #region request
// Request is one user interaction.
type Request struct {
	Text      string `json:"text"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"` // generated when empty
}

// #endregion request

// #region outcome
// Outcome is the result of processing a request. A policy rejection is an
// Outcome with Fused.Success false; Soul is then nil.
type Outcome struct {
	DecisionID   string            `json:"decision_id"`
	SessionID    string            `json:"session_id"`
	Fused        fusion.Result     `json:"fused"`
	Soul         *soul.Record      `json:"soul,omitempty"`
	SoulMetrics  *update.Metrics   `json:"soul_metrics,omitempty"`
	Related      retrieval.Related `json:"related"`
	RulesVersion string            `json:"rules_version"`
}

// #endregion outcome

// #region health
// Health summarizes the running components.
type Health struct {
	Status        string             `json:"status"` // "healthy" | "degraded"
	Mode          string             `json:"mode"`
	Vectors       int                `json:"vectors"`
	Concepts      int                `json:"concepts"`
	Souls         int                `json:"souls"`
	RulesVersion  string             `json:"rules_version"`
	RulesLoadedAt time.Time          `json:"rules_loaded_at"`
	Maintenance   maintenance.Status `json:"maintenance"`
	Weights       map[string]float64 `json:"weights"`
	Errors        []string           `json:"errors,omitempty"`
}

// #endregion health
