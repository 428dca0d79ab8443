package update

import (
	"time"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
)

// #region state
// State is the part of a soul record the update function evolves.
type State struct {
	Vector           signals.Affect
	Alignment        float64
	InteractionCount int
	LastUpdated      time.Time
}

// #endregion state

// #region decision
// Decision records what the update function decided.
type Decision struct {
	Action string // "commit" | "retain_vector"
	Reason string
}

// #endregion decision

// #region metrics
// Metrics captures telemetry from an update.
type Metrics struct {
	DeltaNorm           float64 // L2 norm of the vector change
	AlignmentDelta      float64
	SanitizedComponents int  // non-finite signal components replaced by 0
	Degenerate          bool // blended vector had zero norm; previous vector kept
	UpdateTimeMicros    int64
}

// #endregion metrics

// #region update-config
// Config holds the moving-average retention factors.
type Config struct {
	VectorRetention    float64 // weight of the previous vector (default 0.9)
	AlignmentRetention float64 // weight of the previous alignment (default 0.9)
}

// DefaultConfig returns the standard retention factors.
func DefaultConfig() Config {
	return Config{
		VectorRetention:    0.9,
		AlignmentRetention: 0.9,
	}
}

// #endregion update-config

// #region update-result
// Result bundles everything returned by Update.
type Result struct {
	State    State
	Decision Decision
	Metrics  Metrics
}

// #endregion update-result
