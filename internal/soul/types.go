package soul

import (
	"errors"
	"maps"
	"time"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
)

// ErrNotFound is returned for unknown users.
var ErrNotFound = errors.New("soul: not found")

// #region record
// Record is one user's persistent affect state.
type Record struct {
	UserID           string         `json:"user_id"`
	Vector           signals.Affect `json:"vector"`
	Alignment        float64        `json:"alignment_score"`
	InteractionCount int            `json:"interaction_count"`
	Preferences      map[string]any `json:"preferences"`
	CreatedAt        time.Time      `json:"created_at"`
	LastUpdated      time.Time      `json:"last_updated"`
}

// Clone returns a copy sharing no mutable state with r.
func (r Record) Clone() Record {
	r.Preferences = maps.Clone(r.Preferences)
	if r.Preferences == nil {
		r.Preferences = map[string]any{}
	}
	return r
}

// #endregion record

// #region version
// Version is one committed update in a user's history.
type Version struct {
	VersionID        string
	UserID           string
	Vector           signals.Affect
	Alignment        float64
	InteractionCount int
	Coherence        float64
	DeltaNorm        float64
	Decision         string
	CreatedAt        time.Time
}

// #endregion version

// #region stats
// Stats aggregates alignment and interaction totals across all users.
type Stats struct {
	TotalUsers        int     `json:"total_users"`
	AvgAlignment      float64 `json:"avg_alignment"`
	MinAlignment      float64 `json:"min_alignment"`
	MaxAlignment      float64 `json:"max_alignment"`
	TotalInteractions int     `json:"total_interactions"`
}

// UserStats describes one user's soul.
type UserStats struct {
	UserID           string         `json:"user_id"`
	Alignment        float64        `json:"alignment_score"`
	InteractionCount int            `json:"interaction_count"`
	VectorMagnitude  float64        `json:"vector_magnitude"`
	Vector           signals.Affect `json:"vector"`
	Preferences      map[string]any `json:"preferences"`
	CreatedAt        time.Time      `json:"created_at"`
	LastUpdated      time.Time      `json:"last_updated"`
}

// #endregion stats
