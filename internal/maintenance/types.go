package maintenance

import (
	"time"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/soul"
)

// DefaultSchedule runs the cycle every six hours.
const DefaultSchedule = "@every 6h"

// #region report
// CountCheck is the result of validating one store.
type CountCheck struct {
	Count  int    `json:"count"`
	Status string `json:"status"` // "valid" | "error"
	Error  string `json:"error,omitempty"`
}

// ValidationReport is stage 1.
type ValidationReport struct {
	Vectors  CountCheck `json:"vectors"`
	Concepts CountCheck `json:"concepts"`
}

// CleanupReport is stage 2.
type CleanupReport struct {
	Status              string `json:"status"` // "skipped" | "complete" | "error"
	RelationshipsPruned int64  `json:"relationships_pruned,omitempty"`
	Error               string `json:"error,omitempty"`
}

// RefinementReport is stage 3.
type RefinementReport struct {
	UsersProcessed int        `json:"users_processed"`
	FailedUsers    []string   `json:"failed_users,omitempty"`
	Stats          soul.Stats `json:"stats"`
	Status         string     `json:"status"` // "complete" | "error"
	Error          string     `json:"error,omitempty"`
}

// Report is the outcome of one maintenance cycle.
type Report struct {
	StartedAt       time.Time        `json:"started_at"`
	Validation      ValidationReport `json:"validation"`
	Cleanup         CleanupReport    `json:"cleanup"`
	SoulRefinement  RefinementReport `json:"soul_refinement"`
	DurationSeconds float64          `json:"duration_seconds"`
	Success         bool             `json:"success"`
	Error           string           `json:"error,omitempty"`
}

// #endregion report

// #region status
// Status describes the scheduler.
type Status struct {
	Running  bool       `json:"scheduler_running"`
	Schedule string     `json:"schedule"`
	LastRun  *time.Time `json:"last_run"`
	RunCount int        `json:"run_count"`
	NextRun  *time.Time `json:"next_run"`
}

// #endregion status
