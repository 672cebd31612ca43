package dto

import (
	"time"

	"github.com/vsinha/mixopt/pkg/application/services/reconcile"
	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/policy"
)

// RunResult contains the complete output of one allocation run
type RunResult struct {
	RunID       string                        `json:"run_id"`
	Date        time.Time                     `json:"date"`
	Status      entities.SolveStatus          `json:"status"`
	Backend     string                        `json:"backend"`
	Policy      policy.Effective              `json:"-"`
	Corrections []policy.Correction           `json:"corrections,omitempty"`
	Decisions   []entities.AllocationDecision `json:"decisions"`
	Rollups     []entities.ClassRollup        `json:"classes"`
	Comparison  entities.Comparison           `json:"comparison"`
	Objective   float64                       `json:"objective"`
	Warnings    []entities.Warning            `json:"warnings"`
	Stats       reconcile.Stats               `json:"-"`
	Duration    time.Duration                 `json:"duration_ns"`
}

// TotalAllocated returns the allocated quantity across all decisions
func (r *RunResult) TotalAllocated() float64 {
	var total float64
	for _, d := range r.Decisions {
		total += d.AllocatedQuantity
	}
	return total
}

// HasWarnings reports whether any recovered condition was raised
func (r *RunResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// WarningsOf returns the warnings of one kind
func (r *RunResult) WarningsOf(kind entities.WarningKind) []entities.Warning {
	var out []entities.Warning
	for _, w := range r.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}
