package entities

import (
	"fmt"
)

// ConfigurationError reports a missing or malformed mandatory input. It aborts the run.
type ConfigurationError struct {
	Source string
	Reason string
	Err    error
}

// NewConfigurationError creates a ConfigurationError for the named source
func NewConfigurationError(source, reason string, err error) *ConfigurationError {
	return &ConfigurationError{Source: source, Reason: reason, Err: err}
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error in %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Source, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// SolveStatus represents the state of the solve state machine
type SolveStatus int

const (
	StatusBuilt SolveStatus = iota
	StatusSolving
	StatusOptimal
	StatusFeasible
	StatusInfeasibleOrError
	StatusTimeLimit
)

// String method for SolveStatus enum
func (s SolveStatus) String() string {
	switch s {
	case StatusBuilt:
		return "BUILT"
	case StatusSolving:
		return "SOLVING"
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasibleOrError:
		return "INFEASIBLE_OR_ERROR"
	case StatusTimeLimit:
		return "TIME_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status label in JSON output
func (s SolveStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HasSolution reports whether the status carries usable variable values
func (s SolveStatus) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// SolveFailure reports a solve that ended without a usable solution. It is fatal
// to the run and never retried.
type SolveFailure struct {
	Status SolveStatus
	Reason string
	Err    error
}

// NewSolveFailure creates a SolveFailure
func NewSolveFailure(status SolveStatus, reason string, err error) *SolveFailure {
	return &SolveFailure{Status: status, Reason: reason, Err: err}
}

func (e *SolveFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("solve failed with status %s: %s: %v", e.Status, e.Reason, e.Err)
	}
	return fmt.Sprintf("solve failed with status %s: %s", e.Status, e.Reason)
}

func (e *SolveFailure) Unwrap() error {
	return e.Err
}
