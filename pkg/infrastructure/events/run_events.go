package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/policy"
)

// EventsFile is the audit trail written next to the run outputs
const EventsFile = "run_events.json"

const (
	RunStartedEvent      = "run.started"
	RunCompletedEvent    = "run.completed"
	RunFailedEvent       = "run.failed"
	PolicyResolvedEvent  = "policy.resolved"
	InputReconciledEvent = "input.reconciled"
	DemandCappedEvent    = "demand.capped"
	ModelBuiltEvent      = "model.built"
	ModelSolvedEvent     = "model.solved"
	WarningRaisedEvent   = "warning.raised"
)

type RunStarted struct {
	Date    string `json:"date"`
	Backend string `json:"backend"`
}

type RunCompleted struct {
	Status      entities.SolveStatus   `json:"status"`
	Decisions   int                    `json:"decisions"`
	Allocated   float64                `json:"allocated"`
	Utilization float64                `json:"utilization"`
	Classes     []entities.ClassRollup `json:"classes"`
	Comparison  entities.Comparison    `json:"comparison"`
	Duration    time.Duration          `json:"duration_ns"`
}

type RunFailed struct {
	Stage  string `json:"stage"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error"`
}

type PolicyResolved struct {
	Mode        string              `json:"mode"`
	Objective   string              `json:"objective"`
	Corrections []policy.Correction `json:"corrections,omitempty"`
}

type InputReconciled struct {
	InputItems       int `json:"input_items"`
	Kept             int `json:"kept"`
	Dropped          int `json:"dropped"`
	Classes          int `json:"classes"`
	Orders           int `json:"orders"`
	UnmodelledOrders int `json:"unmodelled_orders"`
}

type DemandCapped struct {
	Ceilings  int       `json:"ceilings"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Estimator string    `json:"estimator"`
}

type ModelBuilt struct {
	Variables        int            `json:"variables"`
	OrderVariables   int            `json:"order_variables"`
	SurplusVariables int            `json:"surplus_variables"`
	Constraints      map[string]int `json:"constraints"`
}

type ModelSolved struct {
	Status    entities.SolveStatus `json:"status"`
	Backend   string               `json:"backend"`
	Objective float64              `json:"objective"`
	Duration  time.Duration        `json:"duration_ns"`
}

type WarningRaised struct {
	Warning entities.Warning `json:"warning"`
}

func NewRunStartedEvent(runID, date, backend string) Event {
	return newEvent(RunStartedEvent, runID, RunStarted{Date: date, Backend: backend})
}

func NewRunCompletedEvent(runID string, data RunCompleted) Event {
	return newEvent(RunCompletedEvent, runID, data)
}

func NewRunFailedEvent(runID, stage string, err error) Event {
	data := RunFailed{Stage: stage, Error: err.Error()}
	var failure *entities.SolveFailure
	if errors.As(err, &failure) {
		data.Status = failure.Status.String()
	}
	return newEvent(RunFailedEvent, runID, data)
}

func NewPolicyResolvedEvent(runID string, eff policy.Effective, corrections []policy.Correction) Event {
	return newEvent(PolicyResolvedEvent, runID, PolicyResolved{
		Mode:        eff.Mode().String(),
		Objective:   eff.Objective.String(),
		Corrections: corrections,
	})
}

func NewInputReconciledEvent(runID string, data InputReconciled) Event {
	return newEvent(InputReconciledEvent, runID, data)
}

func NewDemandCappedEvent(runID string, data DemandCapped) Event {
	return newEvent(DemandCappedEvent, runID, data)
}

func NewModelBuiltEvent(runID string, data ModelBuilt) Event {
	return newEvent(ModelBuiltEvent, runID, data)
}

func NewModelSolvedEvent(runID string, data ModelSolved) Event {
	return newEvent(ModelSolvedEvent, runID, data)
}

func NewWarningRaisedEvent(runID string, w entities.Warning) Event {
	return newEvent(WarningRaisedEvent, runID, WarningRaised{Warning: w})
}

// WriteJSON writes events as an indented JSON array
func WriteJSON(w io.Writer, events []Event) error {
	if events == nil {
		events = []Event{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	return nil
}

// SaveJSON writes the events of one run to dir/run_events.json
func SaveJSON(dir string, events []Event) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, EventsFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteJSON(f, events); err != nil {
		return "", err
	}
	return path, nil
}
