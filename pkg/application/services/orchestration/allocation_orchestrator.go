package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/vsinha/mixopt/pkg/application/dto"
	"github.com/vsinha/mixopt/pkg/application/services/compare"
	"github.com/vsinha/mixopt/pkg/application/services/demand"
	"github.com/vsinha/mixopt/pkg/application/services/model"
	"github.com/vsinha/mixopt/pkg/application/services/reconcile"
	"github.com/vsinha/mixopt/pkg/application/services/solver"
	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/policy"
	"github.com/vsinha/mixopt/pkg/domain/repositories"
	"github.com/vsinha/mixopt/pkg/infrastructure/events"
	"github.com/vsinha/mixopt/pkg/logging"
)

// Pipeline stages, as reported in run.failed events
const (
	StagePolicy    = "policy"
	StageReconcile = "reconcile"
	StageDemand    = "demand"
	StageBuild     = "build"
	StageSolve     = "solve"
	StageExtract   = "extract"
)

// RunRequest holds everything one run needs. Sales and Demand are optional;
// a nil Demand disables the demand ceiling.
type RunRequest struct {
	Date    time.Time
	Policy  policy.Policy
	Sources reconcile.Sources
	Sales   repositories.SalesHistoryRepository
	Demand  *demand.Options
	Solver  solver.Options
}

// AllocationOrchestrator runs the pipeline: policy, reconciliation, demand
// capping, model build, solve, extraction and comparison
type AllocationOrchestrator struct {
	reconciler *reconcile.Reconciler
	builder    *model.Builder
	solver     *solver.Solver
	store      events.EventStore
	newRunID   func() string
}

// NewAllocationOrchestrator creates a new allocation orchestrator
func NewAllocationOrchestrator(
	reconciler *reconcile.Reconciler,
	builder *model.Builder,
	solver *solver.Solver,
	store events.EventStore,
) *AllocationOrchestrator {
	return &AllocationOrchestrator{
		reconciler: reconciler,
		builder:    builder,
		solver:     solver,
		store:      store,
		newRunID:   uuid.NewString,
	}
}

// run carries the per-run state through the stages
type run struct {
	id       string
	logger   logr.Logger
	store    events.EventStore
	warnings []entities.Warning
}

func (r *run) emit(e events.Event) {
	if err := r.store.Append(e); err != nil {
		r.logger.Error(err, "Failed to record run event", "type", e.Type())
	}
}

func (r *run) warn(ws ...entities.Warning) {
	for _, w := range ws {
		r.warnings = append(r.warnings, w)
		r.emit(events.NewWarningRaisedEvent(r.id, w))
	}
}

func (r *run) fail(stage string, err error) error {
	r.emit(events.NewRunFailedEvent(r.id, stage, err))
	r.logger.Error(err, "Run failed", "stage", stage)
	return &RunError{RunID: r.id, Stage: stage, Err: err}
}

// RunError reports the stage a run failed in. It unwraps to the stage error.
type RunError struct {
	RunID string
	Stage string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s: %s failed: %v", e.RunID, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Run executes one allocation run. Every stage is recorded in the event store
// under the returned run id; a failing stage records run.failed and aborts.
func (o *AllocationOrchestrator) Run(ctx context.Context, req RunRequest) (*dto.RunResult, error) {
	start := time.Now()
	r := &run{
		id:    o.newRunID(),
		store: o.store,
	}
	r.logger = logr.FromContextOrDiscard(ctx).WithValues("runID", r.id)
	ctx = logr.NewContext(ctx, r.logger)

	backend := req.Solver.Backend
	if backend == "" {
		backend = solver.SimplexBackend
	}
	r.emit(events.NewRunStartedEvent(r.id, req.Date.Format(time.DateOnly), backend))
	r.logger.Info("Starting allocation run", "date", req.Date.Format(time.DateOnly), "backend", backend)

	// Step 1: Resolve the policy flags
	if err := req.Policy.Validate(); err != nil {
		return nil, r.fail(StagePolicy, entities.NewConfigurationError("policy", "invalid policy", err))
	}
	eff, corrections := policy.Resolve(req.Policy)
	for _, c := range corrections {
		w := entities.NewWarning(entities.PolicyConflictWarning, "policy", c.String(), c.Field)
		logging.Warn(r.logger, w)
		r.warn(w)
	}
	if req.Policy.ReallocationLimitFactor != 0 {
		r.logger.Info("reallocation_limit_factor is accepted for compatibility and has no effect",
			"reallocationLimitFactor", req.Policy.ReallocationLimitFactor)
	}
	r.emit(events.NewPolicyResolvedEvent(r.id, eff, corrections))

	// Step 2: Reconcile the upstream tables
	table, err := o.reconciler.Reconcile(ctx, req.Sources)
	if err != nil {
		return nil, r.fail(StageReconcile, err)
	}
	r.warn(table.Warnings...)
	r.emit(events.NewInputReconciledEvent(r.id, events.InputReconciled{
		InputItems:       table.Stats.InputItems,
		Kept:             table.Stats.Kept,
		Dropped:          table.Stats.Dropped(),
		Classes:          len(table.Classes()),
		Orders:           len(table.Orders()),
		UnmodelledOrders: table.Stats.UnmodelledOrders,
	}))

	// Step 3: Demand ceilings from sales history
	var ceilings demand.Ceilings
	if req.Demand != nil {
		opts := *req.Demand
		if opts.ReferenceDate.IsZero() {
			opts.ReferenceDate = req.Date
		}
		var warnings []entities.Warning
		ceilings, warnings = demand.Load(ctx, req.Sales, opts)
		r.warn(warnings...)
		from, to := opts.Window()
		r.emit(events.NewDemandCappedEvent(r.id, events.DemandCapped{
			Ceilings:  len(ceilings),
			From:      from,
			To:        to,
			Estimator: opts.Estimator.String(),
		}))
	}

	// Step 4: Build the model
	m, err := o.builder.Build(ctx, table, ceilings, eff)
	if err != nil {
		return nil, r.fail(StageBuild, err)
	}
	summary := m.Summary()
	constraints := make(map[string]int, len(summary.Constraints))
	for kind, n := range summary.Constraints {
		constraints[kind.String()] = n
	}
	r.emit(events.NewModelBuiltEvent(r.id, events.ModelBuilt{
		Variables:        summary.Variables,
		OrderVariables:   summary.OrderVariables,
		SurplusVariables: summary.SurplusVariables,
		Constraints:      constraints,
	}))

	// Step 5: Solve
	sol, err := o.solver.Solve(ctx, m, req.Solver)
	if err != nil {
		return nil, r.fail(StageSolve, err)
	}
	r.warn(sol.Warnings...)
	r.emit(events.NewModelSolvedEvent(r.id, events.ModelSolved{
		Status:    sol.Status,
		Backend:   sol.Backend,
		Objective: sol.Objective,
		Duration:  sol.Duration,
	}))

	// Step 6: Extract decisions and compare with the baseline
	res, err := model.Extract(ctx, m, sol.Values, table)
	if err != nil {
		return nil, r.fail(StageExtract, err)
	}
	comparison := compare.Compare(ctx, table, res.Decisions)

	result := &dto.RunResult{
		RunID:       r.id,
		Date:        req.Date,
		Status:      sol.Status,
		Backend:     sol.Backend,
		Policy:      eff,
		Corrections: corrections,
		Decisions:   res.Decisions,
		Rollups:     res.Rollups,
		Comparison:  comparison,
		Objective:   res.Objective,
		Warnings:    r.warnings,
		Stats:       table.Stats,
		Duration:    time.Since(start),
	}
	r.emit(events.NewRunCompletedEvent(r.id, events.RunCompleted{
		Status:      result.Status,
		Decisions:   len(result.Decisions),
		Allocated:   res.TotalAllocated(),
		Utilization: res.Ledger.Utilization(),
		Classes:     result.Rollups,
		Comparison:  comparison,
		Duration:    result.Duration,
	}))

	r.logger.Info("Allocation run completed",
		"status", result.Status.String(),
		"decisions", len(result.Decisions),
		"allocated", res.TotalAllocated(),
		"warnings", len(result.Warnings),
		"duration", result.Duration.String())

	return result, nil
}

// Events returns the recorded events of one run
func (o *AllocationOrchestrator) Events(runID string) ([]events.Event, error) {
	return o.store.Run(runID)
}
