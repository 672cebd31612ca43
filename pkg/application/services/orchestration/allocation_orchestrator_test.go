package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"github.com/vsinha/mixopt/pkg/application/dto"
	"github.com/vsinha/mixopt/pkg/application/services/demand"
	"github.com/vsinha/mixopt/pkg/application/services/model"
	"github.com/vsinha/mixopt/pkg/application/services/reconcile"
	"github.com/vsinha/mixopt/pkg/application/services/solver"
	fixtures "github.com/vsinha/mixopt/pkg/application/services/testing"
	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/policy"
	"github.com/vsinha/mixopt/pkg/infrastructure/events"
	"github.com/vsinha/mixopt/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/mixopt/pkg/logging"
)

var runDate = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

func newOrchestrator(t *testing.T) (*AllocationOrchestrator, *events.RunStore) {
	t.Helper()
	store := events.NewRunStore(logr.Discard())
	o := NewAllocationOrchestrator(reconcile.NewReconciler(), model.NewBuilder(), solver.NewSolver(), store)
	o.newRunID = func() string { return "run-test" }
	return o, store
}

func defaultPolicy() policy.Policy {
	return policy.Policy{
		FulfillOrders:       true,
		OptimizeSurplusOnly: true,
		Objective:           policy.MaximizeMargin,
		CostAllocationBonus: policy.DefaultCostAllocationBonus,
	}
}

func eventTypes(t *testing.T, store *events.RunStore) []string {
	t.Helper()
	evs, err := store.Run("run-test")
	require.NoError(t, err)
	types := make([]string, len(evs))
	for i, e := range evs {
		types[i] = e.Type()
	}
	return types
}

func quantity(result *dto.RunResult, sku entities.SKUCode) float64 {
	var total float64
	for _, d := range result.Decisions {
		if d.SKU == sku {
			total += d.AllocatedQuantity
		}
	}
	return total
}

func TestRun_SimpleReallocation(t *testing.T) {
	o, store := newOrchestrator(t)
	ctx := logr.NewContext(context.Background(), logging.NewTestLogger())

	result, err := o.Run(ctx, RunRequest{
		Date:    runDate,
		Policy:  defaultPolicy(),
		Sources: fixtures.SimpleReallocation().Sources(),
	})
	require.NoError(t, err)

	assert.Equal(t, "run-test", result.RunID)
	assert.Equal(t, entities.StatusOptimal, result.Status)
	assert.Equal(t, solver.SimplexBackend, result.Backend)
	assert.InDelta(t, 1500, result.TotalAllocated(), 1e-6)
	assert.InDelta(t, 1500, quantity(result, 102), 1e-6)
	assert.Equal(t, "4500", result.Comparison.MarginOptimized.Round(2).String())
	assert.Equal(t, "20", result.Comparison.GainPercentage.String())
	assert.False(t, result.HasWarnings())

	assert.Equal(t, []string{
		events.RunStartedEvent,
		events.PolicyResolvedEvent,
		events.InputReconciledEvent,
		events.ModelBuiltEvent,
		events.ModelSolvedEvent,
		events.RunCompletedEvent,
	}, eventTypes(t, store))
}

func TestRun_PolicyCorrectionIsWarned(t *testing.T) {
	o, store := newOrchestrator(t)
	p := defaultPolicy()
	p.OptimizeSurplusOnly = false

	result, err := o.Run(context.Background(), RunRequest{
		Date:    runDate,
		Policy:  p,
		Sources: fixtures.OrderProtection().Sources(),
	})
	require.NoError(t, err)

	require.Len(t, result.Corrections, 1)
	assert.True(t, result.Policy.OptimizeSurplusOnly)
	conflicts := result.WarningsOf(entities.PolicyConflictWarning)
	require.Len(t, conflicts, 1)
	assert.Equal(t, []string{"optimize_surplus_only"}, conflicts[0].Keys)
	assert.Contains(t, eventTypes(t, store), events.WarningRaisedEvent)

	assert.InDelta(t, 1000, result.TotalAllocated(), 1e-6)
	var ordered float64
	for _, d := range result.Decisions {
		if d.Kind == entities.DecisionOrder {
			ordered += d.AllocatedQuantity
		}
	}
	assert.InDelta(t, 300, ordered, 1e-6)
}

func TestRun_DemandCeilingFromSalesHistory(t *testing.T) {
	o, store := newOrchestrator(t)
	opts := demand.DefaultOptions(time.Time{})

	result, err := o.Run(context.Background(), RunRequest{
		Date:    runDate,
		Policy:  defaultPolicy(),
		Sources: fixtures.SimpleReallocation().Sources(),
		Sales:   memory.NewSalesRepository(fixtures.SalesHistory(102, runDate, 200, 250, 300)...),
		Demand:  &opts,
	})
	require.NoError(t, err)

	assert.InDelta(t, 427.5, quantity(result, 102), 1e-6)
	assert.InDelta(t, 1072.5, quantity(result, 101), 1e-6)
	assert.Contains(t, eventTypes(t, store), events.DemandCappedEvent)
}

func TestRun_DemandWithoutSalesDegrades(t *testing.T) {
	o, _ := newOrchestrator(t)
	opts := demand.DefaultOptions(runDate)

	result, err := o.Run(context.Background(), RunRequest{
		Date:    runDate,
		Policy:  defaultPolicy(),
		Sources: fixtures.SimpleReallocation().Sources(),
		Demand:  &opts,
	})
	require.NoError(t, err)

	assert.Len(t, result.WarningsOf(entities.DegradedInputWarning), 1)
	assert.InDelta(t, 1500, quantity(result, 102), 1e-6)
}

func TestRun_GreedyBackendWarnsFeasible(t *testing.T) {
	o, _ := newOrchestrator(t)

	result, err := o.Run(context.Background(), RunRequest{
		Date:    runDate,
		Policy:  defaultPolicy(),
		Sources: fixtures.TwoClasses().Sources(),
		Solver:  solver.Options{Backend: solver.GreedyBackend},
	})
	require.NoError(t, err)

	assert.Equal(t, entities.StatusFeasible, result.Status)
	assert.Len(t, result.WarningsOf(entities.FeasibleSolutionWarning), 1)
}

func TestRun_InfeasibleFails(t *testing.T) {
	o, store := newOrchestrator(t)
	p := defaultPolicy()
	p.MinUtilization = ptr.To(1.0)
	opts := demand.DefaultOptions(runDate)
	sales := append(fixtures.SalesHistory(101, runDate, 100, 100, 100),
		fixtures.SalesHistory(102, runDate, 100, 100, 100)...)

	_, err := o.Run(context.Background(), RunRequest{
		Date:    runDate,
		Policy:  p,
		Sources: fixtures.SimpleReallocation().Sources(),
		Sales:   memory.NewSalesRepository(sales...),
		Demand:  &opts,
	})
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, StageSolve, runErr.Stage)
	assert.Equal(t, "run-test", runErr.RunID)

	var failure *entities.SolveFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, entities.StatusInfeasibleOrError, failure.Status)

	types := eventTypes(t, store)
	assert.Equal(t, events.RunFailedEvent, types[len(types)-1])
}

func TestRun_MissingCostsIsConfigurationError(t *testing.T) {
	o, _ := newOrchestrator(t)
	src := fixtures.SimpleReallocation().Sources()
	src.Costs = nil

	_, err := o.Run(context.Background(), RunRequest{Date: runDate, Policy: defaultPolicy(), Sources: src})

	var cfgErr *entities.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "costs", cfgErr.Source)
}

func TestRun_InvalidPolicy(t *testing.T) {
	o, _ := newOrchestrator(t)
	p := defaultPolicy()
	p.CostAllocationBonus = -1

	_, err := o.Run(context.Background(), RunRequest{Date: runDate, Policy: p, Sources: fixtures.SimpleReallocation().Sources()})

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, StagePolicy, runErr.Stage)
}

func TestRun_EmptyInput(t *testing.T) {
	o, _ := newOrchestrator(t)

	result, err := o.Run(context.Background(), RunRequest{
		Date:    runDate,
		Policy:  defaultPolicy(),
		Sources: fixtures.NewScenario().WithProduction("GRADE_A", 100).Sources(),
	})
	require.NoError(t, err)

	assert.Equal(t, entities.StatusOptimal, result.Status)
	assert.NotNil(t, result.Decisions)
	assert.Empty(t, result.Decisions)
}
