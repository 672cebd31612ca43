package model

import (
	"context"
	"fmt"
	"math"

	"github.com/go-logr/logr"

	"github.com/vsinha/mixopt/pkg/application/services/reconcile"
	"github.com/vsinha/mixopt/pkg/application/services/shared"
	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/logging"
)

// MinAllocation is the smallest solved value reported as a decision
const MinAllocation = 0.01

// significantShare is the deviation from the uniform share that counts as a reallocation
const significantShare = 0.05

// Result holds the decisions read back from a solved model
type Result struct {
	Decisions []entities.AllocationDecision
	Rollups   []entities.ClassRollup
	Objective float64
	Ledger    shared.UsageLedger
}

// TotalAllocated returns the allocated quantity over all decisions
func (r *Result) TotalAllocated() float64 {
	return r.Ledger.TotalAllocated()
}

// Extract converts solved variable values into allocation decisions and class rollups.
// Values at or below MinAllocation are dropped.
func Extract(ctx context.Context, m *Model, values []float64, table *reconcile.Table) (*Result, error) {
	if len(values) != len(m.Variables) {
		return nil, fmt.Errorf("solution has %d values for %d variables", len(values), len(m.Variables))
	}
	logger := logr.FromContextOrDiscard(ctx).WithName("model")

	decisions := make([]entities.AllocationDecision, 0, len(values))
	for i, v := range m.Variables {
		qty := values[i]
		if qty <= MinAllocation {
			continue
		}

		switch v.Kind {
		case OrderVar:
			order, ok := table.Order(v.SKU)
			if !ok {
				return nil, fmt.Errorf("variable %s has no order aggregate", v.Name)
			}
			decisions = append(decisions, entities.NewAllocationDecision(
				v.Item, v.Class, entities.DecisionOrder, qty, order.UnitPrice, order.UnitCost))
		case SurplusVar:
			unit, ok := table.Unit(v.Item)
			if !ok {
				return nil, fmt.Errorf("variable %s has no allocation unit", v.Name)
			}
			decisions = append(decisions, entities.NewAllocationDecision(
				v.Item, v.Class, entities.DecisionSurplus, qty, unit.UnitPrice, unit.UnitCost))
		}
	}

	capacities := make(map[string]float64)
	for _, class := range table.Classes() {
		capacities[class.Name] = table.ClassCapacity(class.Name)
	}
	ledger := shared.NewUsageLedgerFromDecisions(capacities, decisions)

	result := &Result{
		Decisions: decisions,
		Rollups:   ledger.Rollups(),
		Objective: m.ObjectiveValue(values),
		Ledger:    ledger,
	}

	if logger.V(logging.DEBUG).Enabled() {
		logReallocations(logger, m, values, table)
	}
	logger.Info("Extracted allocation decisions",
		"decisions", len(decisions),
		"allocated", ledger.TotalAllocated(),
		"utilization", ledger.Utilization(),
		"objective", result.Objective)

	return result, nil
}

// logReallocations reports surplus allocations far from an even split of the class capacity
func logReallocations(logger logr.Logger, m *Model, values []float64, table *reconcile.Table) {
	for i, v := range m.Variables {
		if v.Kind != SurplusVar {
			continue
		}
		units := len(table.UnitsOf(v.Class))
		if units == 0 {
			continue
		}
		uniform := table.ClassCapacity(v.Class) / float64(units)
		delta := values[i] - uniform
		if math.Abs(delta) > significantShare*uniform {
			logger.V(logging.DEBUG).Info("Significant reallocation",
				"item", v.Item.String(),
				"class", v.Class,
				"uniform", uniform,
				"optimized", values[i],
				"delta", delta)
		}
	}
}
