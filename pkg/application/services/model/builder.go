package model

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/vsinha/mixopt/pkg/application/services/demand"
	"github.com/vsinha/mixopt/pkg/application/services/reconcile"
	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/policy"
	"github.com/vsinha/mixopt/pkg/logging"
)

// Builder turns a reconciled table into the allocation LP
type Builder struct{}

// NewBuilder creates a new model builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Build constructs variables, constraints and objective under the effective
// policy. ceilings may be nil when demand capping is disabled. Build performs
// no I/O.
func (b *Builder) Build(ctx context.Context, table *reconcile.Table, ceilings demand.Ceilings, eff policy.Effective) (*Model, error) {
	if table == nil {
		return nil, fmt.Errorf("model builder requires a reconciled table")
	}
	logger := logr.FromContextOrDiscard(ctx).WithName("model")

	m := &Model{
		Variables:   []Variable{},
		Constraints: []Constraint{},
		Direction:   Maximize,
		Policy:      eff,
		Pools:       make(map[string]ClassPool),
	}
	if eff.Objective == policy.MinimizeCost {
		m.Direction = Minimize
	}

	for _, class := range table.Classes() {
		capacity := table.ClassCapacity(class.Name)
		if capacity <= 0 {
			logger.V(logging.DEBUG).Info("Skipping class without production", "class", class.Name)
			continue
		}

		pool := ClassPool{Class: class.Name, Capacity: capacity}

		if eff.Mode() == policy.OrdersThenSurplus {
			var orderVars []Term
			for _, order := range table.OrdersOf(class.Name) {
				bound := min(order.TotalQuantity, capacity)
				if bound <= 0 {
					continue
				}
				idx := m.addVariable(Variable{
					Name:      fmt.Sprintf("order[%d]", order.SKU),
					Kind:      OrderVar,
					Item:      entities.NewItemID(order.SKU, entities.PackageDescriptor{}),
					SKU:       order.SKU,
					Class:     class.Name,
					Upper:     bound,
					Objective: objectiveCoef(eff, order.UnitMargin.InexactFloat64(), order.UnitCost.InexactFloat64()),
				})
				m.addConstraint(Constraint{
					Name:  fmt.Sprintf("order_bound[%d]", order.SKU),
					Kind:  OrderBoundRow,
					Terms: []Term{{Var: idx, Coef: 1}},
					Sense: LessEqual,
					RHS:   bound,
				})
				orderVars = append(orderVars, Term{Var: idx, Coef: 1})
				pool.OrderReserved += bound
			}
			if len(orderVars) > 0 {
				m.addConstraint(Constraint{
					Name:  fmt.Sprintf("class_orders[%s]", class.Name),
					Kind:  ClassOrdersRow,
					Terms: orderVars,
					Sense: LessEqual,
					RHS:   capacity,
				})
			}
			pool.Available = max(0, capacity-pool.OrderReserved)
		} else {
			pool.Available = capacity
		}

		m.Pools[class.Name] = pool
		if pool.Available <= 0 {
			logger.V(logging.DEBUG).Info("Orders reserve the whole class, no surplus to optimize",
				"class", class.Name, "capacity", capacity, "reserved", pool.OrderReserved)
			continue
		}

		var surplusVars []Term
		for _, unit := range table.UnitsOf(class.Name) {
			idx := m.addVariable(Variable{
				Name:      fmt.Sprintf("surplus[%s]", unit.ItemID),
				Kind:      SurplusVar,
				Item:      unit.ItemID,
				SKU:       unit.SKU,
				Class:     class.Name,
				Upper:     pool.Available,
				Objective: objectiveCoef(eff, unit.UnitMargin.InexactFloat64(), unit.UnitCost.InexactFloat64()),
			})
			surplusVars = append(surplusVars, Term{Var: idx, Coef: 1})

			if ceilings != nil {
				if ceiling, ok := ceilings.Get(unit.SKU); ok {
					m.addConstraint(Constraint{
						Name:  fmt.Sprintf("demand_ceiling[%s]", unit.ItemID),
						Kind:  DemandCeilingRow,
						Terms: []Term{{Var: idx, Coef: 1}},
						Sense: LessEqual,
						RHS:   ceiling,
					})
				}
			}
		}

		m.addConstraint(Constraint{
			Name:  fmt.Sprintf("class_pool[%s]", class.Name),
			Kind:  ClassPoolRow,
			Terms: surplusVars,
			Sense: LessEqual,
			RHS:   pool.Available,
		})

		if eff.MinUtilization != nil && *eff.MinUtilization > 0 {
			m.addConstraint(Constraint{
				Name:  fmt.Sprintf("min_utilization[%s]", class.Name),
				Kind:  MinUtilizationRow,
				Terms: append([]Term(nil), surplusVars...),
				Sense: GreaterEqual,
				RHS:   *eff.MinUtilization * pool.Available,
			})
		}
	}

	s := m.Summary()
	logger.Info("Built allocation model",
		"mode", eff.Mode().String(),
		"objective", eff.Objective.String(),
		"variables", s.Variables,
		"orderVariables", s.OrderVariables,
		"surplusVariables", s.SurplusVariables,
		"constraints", len(m.Constraints),
		"classes", s.Classes)
	logger.V(logging.TRACE).Info("Allocation model", "lp", m.String())

	return m, nil
}

// objectiveCoef is the per-unit objective weight. In cost mode every allocated
// unit earns the allocation bonus, orders included.
func objectiveCoef(eff policy.Effective, margin, cost float64) float64 {
	if eff.Objective == policy.MinimizeCost {
		return cost - eff.CostAllocationBonus
	}
	return margin
}

func (m *Model) addVariable(v Variable) int {
	v.Index = len(m.Variables)
	m.Variables = append(m.Variables, v)
	return v.Index
}

func (m *Model) addConstraint(c Constraint) {
	m.Constraints = append(m.Constraints, c)
}
