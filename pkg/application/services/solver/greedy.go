package solver

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/vsinha/mixopt/pkg/application/services/model"
	"github.com/vsinha/mixopt/pkg/domain/entities"
)

// Greedy fills variables in order of objective benefit until the rows they share
// are exhausted. Its solutions are FEASIBLE, never proven OPTIMAL.
type Greedy struct{}

// NewGreedy creates the greedy backend
func NewGreedy() *Greedy {
	return &Greedy{}
}

// Name returns the backend name
func (g *Greedy) Name() string {
	return GreedyBackend
}

// Solve allocates every variable with a positive benefit as far as its <= rows allow,
// then tops up >= rows that are still short.
func (g *Greedy) Solve(ctx context.Context, m *model.Model) (*Solution, error) {
	values := make([]float64, len(m.Variables))
	for i, v := range m.Variables {
		values[i] = v.Lower
	}

	rowsOf := make([][]int, len(m.Variables))
	for ci, c := range m.Constraints {
		for _, t := range c.Terms {
			rowsOf[t.Var] = append(rowsOf[t.Var], ci)
		}
	}

	benefit := func(i int) float64 {
		if m.Direction == model.Minimize {
			return -m.Variables[i].Objective
		}
		return m.Variables[i].Objective
	}
	order := make([]int, len(m.Variables))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return benefit(order[a]) > benefit(order[b])
	})

	for _, i := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if benefit(i) <= 0 {
			break
		}
		values[i] += headroom(m, values, rowsOf[i], i)
	}

	for _, c := range m.Constraints {
		if c.Sense != model.GreaterEqual {
			continue
		}
		short := c.RHS - rowValue(c, values)
		for _, t := range c.Terms {
			if short <= simplexTolerance {
				break
			}
			if t.Coef <= 0 {
				continue
			}
			add := min(headroom(m, values, rowsOf[t.Var], t.Var), short/t.Coef)
			values[t.Var] += add
			short -= add * t.Coef
		}
		if short > 1e-6 {
			return nil, entities.NewSolveFailure(entities.StatusInfeasibleOrError,
				fmt.Sprintf("greedy fill cannot satisfy %s (short by %g)", c.Name, short), nil)
		}
	}

	return &Solution{
		Status:    entities.StatusFeasible,
		Objective: m.ObjectiveValue(values),
		Values:    values,
	}, nil
}

// headroom is how much variable i can still grow within its bound and every <= row
func headroom(m *model.Model, values []float64, rows []int, i int) float64 {
	room := m.Variables[i].Upper - values[i]
	for _, ci := range rows {
		c := m.Constraints[ci]
		if c.Sense != model.LessEqual {
			continue
		}
		for _, t := range c.Terms {
			if t.Var == i && t.Coef > 0 {
				room = math.Min(room, (c.RHS-rowValue(c, values))/t.Coef)
			}
		}
	}
	return math.Max(0, room)
}

func rowValue(c model.Constraint, values []float64) float64 {
	var total float64
	for _, t := range c.Terms {
		total += t.Coef * values[t.Var]
	}
	return total
}
