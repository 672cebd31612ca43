package solver

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/vsinha/mixopt/pkg/application/services/model"
	"github.com/vsinha/mixopt/pkg/domain/entities"
)

const simplexTolerance = 1e-9

// Simplex solves the model exactly with the gonum simplex method
type Simplex struct{}

// NewSimplex creates the simplex backend
func NewSimplex() *Simplex {
	return &Simplex{}
}

// Name returns the backend name
func (s *Simplex) Name() string {
	return SimplexBackend
}

// Solve runs lp.Simplex once per independent block of the model and scatters
// the block solutions back into one value vector. gonum's simplex does not
// observe the context, so cancellation is checked between blocks.
func (s *Simplex) Solve(ctx context.Context, m *model.Model) (*Solution, error) {
	if rows := m.UnsatisfiableRows(); len(rows) > 0 {
		return nil, entities.NewSolveFailure(entities.StatusInfeasibleOrError,
			fmt.Sprintf("model is infeasible: row %s has no variables", rows[0].Name), lp.ErrInfeasible)
	}

	values := make([]float64, len(m.Variables))
	for _, block := range m.Blocks() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		x, err := solveBlock(block.Model)
		if err != nil {
			return nil, err
		}
		for j, v := range block.Vars {
			values[v] = x[j]
		}
	}
	return &Solution{
		Status:    entities.StatusOptimal,
		Objective: m.ObjectiveValue(values),
		Values:    values,
	}, nil
}

// solveBlock converts one block to standard form (one slack per row) and solves it
func solveBlock(m *model.Model) ([]float64, error) {
	sf := toStandardForm(m)
	_, x, err := lp.Simplex(sf.c, sf.a, sf.b, simplexTolerance, sf.initialBasic)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			return nil, entities.NewSolveFailure(entities.StatusInfeasibleOrError, "model is infeasible", err)
		}
		if errors.Is(err, lp.ErrUnbounded) {
			return nil, entities.NewSolveFailure(entities.StatusInfeasibleOrError, "model is unbounded", err)
		}
		return nil, entities.NewSolveFailure(entities.StatusInfeasibleOrError, "simplex failed", err)
	}

	values := make([]float64, len(m.Variables))
	for i, v := range m.Variables {
		values[i] = clamp(x[i]+v.Lower, v.Lower, v.Upper)
	}
	return values, nil
}

// standardForm is minimize cᵀx s.t. Ax = b, x ≥ 0
type standardForm struct {
	c            []float64
	a            *mat.Dense
	b            []float64
	initialBasic []int
}

type row struct {
	coefs map[int]float64
	rhs   float64
}

// toStandardForm shifts every variable by its lower bound, turns >= rows into <= rows,
// adds an upper-bound row for variables no other row bounds, then appends one slack
// column per row.
func toStandardForm(m *model.Model) standardForm {
	n := len(m.Variables)
	var rows []row

	bounded := make([]bool, n)
	for _, c := range m.Constraints {
		r := row{coefs: make(map[int]float64, len(c.Terms)), rhs: c.RHS}
		sign := 1.0
		if c.Sense == model.GreaterEqual {
			sign = -1.0
		}
		allPositive := true
		for _, t := range c.Terms {
			r.coefs[t.Var] += sign * t.Coef
			r.rhs -= t.Coef * m.Variables[t.Var].Lower
			if t.Coef <= 0 {
				allPositive = false
			}
		}
		r.rhs *= sign
		if c.Sense == model.LessEqual && allPositive {
			for _, t := range c.Terms {
				v := m.Variables[t.Var]
				if c.RHS/t.Coef <= v.Upper {
					bounded[t.Var] = true
				}
			}
		}
		rows = append(rows, r)
	}
	for i, v := range m.Variables {
		if !bounded[i] {
			rows = append(rows, row{coefs: map[int]float64{i: 1}, rhs: v.Upper - v.Lower})
		}
	}

	nRows := len(rows)
	cols := n + nRows
	a := mat.NewDense(nRows, cols, nil)
	b := make([]float64, nRows)
	feasibleOrigin := true
	for i, r := range rows {
		for j, coef := range r.coefs {
			a.Set(i, j, coef)
		}
		a.Set(i, n+i, 1)
		b[i] = r.rhs
		if r.rhs < 0 {
			feasibleOrigin = false
		}
	}

	c := make([]float64, cols)
	for i, v := range m.Variables {
		c[i] = v.Objective
		if m.Direction == model.Maximize {
			c[i] = -v.Objective
		}
	}

	var basic []int
	if feasibleOrigin {
		basic = make([]int, nRows)
		for i := range basic {
			basic[i] = n + i
		}
	}

	return standardForm{c: c, a: a, b: b, initialBasic: basic}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
