// Package solver runs a built allocation model through an LP backend under a
// time limit.
package solver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/vsinha/mixopt/pkg/application/services/model"
	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/logging"
)

// Backend names
const (
	SimplexBackend = "simplex"
	GreedyBackend  = "greedy"
)

// DefaultTimeLimit bounds a solve when no limit is configured
const DefaultTimeLimit = 60 * time.Second

// Backend solves a model and reports the status it reached
type Backend interface {
	Name() string
	Solve(ctx context.Context, m *model.Model) (*Solution, error)
}

// Options control one solve
type Options struct {
	Backend   string
	TimeLimit time.Duration
}

// Solution holds the variable values of a solved model
type Solution struct {
	Status    entities.SolveStatus
	Objective float64
	Values    []float64
	Backend   string
	Duration  time.Duration
	Warnings  []entities.Warning
}

// Solver dispatches models to the registered backends
type Solver struct {
	backends map[string]Backend
}

// NewSolver creates a solver with the simplex and greedy backends registered
func NewSolver() *Solver {
	s := &Solver{backends: make(map[string]Backend)}
	s.Register(NewSimplex())
	s.Register(NewGreedy())
	return s
}

// Register adds or replaces a backend
func (s *Solver) Register(b Backend) {
	s.backends[b.Name()] = b
}

// Backends returns the registered backend names, sorted
func (s *Solver) Backends() []string {
	names := make([]string, 0, len(s.backends))
	for name := range s.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type outcome struct {
	solution *Solution
	err      error
}

// Solve moves the model from BUILT through SOLVING to a terminal status. OPTIMAL and
// FEASIBLE return a solution; every other status returns a *SolveFailure. An empty
// model is OPTIMAL with objective 0.
func (s *Solver) Solve(ctx context.Context, m *model.Model, opts Options) (*Solution, error) {
	logger := logr.FromContextOrDiscard(ctx).WithName("solver")

	name := opts.Backend
	if name == "" {
		name = SimplexBackend
	}
	backend, ok := s.backends[name]
	if !ok {
		return nil, entities.NewConfigurationError("solver",
			fmt.Sprintf("unknown backend %q (available: %v)", name, s.Backends()), nil)
	}

	if m.Empty() {
		logger.Info("Model has no variables, nothing to solve", "status", entities.StatusOptimal.String())
		return &Solution{Status: entities.StatusOptimal, Values: []float64{}, Backend: name}, nil
	}

	limit := opts.TimeLimit
	if limit <= 0 {
		limit = DefaultTimeLimit
	}
	solveCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	logger.V(logging.DEBUG).Info("Solving model",
		"status", entities.StatusSolving.String(),
		"backend", name,
		"variables", len(m.Variables),
		"constraints", len(m.Constraints),
		"timeLimit", limit.String())

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		sol, err := backend.Solve(solveCtx, m)
		done <- outcome{solution: sol, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-solveCtx.Done():
		if errors.Is(solveCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, entities.NewSolveFailure(entities.StatusTimeLimit,
				fmt.Sprintf("%s backend exceeded the time limit of %s", name, limit), solveCtx.Err())
		}
		return nil, fmt.Errorf("solve cancelled: %w", ctx.Err())
	}
	elapsed := time.Since(start)

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, entities.NewSolveFailure(entities.StatusTimeLimit,
				fmt.Sprintf("%s backend exceeded the time limit of %s", name, limit), res.err)
		}
		var failure *entities.SolveFailure
		if errors.As(res.err, &failure) {
			return nil, res.err
		}
		return nil, entities.NewSolveFailure(entities.StatusInfeasibleOrError,
			fmt.Sprintf("%s backend failed", name), res.err)
	}

	sol := res.solution
	sol.Backend = name
	sol.Duration = elapsed
	if !sol.Status.HasSolution() {
		return nil, entities.NewSolveFailure(sol.Status, fmt.Sprintf("%s backend returned no solution", name), nil)
	}
	if len(sol.Values) != len(m.Variables) {
		return nil, entities.NewSolveFailure(entities.StatusInfeasibleOrError,
			fmt.Sprintf("%s backend returned %d values for %d variables", name, len(sol.Values), len(m.Variables)), nil)
	}

	if sol.Status == entities.StatusFeasible {
		w := entities.NewWarning(entities.FeasibleSolutionWarning, "solver",
			fmt.Sprintf("%s backend returned a feasible, not proven optimal, solution", name))
		logging.Warn(logger, w)
		sol.Warnings = append(sol.Warnings, w)
	}

	logger.Info("Solved model",
		"status", sol.Status.String(),
		"backend", name,
		"objective", sol.Objective,
		"duration", elapsed.String())

	return sol, nil
}
