package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"

	"github.com/vsinha/mixopt/pkg/application/dto"
	"github.com/vsinha/mixopt/pkg/application/services/model"
	"github.com/vsinha/mixopt/pkg/application/services/orchestration"
	"github.com/vsinha/mixopt/pkg/application/services/reconcile"
	"github.com/vsinha/mixopt/pkg/application/services/solver"
	"github.com/vsinha/mixopt/pkg/config"
	"github.com/vsinha/mixopt/pkg/infrastructure/events"
	"github.com/vsinha/mixopt/pkg/infrastructure/metrics"
	"github.com/vsinha/mixopt/pkg/interfaces/cli/output"
	"github.com/vsinha/mixopt/pkg/logging"
)

// RunCommand executes one allocation run for a configuration
type RunCommand struct {
	config config.Config
	stdout io.Writer
}

// NewRunCommand creates a new run command with the given configuration
func NewRunCommand(cfg config.Config, stdout io.Writer) *RunCommand {
	return &RunCommand{
		config: cfg,
		stdout: stdout,
	}
}

// Execute runs the pipeline, prints the result and writes the run artifacts
func (c *RunCommand) Execute(ctx context.Context) error {
	_, err := c.execute(ctx)
	return err
}

func (c *RunCommand) execute(ctx context.Context) (*dto.RunResult, error) {
	cfg := c.config
	logger := logr.FromContextOrDiscard(ctx)

	pol, err := cfg.PolicyValue()
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	demandOpts, err := demandOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	inputs, err := loadInputs(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := inputs.Close(); err != nil {
			logger.Error(err, "Failed to close sales source")
		}
	}()

	store := events.NewRunStore(logger)
	runMetrics := metrics.NewRunMetrics()
	if err := store.Subscribe(runMetrics); err != nil {
		return nil, fmt.Errorf("failed to subscribe run metrics: %w", err)
	}

	orchestrator := orchestration.NewAllocationOrchestrator(
		reconcile.NewReconciler(),
		model.NewBuilder(),
		solver.NewSolver(),
		store,
	)

	result, runErr := orchestrator.Run(ctx, orchestration.RunRequest{
		Date:    cfg.RunDate(),
		Policy:  pol,
		Sources: inputs.Sources,
		Sales:   inputs.Sales,
		Demand:  demandOpts,
		Solver: solver.Options{
			Backend:   cfg.Solver.Backend,
			TimeLimit: cfg.TimeLimit(),
		},
	})

	runID := ""
	var re *orchestration.RunError
	switch {
	case result != nil:
		runID = result.RunID
	case errors.As(runErr, &re):
		runID = re.RunID
	}

	// artifacts are written for failed runs too
	if err := c.writeArtifacts(ctx, orchestrator, runID, runMetrics); err != nil {
		if runErr != nil {
			logger.Error(err, "Failed to write run artifacts")
		} else {
			return nil, err
		}
	}
	if runErr != nil {
		return nil, runErr
	}

	if err := output.Generate(result, output.Config{
		Format:    cfg.Run.Format,
		OutputDir: cfg.Run.OutputDir,
		Writer:    c.stdout,
	}); err != nil {
		return nil, fmt.Errorf("failed to write results: %w", err)
	}
	return result, nil
}

func (c *RunCommand) writeArtifacts(ctx context.Context, o *orchestration.AllocationOrchestrator, runID string, m *metrics.RunMetrics) error {
	logger := logr.FromContextOrDiscard(ctx)
	cfg := c.config

	if cfg.Run.OutputDir != "" {
		path, err := cfg.WriteSnapshot(cfg.Run.OutputDir)
		if err != nil {
			return err
		}
		logger.V(logging.DEBUG).Info("Wrote configuration snapshot", "path", path)

		if runID != "" {
			evs, err := o.Events(runID)
			if err != nil {
				return fmt.Errorf("failed to read run events: %w", err)
			}
			path, err := events.SaveJSON(cfg.Run.OutputDir, evs)
			if err != nil {
				return err
			}
			logger.V(logging.DEBUG).Info("Wrote run events", "path", path, "events", len(evs))
		}
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
		logger.V(logging.DEBUG).Info("Wrote metrics textfile", "path", cfg.Metrics.Textfile)
	}
	return nil
}
