package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"

	"github.com/vsinha/mixopt/pkg/config"
)

// SweepConfig holds the date range of a sweep
type SweepConfig struct {
	From time.Time
	To   time.Time
	Step int // days between runs
}

// SweepRun is the outcome of one date of a sweep
type SweepRun struct {
	Date      time.Time
	RunID     string
	Status    string
	Allocated float64
	Margin    string
	Gain      string
	Err       error
}

// SweepCommand runs the pipeline for a range of dates, one after the other
type SweepCommand struct {
	base   config.Config
	sweep  SweepConfig
	stdout io.Writer
}

// NewSweepCommand creates a new sweep command
func NewSweepCommand(base config.Config, sweep SweepConfig, stdout io.Writer) *SweepCommand {
	if sweep.Step <= 0 {
		sweep.Step = 1
	}
	return &SweepCommand{
		base:   base,
		sweep:  sweep,
		stdout: stdout,
	}
}

// Dates returns the run dates of the sweep, both ends included
func (c *SweepCommand) Dates() []time.Time {
	var dates []time.Time
	for d := c.sweep.From; !d.After(c.sweep.To); d = d.AddDate(0, 0, c.sweep.Step) {
		dates = append(dates, d)
	}
	return dates
}

// Execute runs every date with its own configuration copy. A failing date does
// not stop the sweep; the failures are returned joined.
func (c *SweepCommand) Execute(ctx context.Context) ([]SweepRun, error) {
	if c.sweep.To.Before(c.sweep.From) {
		return nil, fmt.Errorf("validation error: sweep end %s is before start %s",
			c.sweep.To.Format(config.DateLayout), c.sweep.From.Format(config.DateLayout))
	}
	logger := logr.FromContextOrDiscard(ctx)

	var runs []SweepRun
	var errs []error
	for _, date := range c.Dates() {
		if err := ctx.Err(); err != nil {
			return runs, err
		}

		cfg := c.base.WithDate(date)
		if c.base.Run.OutputDir != "" {
			cfg.Run.OutputDir = filepath.Join(c.base.Run.OutputDir, date.Format(config.DateLayout))
		}
		// per-date results go to their directories; the summary goes to stdout
		cfg.Run.Format = "json"
		if cfg.Run.OutputDir == "" {
			cfg.Run.Format = "text"
		}

		logger.Info("Sweep run", "date", date.Format(config.DateLayout))
		cmd := NewRunCommand(cfg, io.Discard)
		result, err := cmd.execute(ctx)

		run := SweepRun{Date: date}
		if err != nil {
			run.Status = "FAILED"
			run.Err = err
			errs = append(errs, fmt.Errorf("%s: %w", date.Format(config.DateLayout), err))
		} else {
			run.RunID = result.RunID
			run.Status = result.Status.String()
			run.Allocated = result.TotalAllocated()
			run.Margin = result.Comparison.MarginOptimized.StringFixed(2)
			run.Gain = result.Comparison.GainPercentage.StringFixed(2)
		}
		runs = append(runs, run)
	}

	c.printSummary(runs)
	return runs, errors.Join(errs...)
}

func (c *SweepCommand) printSummary(runs []SweepRun) {
	w := c.stdout
	if w == nil {
		return
	}
	fmt.Fprintf(w, "%-12s %-10s %-12s %-14s %-8s\n", "Date", "Status", "Allocated", "Margin", "Gain %")
	fmt.Fprintf(w, "%-12s %-10s %-12s %-14s %-8s\n", "------------", "----------", "------------", "--------------", "--------")
	for _, r := range runs {
		if r.Err != nil {
			fmt.Fprintf(w, "%-12s %-10s %v\n", r.Date.Format(config.DateLayout), r.Status, r.Err)
			continue
		}
		fmt.Fprintf(w, "%-12s %-10s %-12.2f %-14s %-8s\n",
			r.Date.Format(config.DateLayout), r.Status, r.Allocated, r.Margin, r.Gain)
	}
}
