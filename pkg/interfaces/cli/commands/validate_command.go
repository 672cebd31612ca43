package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/vsinha/mixopt/pkg/config"
	"github.com/vsinha/mixopt/pkg/domain/services"
)

// ValidateCommand checks the integrity of the upstream tables without solving
type ValidateCommand struct {
	config config.Config
	stdout io.Writer
}

// NewValidateCommand creates a new validate command
func NewValidateCommand(cfg config.Config, stdout io.Writer) *ValidateCommand {
	return &ValidateCommand{
		config: cfg,
		stdout: stdout,
	}
}

// Execute loads the tables and reports validation errors and warnings.
// It fails when a blocking error was found.
func (c *ValidateCommand) Execute(ctx context.Context) (*services.ValidationResult, error) {
	cfg := c.config
	cfg.Paths.HistoricalSales = ""

	inputs, err := loadInputs(ctx, cfg)
	if err != nil {
		return nil, err
	}
	result := services.NewInputValidator().ValidateInputs(inputs.Rows)

	w := c.stdout
	fmt.Fprintf(w, "Input validation\n")
	fmt.Fprintf(w, "================\n")
	fmt.Fprintf(w, "Production rows: %d\n", len(inputs.Rows.Production))
	fmt.Fprintf(w, "Class mappings:  %d\n", len(inputs.Rows.Classes))
	fmt.Fprintf(w, "Prices:          %d\n", len(inputs.Rows.Prices))
	fmt.Fprintf(w, "Costs:           %d\n", len(inputs.Rows.Costs))
	fmt.Fprintf(w, "Orders:          %d\n\n", len(inputs.Rows.Orders))

	for _, e := range result.Errors {
		fmt.Fprintf(w, "ERROR   %s\n", e)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "WARNING %s\n", warning)
	}

	if !result.Valid() {
		return result, fmt.Errorf("input validation failed: %s", strings.Join(result.Errors, "; "))
	}
	fmt.Fprintf(w, "Inputs are valid (%d warnings)\n", len(result.Warnings))
	return result, nil
}
