// Package commands implements the mixopt command line: run, sweep, validate
// and generate.
package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vsinha/mixopt/pkg/config"
	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/logging"
)

// NewRootCommand builds the mixopt command tree writing results to stdout
func NewRootCommand(stdout io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "mixopt",
		Short: "Daily allocation of production capacity across product variants",
		Long: `mixopt distributes each product class's daily production across the SKUs
and package variants of the class, honoring customer orders and historical
demand, and maximizing margin or minimizing cost with a linear program.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")

	root.AddCommand(
		newRunCommand(stdout, &configPath),
		newSweepCommand(stdout, &configPath),
		newValidateCommand(stdout, &configPath),
		newGenerateCommand(stdout),
	)
	return root
}

// Execute runs the command tree with the process arguments
func Execute(ctx context.Context, stdout io.Writer, args []string) error {
	root := NewRootCommand(stdout)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRunCommand(stdout io.Writer, configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one allocation for the configured date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cfg, err := setup(cmd, *configPath)
			if err != nil {
				return err
			}
			return NewRunCommand(cfg, stdout).Execute(ctx)
		},
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

func newSweepCommand(stdout io.Writer, configPath *string) *cobra.Command {
	var from, to string
	var step int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the allocation for every date of a range, sequentially",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := time.Parse(config.DateLayout, from)
			if err != nil {
				return fmt.Errorf("validation error: --from %q is not YYYY-MM-DD", from)
			}
			end, err := time.Parse(config.DateLayout, to)
			if err != nil {
				return fmt.Errorf("validation error: --to %q is not YYYY-MM-DD", to)
			}
			ctx, cfg, err := setup(cmd, *configPath)
			if err != nil {
				return err
			}
			_, err = NewSweepCommand(cfg, SweepConfig{From: start, To: end, Step: step}, stdout).Execute(ctx)
			return err
		},
	}
	addConfigFlags(cmd.Flags())
	cmd.Flags().StringVar(&from, "from", "", "First run date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last run date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&step, "step", 1, "Days between runs")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newValidateCommand(stdout io.Writer, configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the upstream tables without solving",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cfg, err := setup(cmd, *configPath)
			if err != nil {
				return err
			}
			_, err = NewValidateCommand(cfg, stdout).Execute(ctx)
			return err
		},
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

func newGenerateCommand(stdout io.Writer) *cobra.Command {
	var gc GenerateConfig
	var date, logLevel string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a random scenario with its configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if date != "" {
				d, err := time.Parse(config.DateLayout, date)
				if err != nil {
					return fmt.Errorf("validation error: --date %q is not YYYY-MM-DD", date)
				}
				gc.Date = d
			}
			logger, err := logging.NewLogger(logLevel, "console")
			if err != nil {
				return err
			}
			ctx := logr.NewContext(cmd.Context(), logger)
			return NewGenerateCommand(gc, stdout).Execute(ctx)
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&gc.Classes, "classes", 3, "Number of product classes")
	fs.IntVar(&gc.SKUsPerClass, "skus-per-class", 4, "SKUs per class")
	fs.IntVar(&gc.Customers, "customers", 10, "Number of distinct customers")
	fs.Float64Var(&gc.OrderRate, "order-rate", 0.3, "Share of SKUs with open orders")
	fs.IntVar(&gc.SalesMonths, "sales-months", 3, "Months of sales history (0 disables the demand window)")
	fs.StringVar(&date, "date", "", "Run date of the generated configuration (YYYY-MM-DD)")
	fs.StringVar(&gc.OutputDir, "output-dir", "scenario", "Output directory")
	fs.Int64Var(&gc.Seed, "seed", 0, "Random seed (0 picks one)")
	fs.StringVar(&logLevel, "log-level", "info", "Log level")
	return cmd
}

// addConfigFlags declares the flags that override configuration keys. Only
// flags set on the command line take precedence over file and environment.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.String("date", "", "Run date (YYYY-MM-DD, default today)")
	fs.StringP("output-dir", "o", "", "Directory for results, run_config.yaml and run_events.json")
	fs.StringP("format", "f", "", "Output format: text, json or csv")
	fs.String("production", "", "Production table (CSV)")
	fs.String("classes", "", "SKU to class mapping (CSV)")
	fs.String("costs", "", "Unit costs (CSV)")
	fs.String("prices", "", "Prices (CSV)")
	fs.String("orders", "", "Customer orders (CSV)")
	fs.String("historical-sales", "", "Sales history: CSV path, sqlite://<file> or postgres:// DSN")
	fs.Bool("fulfill-orders", false, "Serve customer orders first (order protection)")
	fs.Bool("optimize-surplus-only", false, "Only redistribute stock left after orders")
	fs.String("objective", "", "maximize_margin or minimize_cost")
	fs.Bool("demand-window", false, "Cap allocations by historical demand")
	fs.String("backend", "", "Solver backend: simplex or greedy")
	fs.Int("time-limit-ms", 0, "Solver time limit in milliseconds")
	fs.String("log-level", "", "Log level: trace, debug, info, warn or error")
	fs.String("log-format", "", "Log format: console or json")
	fs.String("metrics-textfile", "", "Write run metrics in the prometheus textfile format")
}

// setup loads the configuration and puts a logger built from it in the context
func setup(cmd *cobra.Command, configPath string) (context.Context, config.Config, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, config.Config{}, err
	}
	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, config.Config{}, entities.NewConfigurationError("logging", "invalid logging configuration", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logr.NewContext(ctx, logger), cfg, nil
}
