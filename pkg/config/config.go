// Package config loads the run configuration from a YAML file, MIXOPT_*
// environment variables and command-line flags.
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"

	"github.com/vsinha/mixopt/pkg/application/services/demand"
	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/policy"
)

// EnvPrefix is the prefix of environment overrides, e.g. MIXOPT_SOLVER_TIME_LIMIT_MS
const EnvPrefix = "MIXOPT"

// DateLayout is the layout of run.date
const DateLayout = "2006-01-02"

// SnapshotFile is the name of the effective configuration written next to the outputs
const SnapshotFile = "run_config.yaml"

// Config is the complete configuration of one run. It is passed by value
// through the pipeline and never mutated after Load.
type Config struct {
	Run          RunConfig          `mapstructure:"run" yaml:"run"`
	Paths        PathsConfig        `mapstructure:"paths" yaml:"paths"`
	Columns      Columns            `mapstructure:"columns" yaml:"columns,omitempty"`
	DemandWindow DemandWindowConfig `mapstructure:"demand_window" yaml:"demand_window"`
	Policy       PolicyConfig       `mapstructure:"policy" yaml:"policy"`
	Solver       SolverConfig       `mapstructure:"solver" yaml:"solver"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
}

// RunConfig holds per-invocation settings
type RunConfig struct {
	Date      string `mapstructure:"date" yaml:"date"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir,omitempty"`
	Format    string `mapstructure:"format" yaml:"format"`
}

// PathsConfig locates the upstream tables
type PathsConfig struct {
	Production      string `mapstructure:"production" yaml:"production"`
	Classes         string `mapstructure:"classes" yaml:"classes"`
	Costs           string `mapstructure:"costs" yaml:"costs"`
	Prices          string `mapstructure:"prices" yaml:"prices"`
	Orders          string `mapstructure:"orders" yaml:"orders"`
	HistoricalSales string `mapstructure:"historical_sales" yaml:"historical_sales,omitempty"`
}

// Columns maps, per table, canonical column names to source headers
type Columns map[string]map[string]string

// For returns the mapping of one table, never nil
func (c Columns) For(table string) map[string]string {
	if m, ok := c[table]; ok && m != nil {
		return m
	}
	return map[string]string{}
}

// DemandWindowConfig configures the historical demand ceiling
type DemandWindowConfig struct {
	Enabled         bool    `mapstructure:"enabled" yaml:"enabled"`
	LookbackMonths  int     `mapstructure:"lookback_months" yaml:"lookback_months"`
	Granularity     string  `mapstructure:"granularity" yaml:"granularity"`
	Estimator       string  `mapstructure:"estimator" yaml:"estimator"`
	Percentile      float64 `mapstructure:"percentile" yaml:"percentile"`
	ExpansionFactor float64 `mapstructure:"expansion_factor" yaml:"expansion_factor"`
	MaxFactor       float64 `mapstructure:"max_factor" yaml:"max_factor"`
}

// PolicyConfig holds the allocation policy flags
type PolicyConfig struct {
	FulfillOrders           bool     `mapstructure:"fulfill_orders" yaml:"fulfill_orders"`
	OptimizeSurplusOnly     bool     `mapstructure:"optimize_surplus_only" yaml:"optimize_surplus_only"`
	Objective               string   `mapstructure:"objective" yaml:"objective"`
	CostAllocationBonus     float64  `mapstructure:"cost_allocation_bonus" yaml:"cost_allocation_bonus"`
	MinUtilization          *float64 `mapstructure:"min_utilization" yaml:"min_utilization,omitempty"`
	ReallocationLimitFactor float64  `mapstructure:"reallocation_limit_factor" yaml:"reallocation_limit_factor,omitempty"`
}

// SolverConfig selects the LP backend and its time budget
type SolverConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	TimeLimitMS int    `mapstructure:"time_limit_ms" yaml:"time_limit_ms"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig configures the prometheus textfile output
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile,omitempty"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Run: RunConfig{Format: "text"},
		DemandWindow: DemandWindowConfig{
			LookbackMonths:  3,
			Granularity:     "M",
			Estimator:       "percentile",
			Percentile:      90,
			ExpansionFactor: 1.5,
			MaxFactor:       1.2,
		},
		Policy: PolicyConfig{
			Objective:           policy.MaximizeMargin.String(),
			CostAllocationBonus: policy.DefaultCostAllocationBonus,
		},
		Solver:  SolverConfig{Backend: "simplex", TimeLimitMS: 60000},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// flagKeys binds command-line flags to configuration keys
var flagKeys = map[string]string{
	"date":                  "run.date",
	"output-dir":            "run.output_dir",
	"format":                "run.format",
	"production":            "paths.production",
	"classes":               "paths.classes",
	"costs":                 "paths.costs",
	"prices":                "paths.prices",
	"orders":                "paths.orders",
	"historical-sales":      "paths.historical_sales",
	"fulfill-orders":        "policy.fulfill_orders",
	"optimize-surplus-only": "policy.optimize_surplus_only",
	"objective":             "policy.objective",
	"demand-window":         "demand_window.enabled",
	"backend":               "solver.backend",
	"time-limit-ms":         "solver.time_limit_ms",
	"log-level":             "logging.level",
	"log-format":            "logging.format",
	"metrics-textfile":      "metrics.textfile",
}

// Load reads the configuration file (optional), applies MIXOPT_* environment
// overrides and changed flags, and validates the result.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, entities.NewConfigurationError(path, "failed to read configuration file", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// keys without defaults are only seen by Unmarshal when bound explicitly
	for _, key := range []string{"policy.min_utilization", "run.output_dir", "paths.historical_sales", "metrics.textfile"} {
		_ = v.BindEnv(key)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, entities.NewConfigurationError("config", "failed to decode configuration", err)
	}

	// relative table paths resolve against the configuration file
	if path != "" {
		cfg.Paths = cfg.Paths.resolve(filepath.Dir(path))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("run.date", d.Run.Date)
	v.SetDefault("run.format", d.Run.Format)
	v.SetDefault("paths.production", "")
	v.SetDefault("paths.classes", "")
	v.SetDefault("paths.costs", "")
	v.SetDefault("paths.prices", "")
	v.SetDefault("paths.orders", "")
	v.SetDefault("demand_window.enabled", d.DemandWindow.Enabled)
	v.SetDefault("demand_window.lookback_months", d.DemandWindow.LookbackMonths)
	v.SetDefault("demand_window.granularity", d.DemandWindow.Granularity)
	v.SetDefault("demand_window.estimator", d.DemandWindow.Estimator)
	v.SetDefault("demand_window.percentile", d.DemandWindow.Percentile)
	v.SetDefault("demand_window.expansion_factor", d.DemandWindow.ExpansionFactor)
	v.SetDefault("demand_window.max_factor", d.DemandWindow.MaxFactor)
	v.SetDefault("policy.fulfill_orders", d.Policy.FulfillOrders)
	v.SetDefault("policy.optimize_surplus_only", d.Policy.OptimizeSurplusOnly)
	v.SetDefault("policy.objective", d.Policy.Objective)
	v.SetDefault("policy.cost_allocation_bonus", d.Policy.CostAllocationBonus)
	v.SetDefault("policy.reallocation_limit_factor", d.Policy.ReallocationLimitFactor)
	v.SetDefault("solver.backend", d.Solver.Backend)
	v.SetDefault("solver.time_limit_ms", d.Solver.TimeLimitMS)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

func (p PathsConfig) resolve(base string) PathsConfig {
	abs := func(s string) string {
		if s == "" || filepath.IsAbs(s) || strings.Contains(s, "://") {
			return s
		}
		return filepath.Join(base, s)
	}
	return PathsConfig{
		Production:      abs(p.Production),
		Classes:         abs(p.Classes),
		Costs:           abs(p.Costs),
		Prices:          abs(p.Prices),
		Orders:          abs(p.Orders),
		HistoricalSales: abs(p.HistoricalSales),
	}
}

// Validate rejects unknown enum values, out-of-range factors and missing mandatory paths
func (c Config) Validate() error {
	invalid := func(reason string, args ...any) error {
		return entities.NewConfigurationError("config", fmt.Sprintf(reason, args...), nil)
	}

	if c.Run.Date != "" {
		if _, err := time.Parse(DateLayout, c.Run.Date); err != nil {
			return invalid("run.date %q is not YYYY-MM-DD", c.Run.Date)
		}
	}
	switch c.Run.Format {
	case "text", "json", "csv":
	default:
		return invalid("run.format %q must be text, json or csv", c.Run.Format)
	}

	if c.Paths.Production == "" {
		return invalid("paths.production is required")
	}
	if c.Paths.Costs == "" {
		return invalid("paths.costs is required")
	}

	dw := c.DemandWindow
	if dw.LookbackMonths <= 0 {
		return invalid("demand_window.lookback_months must be positive, got %d", dw.LookbackMonths)
	}
	if _, err := demand.ParseGranularity(dw.Granularity); err != nil {
		return invalid("demand_window.granularity: %v", err)
	}
	if _, err := demand.ParseEstimator(dw.Estimator); err != nil {
		return invalid("demand_window.estimator: %v", err)
	}
	if dw.Percentile <= 0 || dw.Percentile > 100 {
		return invalid("demand_window.percentile must be within (0, 100], got %g", dw.Percentile)
	}
	if dw.ExpansionFactor < 0 || dw.MaxFactor < 0 {
		return invalid("demand_window factors cannot be negative")
	}

	if _, err := c.PolicyValue(); err != nil {
		return invalid("%v", err)
	}

	switch c.Solver.Backend {
	case "simplex", "greedy":
	default:
		return invalid("solver.backend %q must be simplex or greedy", c.Solver.Backend)
	}
	if c.Solver.TimeLimitMS <= 0 {
		return invalid("solver.time_limit_ms must be positive, got %d", c.Solver.TimeLimitMS)
	}

	return nil
}

// PolicyValue converts the policy section into a validated policy.Policy
func (c Config) PolicyValue() (policy.Policy, error) {
	objective, err := policy.ParseObjective(c.Policy.Objective)
	if err != nil {
		return policy.Policy{}, err
	}
	p := policy.Policy{
		FulfillOrders:           c.Policy.FulfillOrders,
		OptimizeSurplusOnly:     c.Policy.OptimizeSurplusOnly,
		Objective:               objective,
		CostAllocationBonus:     c.Policy.CostAllocationBonus,
		ReallocationLimitFactor: c.Policy.ReallocationLimitFactor,
	}
	if c.Policy.MinUtilization != nil {
		p.MinUtilization = ptr.To(*c.Policy.MinUtilization)
	}
	if err := p.Validate(); err != nil {
		return policy.Policy{}, err
	}
	return p, nil
}

// RunDate returns run.date, or today when unset
func (c Config) RunDate() time.Time {
	if c.Run.Date != "" {
		if d, err := time.Parse(DateLayout, c.Run.Date); err == nil {
			return d
		}
	}
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// TimeLimit returns the solver budget as a duration
func (c Config) TimeLimit() time.Duration {
	return time.Duration(c.Solver.TimeLimitMS) * time.Millisecond
}

// WithDate returns a copy of the configuration for another run date
func (c Config) WithDate(date time.Time) Config {
	out := c.Clone()
	out.Run.Date = date.Format(DateLayout)
	return out
}

// Clone returns a deep copy
func (c Config) Clone() Config {
	out := c
	if c.Columns != nil {
		out.Columns = make(Columns, len(c.Columns))
		for table, m := range c.Columns {
			out.Columns[table] = maps.Clone(m)
		}
	}
	if c.Policy.MinUtilization != nil {
		out.Policy.MinUtilization = ptr.To(*c.Policy.MinUtilization)
	}
	return out
}

// Snapshot renders the effective configuration as YAML
func (c Config) Snapshot() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to render configuration snapshot: %w", err)
	}
	return data, nil
}

// WriteSnapshot writes run_config.yaml into dir
func (c Config) WriteSnapshot(dir string) (string, error) {
	data, err := c.Snapshot()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, SnapshotFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
