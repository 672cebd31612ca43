package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/policy"
)

const sampleYAML = `
run:
  date: "2024-05-10"
  format: json
paths:
  production: production.csv
  classes: classes.csv
  costs: /data/costs.csv
  prices: prices.csv
  orders: orders.csv
  historical_sales: sqlite:///data/sales.db
columns:
  prices:
    sku_code: Codigo
    price: Preco
demand_window:
  enabled: true
  granularity: W
  estimator: maximum
policy:
  fulfill_orders: true
  objective: minimize_cost
  min_utilization: 0.9
solver:
  backend: greedy
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mixopt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "production.csv"), cfg.Paths.Production)
	assert.Equal(t, "/data/costs.csv", cfg.Paths.Costs)
	assert.Equal(t, "sqlite:///data/sales.db", cfg.Paths.HistoricalSales)
	assert.Equal(t, "Codigo", cfg.Columns.For("prices")["sku_code"])
	assert.Empty(t, cfg.Columns.For("orders"))

	// defaults fill what the file leaves out
	assert.Equal(t, 3, cfg.DemandWindow.LookbackMonths)
	assert.Equal(t, 1.2, cfg.DemandWindow.MaxFactor)
	assert.Equal(t, 200.0, cfg.Policy.CostAllocationBonus)
	assert.Equal(t, 60*time.Second, cfg.TimeLimit())

	require.NotNil(t, cfg.Policy.MinUtilization)
	assert.Equal(t, 0.9, *cfg.Policy.MinUtilization)

	p, err := cfg.PolicyValue()
	require.NoError(t, err)
	assert.Equal(t, policy.MinimizeCost, p.Objective)
	assert.True(t, p.FulfillOrders)

	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), cfg.RunDate())
}

func TestLoad_EnvAndFlagsOverride(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv("MIXOPT_SOLVER_TIME_LIMIT_MS", "1500")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("backend", "simplex", "")
	flags.String("date", "", "")
	require.NoError(t, flags.Parse([]string{"--backend=simplex", "--date=2024-06-01"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 1500, cfg.Solver.TimeLimitMS)
	assert.Equal(t, "simplex", cfg.Solver.Backend)
	assert.Equal(t, "2024-06-01", cfg.Run.Date)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	var cfgErr *entities.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Paths.Production = "production.csv"
	valid.Paths.Costs = "costs.csv"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing production", func(c *Config) { c.Paths.Production = "" }},
		{"missing costs", func(c *Config) { c.Paths.Costs = "" }},
		{"bad granularity", func(c *Config) { c.DemandWindow.Granularity = "Q" }},
		{"bad estimator", func(c *Config) { c.DemandWindow.Estimator = "mean" }},
		{"zero percentile", func(c *Config) { c.DemandWindow.Percentile = 0 }},
		{"percentile over 100", func(c *Config) { c.DemandWindow.Percentile = 101 }},
		{"negative expansion", func(c *Config) { c.DemandWindow.ExpansionFactor = -1 }},
		{"bad objective", func(c *Config) { c.Policy.Objective = "maximize_volume" }},
		{"min utilization over 1", func(c *Config) { c.Policy.MinUtilization = ptr.To(1.2) }},
		{"negative legacy factor", func(c *Config) { c.Policy.ReallocationLimitFactor = -1 }},
		{"bad backend", func(c *Config) { c.Solver.Backend = "cplex" }},
		{"zero time limit", func(c *Config) { c.Solver.TimeLimitMS = 0 }},
		{"bad date", func(c *Config) { c.Run.Date = "10/05/2024" }},
		{"bad format", func(c *Config) { c.Run.Format = "xlsx" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid.Clone()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *entities.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
		})
	}
}

func TestValidate_AcceptsEstimatorAliases(t *testing.T) {
	cfg := Default()
	cfg.Paths.Production = "production.csv"
	cfg.Paths.Costs = "costs.csv"

	for _, estimator := range []string{"max", "Maximum", "PERCENTILE"} {
		cfg.DemandWindow.Estimator = estimator
		assert.NoError(t, cfg.Validate(), estimator)
	}
	cfg.DemandWindow.Granularity = "w"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_DemandWindowWithoutHistory(t *testing.T) {
	cfg := Default()
	cfg.Paths.Production = "production.csv"
	cfg.Paths.Costs = "costs.csv"
	cfg.DemandWindow.Enabled = true

	assert.NoError(t, cfg.Validate())
}

func TestPolicyValue_CopiesMinUtilization(t *testing.T) {
	cfg := Default()
	cfg.Policy.MinUtilization = ptr.To(0.4)

	p, err := cfg.PolicyValue()
	require.NoError(t, err)
	*cfg.Policy.MinUtilization = 0.9

	require.NotNil(t, p.MinUtilization)
	assert.Equal(t, 0.4, *p.MinUtilization)
}

func TestWithDate_DoesNotShareState(t *testing.T) {
	base := Default()
	base.Columns = Columns{"prices": {"price": "Preco"}}
	base.Policy.MinUtilization = ptr.To(0.5)

	next := base.WithDate(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	next.Columns["prices"]["price"] = "changed"
	*next.Policy.MinUtilization = 0.7

	assert.Equal(t, "2024-01-02", next.Run.Date)
	assert.Equal(t, "", base.Run.Date)
	assert.Equal(t, "Preco", base.Columns["prices"]["price"])
	assert.Equal(t, 0.5, *base.Policy.MinUtilization)
}

func TestWriteSnapshot(t *testing.T) {
	cfg := Default()
	cfg.Paths.Production = "production.csv"
	cfg.Run.Date = "2024-05-10"

	path, err := cfg.WriteSnapshot(t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "2024-05-10", decoded.Run.Date)
	assert.Equal(t, "production.csv", decoded.Paths.Production)
	assert.Equal(t, "maximize_margin", decoded.Policy.Objective)
}
