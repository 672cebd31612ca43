package commands

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vsinha/mixopt/pkg/config"
	"github.com/vsinha/mixopt/pkg/domain/entities"
)

// GenerateConfig holds configuration for scenario generation
type GenerateConfig struct {
	Classes      int       // Number of product classes
	SKUsPerClass int       // SKUs sharing each class
	Customers    int       // Distinct customers placing orders
	OrderRate    float64   // Share of SKUs with open orders (0..1)
	SalesMonths  int       // Months of sales history before Date
	Date         time.Time // Run date written into the generated configuration
	OutputDir    string    // Output directory for generated files
	Seed         int64     // Random seed for reproducible generation
}

// GenerateCommand writes a random but consistent scenario: the five upstream
// tables, a sales history and a mixopt.yaml pointing at them
type GenerateCommand struct {
	config GenerateConfig
	rand   *rand.Rand
	stdout io.Writer
}

// Generated file names
const (
	ProductionFile = "production.csv"
	ClassesFile    = "classes.csv"
	PricesFile     = "prices.csv"
	CostsFile      = "costs.csv"
	OrdersFile     = "orders.csv"
	SalesFile      = "historical_sales.csv"
	ConfigFile     = "mixopt.yaml"
)

// packages offered by generated SKUs, smallest first
var generatedPackages = []entities.PackageDescriptor{
	{InnerPacks: 1, UnitsPerPack: 30},
	{InnerPacks: 6, UnitsPerPack: 30},
	{InnerPacks: 12, UnitsPerPack: 30},
}

// generatedSKU is one SKU of the scenario with the unit economics of its packages
type generatedSKU struct {
	code     entities.SKUCode
	class    string
	packages []entities.PackageDescriptor
	costs    []float64
	prices   []float64
}

// NewGenerateCommand creates a new generate command
func NewGenerateCommand(cfg GenerateConfig, stdout io.Writer) *GenerateCommand {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.Date.IsZero() {
		now := time.Now().UTC()
		cfg.Date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	return &GenerateCommand{
		config: cfg,
		rand:   rand.New(rand.NewSource(seed)),
		stdout: stdout,
	}
}

// Execute runs the generate command
func (cmd *GenerateCommand) Execute(ctx context.Context) error {
	cfg := cmd.config
	if cfg.Classes <= 0 || cfg.SKUsPerClass <= 0 {
		return fmt.Errorf("validation error: classes and skus per class must be positive")
	}
	if cfg.OrderRate < 0 || cfg.OrderRate > 1 {
		return fmt.Errorf("validation error: order rate must be within [0, 1], got %g", cfg.OrderRate)
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("validation error: output directory is required")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	skus := cmd.generateSKUs()

	tables := []struct {
		name string
		rows [][]string
	}{
		{ProductionFile, cmd.generateProduction(skus)},
		{ClassesFile, cmd.generateClasses(skus)},
		{PricesFile, cmd.generatePrices(skus)},
		{CostsFile, cmd.generateCosts(skus)},
		{OrdersFile, cmd.generateOrders(skus)},
		{SalesFile, cmd.generateSales(skus)},
	}
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeCSVFile(filepath.Join(cfg.OutputDir, t.name), t.rows); err != nil {
			return err
		}
	}

	configPath, err := cmd.writeConfig()
	if err != nil {
		return err
	}

	if cmd.stdout != nil {
		fmt.Fprintf(cmd.stdout, "Generated %d classes with %d SKUs each in %s\n",
			cfg.Classes, cfg.SKUsPerClass, cfg.OutputDir)
		fmt.Fprintf(cmd.stdout, "Run it with: mixopt run --config %s\n", configPath)
	}
	return nil
}

func (cmd *GenerateCommand) generateSKUs() []generatedSKU {
	var skus []generatedSKU
	code := entities.SKUCode(100)
	for c := 0; c < cmd.config.Classes; c++ {
		class := fmt.Sprintf("CLASS_%02d", c+1)
		for s := 0; s < cmd.config.SKUsPerClass; s++ {
			code++
			sku := generatedSKU{code: code, class: class}

			n := 1 + cmd.rand.Intn(len(generatedPackages))
			baseCost := 5 + cmd.rand.Float64()*15
			for i := 0; i < n; i++ {
				// larger packages are slightly cheaper per unit and carry a different markup
				cost := round2(baseCost * (1 - 0.03*float64(i)))
				markup := 0.05 + cmd.rand.Float64()*0.45
				sku.packages = append(sku.packages, generatedPackages[i])
				sku.costs = append(sku.costs, cost)
				sku.prices = append(sku.prices, round2(cost*(1+markup)))
			}
			skus = append(skus, sku)
		}
	}
	return skus
}

// generateProduction splits each class capacity over one to three production lots
func (cmd *GenerateCommand) generateProduction(skus []generatedSKU) [][]string {
	rows := [][]string{{"class", "quantity"}}
	for _, class := range classNames(skus) {
		lots := 1 + cmd.rand.Intn(3)
		for i := 0; i < lots; i++ {
			qty := 200 + cmd.rand.Intn(800)*cmd.config.SKUsPerClass/2
			rows = append(rows, []string{class, strconv.Itoa(qty)})
		}
	}
	return rows
}

func (cmd *GenerateCommand) generateClasses(skus []generatedSKU) [][]string {
	rows := [][]string{{"sku_code", "class"}}
	for _, s := range skus {
		rows = append(rows, []string{strconv.FormatInt(int64(s.code), 10), s.class})
	}
	return rows
}

func (cmd *GenerateCommand) generatePrices(skus []generatedSKU) [][]string {
	rows := [][]string{{"sku_code", "package", "price"}}
	for _, s := range skus {
		for i, pkg := range s.packages {
			// one price in ten is left out to exercise the price fallback
			if i > 0 && cmd.rand.Intn(10) == 0 {
				continue
			}
			rows = append(rows, []string{
				strconv.FormatInt(int64(s.code), 10),
				pkg.String(),
				strconv.FormatFloat(s.prices[i], 'f', 2, 64),
			})
		}
	}
	return rows
}

func (cmd *GenerateCommand) generateCosts(skus []generatedSKU) [][]string {
	rows := [][]string{{"item_id", "sku_code", "package", "unit_cost"}}
	for _, s := range skus {
		for i, pkg := range s.packages {
			id := entities.NewItemID(s.code, pkg)
			rows = append(rows, []string{
				id.String(),
				strconv.FormatInt(int64(s.code), 10),
				pkg.String(),
				strconv.FormatFloat(s.costs[i], 'f', 2, 64),
			})
		}
	}
	return rows
}

func (cmd *GenerateCommand) generateOrders(skus []generatedSKU) [][]string {
	rows := [][]string{{"customer_id", "sku_code", "quantity"}}
	customers := cmd.config.Customers
	if customers <= 0 {
		customers = 1
	}
	for _, s := range skus {
		if cmd.rand.Float64() >= cmd.config.OrderRate {
			continue
		}
		lines := 1 + cmd.rand.Intn(3)
		for i := 0; i < lines; i++ {
			rows = append(rows, []string{
				fmt.Sprintf("C%03d", 1+cmd.rand.Intn(customers)),
				strconv.FormatInt(int64(s.code), 10),
				strconv.Itoa(10 + cmd.rand.Intn(90)),
			})
		}
	}
	return rows
}

// generateSales writes a few transactions per SKU and month before the run date
func (cmd *GenerateCommand) generateSales(skus []generatedSKU) [][]string {
	rows := [][]string{{"sku_code", "timestamp", "quantity"}}
	months := cmd.config.SalesMonths
	if months <= 0 {
		return rows
	}
	first := time.Date(cmd.config.Date.Year(), cmd.config.Date.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -months, 0)
	for _, s := range skus {
		level := 50 + cmd.rand.Intn(400)
		for m := 0; m < months; m++ {
			start := first.AddDate(0, m, 0)
			days := start.AddDate(0, 1, 0).Sub(start).Hours() / 24
			for t := 0; t < 1+cmd.rand.Intn(4); t++ {
				ts := start.Add(time.Duration(cmd.rand.Intn(int(days))) * 24 * time.Hour).Add(time.Duration(cmd.rand.Intn(86400)) * time.Second)
				qty := level/2 + cmd.rand.Intn(level)
				rows = append(rows, []string{
					strconv.FormatInt(int64(s.code), 10),
					ts.Format("2006-01-02 15:04:05"),
					strconv.Itoa(qty),
				})
			}
		}
	}
	return rows
}

// writeConfig writes a configuration that points at the generated tables
func (cmd *GenerateCommand) writeConfig() (string, error) {
	cfg := config.Default()
	cfg.Run.Date = cmd.config.Date.Format(config.DateLayout)
	cfg.Paths = config.PathsConfig{
		Production: ProductionFile,
		Classes:    ClassesFile,
		Costs:      CostsFile,
		Prices:     PricesFile,
		Orders:     OrdersFile,
	}
	if cmd.config.SalesMonths > 0 {
		cfg.Paths.HistoricalSales = SalesFile
		cfg.DemandWindow.Enabled = true
		cfg.DemandWindow.LookbackMonths = cmd.config.SalesMonths
	}

	data, err := cfg.Snapshot()
	if err != nil {
		return "", err
	}
	path := filepath.Join(cmd.config.OutputDir, ConfigFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func classNames(skus []generatedSKU) []string {
	var names []string
	seen := make(map[string]bool)
	for _, s := range skus {
		if !seen[s.class] {
			seen[s.class] = true
			names = append(names, s.class)
		}
	}
	return names
}

func writeCSVFile(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
