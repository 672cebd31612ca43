package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vsinha/mixopt/pkg/application/dto"
	"github.com/vsinha/mixopt/pkg/domain/entities"
)

// Output file names written into the output directory
const (
	DecisionsFile  = "decisions.csv"
	ClassesFile    = "classes.csv"
	ComparisonFile = "comparison.csv"
	ResultFile     = "run_result.json"
)

// Column headers of the CSV outputs
var (
	DecisionsHeader = []string{
		"item_id", "sku_code", "package", "class", "kind", "allocated_quantity",
		"unit_price", "unit_cost", "unit_margin", "revenue", "cost", "margin",
	}
	ClassesHeader = []string{
		"class", "skus", "order_quantity", "surplus_quantity", "capacity",
		"utilization", "revenue", "cost", "margin",
	}
	ComparisonHeader = []string{
		"margin_baseline", "margin_optimized", "gain_absolute", "gain_percentage",
		"cost_baseline", "cost_optimized", "reduction_absolute", "reduction_percentage",
	}
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	Writer    io.Writer
}

func (c Config) writer() io.Writer {
	if c.Writer == nil {
		return os.Stdout
	}
	return c.Writer
}

// Generate creates output in the specified format
func Generate(result *dto.RunResult, config Config) error {
	switch config.Format {
	case "text", "":
		return generateTextOutput(result, config)
	case "json":
		return generateJSONOutput(result, config)
	case "csv":
		return generateCSVOutput(result, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// generateTextOutput creates human-readable text output
func generateTextOutput(result *dto.RunResult, config Config) error {
	w := config.writer()
	cmp := result.Comparison

	fmt.Fprintf(w, "Allocation Results %s\n", result.Date.Format("2006-01-02"))
	fmt.Fprintf(w, "=============================\n\n")
	fmt.Fprintf(w, "Run:        %s\n", result.RunID)
	fmt.Fprintf(w, "Status:     %s (%s)\n", result.Status, result.Backend)
	fmt.Fprintf(w, "Objective:  %s\n", result.Policy.Objective)
	fmt.Fprintf(w, "Decisions:  %d\n", len(result.Decisions))
	fmt.Fprintf(w, "Allocated:  %.2f\n", result.TotalAllocated())
	fmt.Fprintf(w, "Duration:   %v\n\n", result.Duration)

	if len(result.Decisions) > 0 {
		fmt.Fprintf(w, "Decisions:\n")
		fmt.Fprintf(w, "%-22s %-12s %-8s %-12s %-10s %-12s\n",
			"Item", "Class", "Kind", "Quantity", "Margin/u", "Margin")
		fmt.Fprintf(w, "%-22s %-12s %-8s %-12s %-10s %-12s\n",
			"----------------------", "------------", "--------", "------------", "----------", "------------")
		for _, d := range result.Decisions {
			fmt.Fprintf(w, "%-22s %-12s %-8s %-12.2f %-10s %-12s\n",
				d.ItemID,
				d.Class,
				d.Kind,
				d.AllocatedQuantity,
				d.UnitMargin.StringFixed(2),
				d.Margin.StringFixed(2))
		}
		fmt.Fprintln(w)
	}

	if len(result.Rollups) > 0 {
		fmt.Fprintf(w, "Classes:\n")
		fmt.Fprintf(w, "%-12s %-6s %-12s %-12s %-12s %-8s %-12s\n",
			"Class", "SKUs", "Orders", "Surplus", "Capacity", "Util", "Margin")
		fmt.Fprintf(w, "%-12s %-6s %-12s %-12s %-12s %-8s %-12s\n",
			"------------", "------", "------------", "------------", "------------", "--------", "------------")
		for _, r := range result.Rollups {
			fmt.Fprintf(w, "%-12s %-6d %-12.2f %-12.2f %-12.2f %-8s %-12s\n",
				r.Class,
				r.SKUs,
				r.OrderQuantity,
				r.SurplusQuantity,
				r.Capacity,
				fmt.Sprintf("%.1f%%", r.Utilization*100),
				r.Margin.StringFixed(2))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Comparison with uniform distribution:\n")
	fmt.Fprintf(w, "  Margin: %s -> %s (%s, %s%%)\n",
		cmp.MarginBaseline.StringFixed(2), cmp.MarginOptimized.StringFixed(2),
		cmp.GainAbsolute.StringFixed(2), cmp.GainPercentage.StringFixed(2))
	fmt.Fprintf(w, "  Cost:   %s -> %s (%s, %s%%)\n",
		cmp.CostBaseline.StringFixed(2), cmp.CostOptimized.StringFixed(2),
		cmp.ReductionAbsolute.StringFixed(2), cmp.ReductionPercentage.StringFixed(2))

	if result.HasWarnings() {
		fmt.Fprintf(w, "\nWarnings:\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  [%s] %s: %s\n", warning.Kind, warning.Source, warning.Message)
		}
	}

	return nil
}

// generateJSONOutput creates JSON output
func generateJSONOutput(result *dto.RunResult, config Config) error {
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if config.OutputDir == "" {
		_, err = fmt.Fprintln(config.writer(), string(jsonData))
		return err
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := filepath.Join(config.OutputDir, ResultFile)
	if err := os.WriteFile(filename, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(config.writer(), "JSON results saved to: %s\n", filename)
	}
	return nil
}

// generateCSVOutput writes decisions, class rollup and comparison tables. Without
// an output directory only the decisions table is written to the writer.
func generateCSVOutput(result *dto.RunResult, config Config) error {
	if config.OutputDir == "" {
		return WriteDecisionsCSV(config.writer(), result.Decisions)
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{DecisionsFile, func(w io.Writer) error { return WriteDecisionsCSV(w, result.Decisions) }},
		{ClassesFile, func(w io.Writer) error { return WriteClassesCSV(w, result.Rollups) }},
		{ComparisonFile, func(w io.Writer) error { return WriteComparisonCSV(w, result.Comparison) }},
	}
	for _, f := range files {
		filename := filepath.Join(config.OutputDir, f.name)
		if err := writeFile(filename, f.write); err != nil {
			return err
		}
		if config.Verbose {
			fmt.Fprintf(config.writer(), "CSV results saved to: %s\n", filename)
		}
	}
	return nil
}

func writeFile(filename string, write func(io.Writer) error) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return file.Close()
}

// WriteDecisionsCSV writes the decision table
func WriteDecisionsCSV(w io.Writer, decisions []entities.AllocationDecision) error {
	rows := make([][]string, 0, len(decisions)+1)
	rows = append(rows, DecisionsHeader)
	for _, d := range decisions {
		rows = append(rows, []string{
			d.ItemID.String(),
			strconv.FormatInt(int64(d.SKU), 10),
			d.Package.String(),
			d.Class,
			d.Kind.String(),
			formatFloat(d.AllocatedQuantity),
			d.UnitPrice.String(),
			d.UnitCost.String(),
			d.UnitMargin.String(),
			d.Revenue.String(),
			d.Cost.String(),
			d.Margin.String(),
		})
	}
	return writeRows(w, rows)
}

// WriteClassesCSV writes the class rollup table
func WriteClassesCSV(w io.Writer, rollups []entities.ClassRollup) error {
	rows := make([][]string, 0, len(rollups)+1)
	rows = append(rows, ClassesHeader)
	for _, r := range rollups {
		rows = append(rows, []string{
			r.Class,
			strconv.Itoa(r.SKUs),
			formatFloat(r.OrderQuantity),
			formatFloat(r.SurplusQuantity),
			formatFloat(r.Capacity),
			formatFloat(r.Utilization),
			r.Revenue.String(),
			r.Cost.String(),
			r.Margin.String(),
		})
	}
	return writeRows(w, rows)
}

// WriteComparisonCSV writes the single-row comparison summary
func WriteComparisonCSV(w io.Writer, c entities.Comparison) error {
	return writeRows(w, [][]string{
		ComparisonHeader,
		{
			c.MarginBaseline.String(),
			c.MarginOptimized.String(),
			c.GainAbsolute.String(),
			c.GainPercentage.String(),
			c.CostBaseline.String(),
			c.CostOptimized.String(),
			c.ReductionAbsolute.String(),
			c.ReductionPercentage.String(),
		},
	})
}

func writeRows(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
