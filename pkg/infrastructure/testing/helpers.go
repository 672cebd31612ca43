package testing

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Files holds the paths of a scenario written by WriteScenario
type Files struct {
	Production      string
	Classes         string
	Prices          string
	Costs           string
	Orders          string
	HistoricalSales string
}

// Scenario is a set of CSV tables, each given as header plus rows.
// A nil table is not written.
type Scenario struct {
	Production      [][]string
	Classes         [][]string
	Prices          [][]string
	Costs           [][]string
	Orders          [][]string
	HistoricalSales [][]string
}

// WriteScenario writes the tables of s into dir and returns their paths
func WriteScenario(dir string, s Scenario) (Files, error) {
	var files Files
	tables := []struct {
		name   string
		rows   [][]string
		target *string
	}{
		{"production.csv", s.Production, &files.Production},
		{"classes.csv", s.Classes, &files.Classes},
		{"prices.csv", s.Prices, &files.Prices},
		{"costs.csv", s.Costs, &files.Costs},
		{"orders.csv", s.Orders, &files.Orders},
		{"historical_sales.csv", s.HistoricalSales, &files.HistoricalSales},
	}

	for _, t := range tables {
		if t.rows == nil {
			continue
		}
		path := filepath.Join(dir, t.name)
		if err := WriteCSV(path, t.rows); err != nil {
			return Files{}, err
		}
		*t.target = path
	}
	return files, nil
}

// WriteCSV writes rows to path
func WriteCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReallocationScenario is one class of 1500 units shared by a low-margin and a
// high-margin package, with an order of 300 for the low-margin SKU.
func ReallocationScenario() Scenario {
	return Scenario{
		Production: [][]string{
			{"class", "quantity"},
			{"GRADE_A", "1000"},
			{"GRADE_A", "500"},
		},
		Classes: [][]string{
			{"sku_code", "class"},
			{"101", "GRADE_A"},
			{"102", "GRADE_A"},
		},
		Prices: [][]string{
			{"sku_code", "package", "price"},
			{"101", "CX 12 BJ 30 UN", "12,00"},
			{"102", "CX 1 BJ 30 UN", "R$ 13,00"},
		},
		Costs: [][]string{
			{"item_id", "sku_code", "package", "unit_cost"},
			{"101|CX 12 BJ 30 UN", "101", "CX 12 BJ 30 UN", "10.00"},
			{"102|CX 1 BJ 30 UN", "102", "CX 1 BJ 30 UN", "10.00"},
		},
		Orders: [][]string{
			{"customer_id", "sku_code", "quantity"},
			{"C1", "101", "200"},
			{"C2", "101", "100"},
		},
	}
}
