package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mixopt/pkg/domain/entities"
)

// Table names used in the column mapping
const (
	TableProduction = "production"
	TableClasses    = "classes"
	TablePrices     = "prices"
	TableCosts      = "costs"
	TableOrders     = "orders"
	TableSales      = "historical_sales"
)

// canonical columns per table
var requiredColumns = map[string][]string{
	TableProduction: {"class", "quantity"},
	TableClasses:    {"sku_code", "class"},
	TablePrices:     {"sku_code", "package", "price"},
	TableCosts:      {"sku_code", "package", "unit_cost"},
	TableOrders:     {"customer_id", "sku_code", "quantity"},
	TableSales:      {"sku_code", "timestamp", "quantity"},
}

// Loader loads the upstream tables from CSV files. Source headers are mapped
// to canonical column names once, when a file is opened.
type Loader struct {
	columns map[string]map[string]string
}

// NewLoader creates a CSV loader. columns maps, per table, canonical column
// names to source headers; unmapped columns are looked up by canonical name.
func NewLoader(columns map[string]map[string]string) *Loader {
	if columns == nil {
		columns = map[string]map[string]string{}
	}
	return &Loader{columns: columns}
}

// table is a parsed CSV file with resolved column positions
type table struct {
	name    string
	file    string
	index   map[string]int
	records [][]string
}

func (t *table) cell(record []string, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (t *table) rowError(i int, err error) error {
	return fmt.Errorf("%s CSV row %d: %w", t.name, i+2, err)
}

// readTable opens filename and resolves the canonical columns of the table
func (l *Loader) readTable(filename, name string) (*table, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, entities.NewConfigurationError(name, fmt.Sprintf("failed to open %s", filename), err)
	}
	defer file.Close()

	records, err := readRecords(file)
	if err != nil {
		return nil, entities.NewConfigurationError(name, fmt.Sprintf("failed to read %s", filename), err)
	}
	if len(records) < 1 {
		return nil, entities.NewConfigurationError(name, fmt.Sprintf("%s has no header row", filename), nil)
	}

	index, err := resolveColumns(records[0], requiredColumns[name], l.columns[name])
	if err != nil {
		return nil, entities.NewConfigurationError(name, fmt.Sprintf("%s header mismatch", filename), err)
	}

	return &table{name: name, file: filename, index: index, records: records[1:]}, nil
}

// readRecords reads all records, switching to ';' when the header uses it
func readRecords(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	content := strings.TrimPrefix(string(data), "\ufeff")

	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	firstLine, _, _ := strings.Cut(content, "\n")
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		reader.Comma = ';'
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(record) {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// resolveColumns finds the position of every required canonical column.
// Header matching is case-insensitive; extra columns are ignored.
func resolveColumns(header, required []string, mapping map[string]string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[strings.ToLower(strings.TrimSpace(h))] = i
	}

	index := make(map[string]int, len(required))
	var missing []string
	for _, column := range required {
		source := column
		if mapped, ok := mapping[column]; ok && mapped != "" {
			source = mapped
		}
		i, ok := positions[strings.ToLower(strings.TrimSpace(source))]
		if !ok {
			missing = append(missing, fmt.Sprintf("%s (header %q)", column, source))
			continue
		}
		index[column] = i
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %s, got %v", strings.Join(missing, ", "), header)
	}
	return index, nil
}

// LoadProduction loads production by class
func (l *Loader) LoadProduction(filename string) ([]*entities.ClassProduction, error) {
	t, err := l.readTable(filename, TableProduction)
	if err != nil {
		return nil, err
	}

	rows := make([]*entities.ClassProduction, 0, len(t.records))
	for i, record := range t.records {
		quantity, err := ParseNumber(t.cell(record, "quantity"))
		if err != nil {
			return nil, t.rowError(i, err)
		}
		row, err := entities.NewClassProduction(t.cell(record, "class"), quantity)
		if err != nil {
			return nil, t.rowError(i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadClasses loads the SKU to class mapping
func (l *Loader) LoadClasses(filename string) ([]*entities.ClassMapping, error) {
	t, err := l.readTable(filename, TableClasses)
	if err != nil {
		return nil, err
	}

	mappings := make([]*entities.ClassMapping, 0, len(t.records))
	for i, record := range t.records {
		sku, err := entities.ParseSKUCode(t.cell(record, "sku_code"))
		if err != nil {
			return nil, t.rowError(i, err)
		}
		mappings = append(mappings, &entities.ClassMapping{SKU: sku, Class: t.cell(record, "class")})
	}
	return mappings, nil
}

// LoadPrices loads the price table
func (l *Loader) LoadPrices(filename string) ([]*entities.PriceRecord, error) {
	t, err := l.readTable(filename, TablePrices)
	if err != nil {
		return nil, err
	}

	prices := make([]*entities.PriceRecord, 0, len(t.records))
	for i, record := range t.records {
		sku, pkg, err := parseItem(t, record)
		if err != nil {
			return nil, t.rowError(i, err)
		}
		price, err := ParseDecimal(t.cell(record, "price"))
		if err != nil {
			return nil, t.rowError(i, fmt.Errorf("invalid price: %w", err))
		}
		prices = append(prices, &entities.PriceRecord{SKU: sku, Package: pkg, Price: price})
	}
	return prices, nil
}

// LoadCosts loads the cost table. An item_id column, when present, is ignored.
func (l *Loader) LoadCosts(filename string) ([]*entities.CostRecord, error) {
	t, err := l.readTable(filename, TableCosts)
	if err != nil {
		return nil, err
	}

	costs := make([]*entities.CostRecord, 0, len(t.records))
	for i, record := range t.records {
		sku, pkg, err := parseItem(t, record)
		if err != nil {
			return nil, t.rowError(i, err)
		}
		cost, err := ParseDecimal(t.cell(record, "unit_cost"))
		if err != nil {
			return nil, t.rowError(i, fmt.Errorf("invalid unit_cost: %w", err))
		}
		costs = append(costs, &entities.CostRecord{SKU: sku, Package: pkg, UnitCost: cost})
	}
	return costs, nil
}

// LoadOrders loads customer orders
func (l *Loader) LoadOrders(filename string) ([]*entities.CustomerOrder, error) {
	t, err := l.readTable(filename, TableOrders)
	if err != nil {
		return nil, err
	}

	orders := make([]*entities.CustomerOrder, 0, len(t.records))
	for i, record := range t.records {
		sku, err := entities.ParseSKUCode(t.cell(record, "sku_code"))
		if err != nil {
			return nil, t.rowError(i, err)
		}
		quantity, err := ParseNumber(t.cell(record, "quantity"))
		if err != nil {
			return nil, t.rowError(i, err)
		}
		order, err := entities.NewCustomerOrder(t.cell(record, "customer_id"), sku, quantity)
		if err != nil {
			return nil, t.rowError(i, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// LoadSales loads historical sales transactions
func (l *Loader) LoadSales(filename string) ([]entities.SalesRecord, error) {
	t, err := l.readTable(filename, TableSales)
	if err != nil {
		return nil, err
	}

	sales := make([]entities.SalesRecord, 0, len(t.records))
	for i, record := range t.records {
		sku, err := entities.ParseSKUCode(t.cell(record, "sku_code"))
		if err != nil {
			return nil, t.rowError(i, err)
		}
		ts, err := ParseTimestamp(t.cell(record, "timestamp"))
		if err != nil {
			return nil, t.rowError(i, err)
		}
		quantity, err := ParseNumber(t.cell(record, "quantity"))
		if err != nil {
			return nil, t.rowError(i, err)
		}
		sales = append(sales, entities.SalesRecord{SKU: sku, Timestamp: ts, Quantity: quantity})
	}
	return sales, nil
}

func parseItem(t *table, record []string) (entities.SKUCode, entities.PackageDescriptor, error) {
	sku, err := entities.ParseSKUCode(t.cell(record, "sku_code"))
	if err != nil {
		return 0, entities.PackageDescriptor{}, err
	}
	pkg, err := entities.ParsePackageDescriptor(t.cell(record, "package"))
	if err != nil {
		return 0, entities.PackageDescriptor{}, err
	}
	return sku, pkg, nil
}

// ParseDecimal parses a money cell. Plain decimals ("1234.56") and the
// Brazilian format ("R$ 1.234,56") are accepted.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", raw)
	}
	return d, nil
}

// ParseNumber parses a quantity cell with the same rules as ParseDecimal
func ParseNumber(raw string) (float64, error) {
	d, err := ParseDecimal(raw)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// ParseTimestamp parses a timestamp cell in ISO or dd/mm/yyyy form
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}
