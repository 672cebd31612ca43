// Package sql serves historical sales from a SQLite or PostgreSQL table.
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/repositories"
)

// DefaultTable is queried when the column mapping names no table
const DefaultTable = "sales_history"

const sqliteTimeLayout = "2006-01-02 15:04:05"

// IsDSN reports whether source names a database rather than a file
func IsDSN(source string) bool {
	return strings.HasPrefix(source, "sqlite://") ||
		strings.HasPrefix(source, "postgres://") ||
		strings.HasPrefix(source, "postgresql://")
}

// SalesRepository reads historical sales through database/sql
type SalesRepository struct {
	db          *sql.DB
	driver      string
	table       string
	skuColumn   string
	tsColumn    string
	qtyColumn   string
	placeholder sq.PlaceholderFormat
}

// Verify interface compliance
var _ repositories.SalesHistoryRepository = (*SalesRepository)(nil)

// Open prepares a handle on dsn (sqlite://<file> or postgres://...). columns
// may map table, sku_code, timestamp and quantity to the names used by the
// database. No connection is made here: an unreachable database is reported
// by GetSales.
func Open(dsn string, columns map[string]string) (*SalesRepository, error) {
	var driver, conn string
	var placeholder sq.PlaceholderFormat
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		driver, conn, placeholder = "sqlite3", strings.TrimPrefix(dsn, "sqlite://"), sq.Question
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		driver, conn, placeholder = "pgx", dsn, sq.Dollar
	default:
		return nil, entities.NewConfigurationError("historical_sales", fmt.Sprintf("unsupported DSN %q", dsn), nil)
	}

	db, err := sql.Open(driver, conn)
	if err != nil {
		return nil, entities.NewConfigurationError("historical_sales", fmt.Sprintf("invalid %s DSN", driver), err)
	}
	return NewSalesRepository(db, driver, placeholder, columns), nil
}

// NewSalesRepository wraps an open database handle
func NewSalesRepository(db *sql.DB, driver string, placeholder sq.PlaceholderFormat, columns map[string]string) *SalesRepository {
	column := func(name, fallback string) string {
		if v, ok := columns[name]; ok && v != "" {
			return v
		}
		return fallback
	}
	return &SalesRepository{
		db:          db,
		driver:      driver,
		table:       column("table", DefaultTable),
		skuColumn:   column("sku_code", "sku_code"),
		tsColumn:    column("timestamp", "timestamp"),
		qtyColumn:   column("quantity", "quantity"),
		placeholder: placeholder,
	}
}

// query builds the windowed select
func (r *SalesRepository) query(from, to time.Time) sq.SelectBuilder {
	var lo, hi any = from, to
	if r.driver == "sqlite3" {
		// sqlite compares timestamps stored as text lexically
		lo, hi = from.UTC().Format(sqliteTimeLayout), to.UTC().Format(sqliteTimeLayout)
	}
	return sq.Select(r.skuColumn, r.tsColumn, r.qtyColumn).
		From(r.table).
		Where(sq.GtOrEq{r.tsColumn: lo}).
		Where(sq.Lt{r.tsColumn: hi}).
		OrderBy(r.tsColumn).
		PlaceholderFormat(r.placeholder)
}

// GetSales returns the records with from <= timestamp < to
func (r *SalesRepository) GetSales(ctx context.Context, from, to time.Time) ([]entities.SalesRecord, error) {
	rows, err := r.query(from, to).RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.table, err)
	}
	defer rows.Close()

	var records []entities.SalesRecord
	for rows.Next() {
		var (
			sku      int64
			rawTS    any
			quantity float64
		)
		if err := rows.Scan(&sku, &rawTS, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", r.table, err)
		}
		ts, err := toTime(rawTS)
		if err != nil {
			return nil, fmt.Errorf("%s row for sku %d: %w", r.table, sku, err)
		}
		records = append(records, entities.SalesRecord{
			SKU:       entities.SKUCode(sku),
			Timestamp: ts,
			Quantity:  quantity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.table, err)
	}
	return records, nil
}

// Close closes the database handle
func (r *SalesRepository) Close() error {
	return r.db.Close()
}

var textLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toTime(v any) (time.Time, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts, nil
	case string:
		return parseText(ts)
	case []byte:
		return parseText(string(ts))
	case int64:
		return time.Unix(ts, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseText(s string) (time.Time, error) {
	for _, layout := range textLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
