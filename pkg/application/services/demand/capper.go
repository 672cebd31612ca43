// Package demand derives per-SKU demand ceilings from historical sales.
package demand

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/repositories"
	"github.com/vsinha/mixopt/pkg/logging"
)

// Granularity is the period sales are aggregated over
type Granularity int

const (
	Monthly Granularity = iota
	Weekly
	Daily
)

// String method for Granularity enum
func (g Granularity) String() string {
	switch g {
	case Daily:
		return "D"
	case Weekly:
		return "W"
	case Monthly:
		return "M"
	default:
		return "?"
	}
}

// ParseGranularity parses D, W or M
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D":
		return Daily, nil
	case "W":
		return Weekly, nil
	case "", "M":
		return Monthly, nil
	default:
		return 0, fmt.Errorf("unknown granularity %q (expected D, W or M)", s)
	}
}

// PeriodStart returns the first instant of the period containing t. Weeks
// start on Monday.
func (g Granularity) PeriodStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch g {
	case Daily:
		return day
	case Weekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	}
}

// Estimator selects how the ceiling is derived from period totals
type Estimator int

const (
	Percentile Estimator = iota
	Maximum
)

// String method for Estimator enum
func (e Estimator) String() string {
	switch e {
	case Percentile:
		return "percentile"
	case Maximum:
		return "maximum"
	default:
		return "unknown"
	}
}

// ParseEstimator parses percentile or maximum
func ParseEstimator(s string) (Estimator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "percentile":
		return Percentile, nil
	case "maximum", "max":
		return Maximum, nil
	default:
		return 0, fmt.Errorf("unknown estimator %q (expected percentile or maximum)", s)
	}
}

// Options configures the capper
type Options struct {
	ReferenceDate   time.Time
	LookbackMonths  int
	Granularity     Granularity
	Estimator       Estimator
	Percentile      float64
	ExpansionFactor float64
	MaxFactor       float64
}

// DefaultOptions returns the capper defaults for a reference date
func DefaultOptions(reference time.Time) Options {
	return Options{
		ReferenceDate:   reference,
		LookbackMonths:  3,
		Granularity:     Monthly,
		Estimator:       Percentile,
		Percentile:      90,
		ExpansionFactor: 1.5,
		MaxFactor:       1.2,
	}
}

// Window returns [reference - lookback, reference)
func (o Options) Window() (time.Time, time.Time) {
	to := o.ReferenceDate
	return to.AddDate(0, -o.LookbackMonths, 0), to
}

// Ceilings maps a SKU to its demand ceiling. SKUs without history have no entry.
type Ceilings map[entities.SKUCode]entities.DemandCeiling

// Get returns the ceiling quantity of a SKU
func (c Ceilings) Get(sku entities.SKUCode) (float64, bool) {
	ceiling, ok := c[sku]
	return ceiling.MaxQuantity, ok
}

// Compute aggregates the records inside the window per SKU and period and
// applies the estimator. Ceilings are never negative.
func Compute(ctx context.Context, records []entities.SalesRecord, opts Options) Ceilings {
	logger := logr.FromContextOrDiscard(ctx).WithName("demand")
	from, to := opts.Window()

	periods := make(map[entities.SKUCode]map[time.Time]float64)
	var inWindow int
	for _, r := range records {
		if r.Timestamp.Before(from) || !r.Timestamp.Before(to) {
			continue
		}
		inWindow++
		byPeriod, ok := periods[r.SKU]
		if !ok {
			byPeriod = make(map[time.Time]float64)
			periods[r.SKU] = byPeriod
		}
		byPeriod[opts.Granularity.PeriodStart(r.Timestamp)] += r.Quantity
	}

	ceilings := make(Ceilings, len(periods))
	for sku, byPeriod := range periods {
		totals := make([]float64, 0, len(byPeriod))
		for _, qty := range byPeriod {
			totals = append(totals, qty)
		}
		sort.Float64s(totals)

		var value float64
		switch opts.Estimator {
		case Maximum:
			value = floats.Max(totals) * opts.MaxFactor
		default:
			value = stat.Quantile(opts.Percentile/100, stat.LinInterp, totals, nil) * opts.ExpansionFactor
		}

		ceilings[sku] = entities.DemandCeiling{
			SKU:         sku,
			MaxQuantity: max(0, value),
			Periods:     len(totals),
		}
	}

	logger.V(logging.DEBUG).Info("Computed demand ceilings",
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly),
		"records", inWindow,
		"skus", len(ceilings),
		"granularity", opts.Granularity.String(),
		"estimator", opts.Estimator.String())

	return ceilings
}

// Load reads the window from the sales source and computes the ceilings. A
// failing or absent source never aborts the run: it yields no ceilings and a
// DegradedInputWarning.
func Load(ctx context.Context, repo repositories.SalesHistoryRepository, opts Options) (Ceilings, []entities.Warning) {
	logger := logr.FromContextOrDiscard(ctx).WithName("demand")

	if repo == nil {
		w := entities.NewWarning(entities.DegradedInputWarning, "historical_sales",
			"historical sales absent, no demand ceiling applied")
		logging.Warn(logger, w)
		return Ceilings{}, []entities.Warning{w}
	}

	from, to := opts.Window()
	records, err := repo.GetSales(ctx, from, to)
	if err != nil {
		w := entities.NewWarning(entities.DegradedInputWarning, "historical_sales",
			fmt.Sprintf("failed to load historical sales, no demand ceiling applied: %v", err))
		logging.Warn(logger, w)
		return Ceilings{}, []entities.Warning{w}
	}

	ceilings := Compute(ctx, records, opts)
	logger.Info("Demand ceilings ready", "skus", len(ceilings), "records", len(records))
	return ceilings, nil
}
