// Package compare measures an optimized allocation against the uniform baseline.
package compare

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/vsinha/mixopt/pkg/application/services/reconcile"
	"github.com/vsinha/mixopt/pkg/domain/entities"
)

var hundred = decimal.NewFromInt(100)

// ClassBaseline is the uniform-distribution outcome of one class
type ClassBaseline struct {
	Class      string
	Capacity   float64
	MeanMargin float64
	MeanCost   float64
	Margin     decimal.Decimal
	Cost       decimal.Decimal
}

// Baseline returns, per class with units, the margin and cost of spreading the class
// production evenly: mean unit margin and mean unit cost times total production.
func Baseline(table *reconcile.Table) []ClassBaseline {
	var baselines []ClassBaseline
	for _, class := range table.Classes() {
		units := table.UnitsOf(class.Name)
		if len(units) == 0 {
			continue
		}
		margins := make([]float64, len(units))
		costs := make([]float64, len(units))
		for i, u := range units {
			margins[i] = u.UnitMargin.InexactFloat64()
			costs[i] = u.UnitCost.InexactFloat64()
		}
		capacity := table.ClassCapacity(class.Name)
		b := ClassBaseline{
			Class:      class.Name,
			Capacity:   capacity,
			MeanMargin: stat.Mean(margins, nil),
			MeanCost:   stat.Mean(costs, nil),
		}
		qty := decimal.NewFromFloat(capacity)
		b.Margin = decimal.NewFromFloat(b.MeanMargin).Mul(qty).Round(6)
		b.Cost = decimal.NewFromFloat(b.MeanCost).Mul(qty).Round(6)
		baselines = append(baselines, b)
	}
	return baselines
}

// Compare sums the baseline over all classes and sets it against the optimized decisions.
// Percentages are zero when the baseline is zero.
func Compare(ctx context.Context, table *reconcile.Table, decisions []entities.AllocationDecision) entities.Comparison {
	logger := logr.FromContextOrDiscard(ctx).WithName("compare")

	c := entities.Comparison{
		MarginBaseline:  decimal.Zero,
		MarginOptimized: decimal.Zero,
		CostBaseline:    decimal.Zero,
		CostOptimized:   decimal.Zero,
	}
	for _, b := range Baseline(table) {
		c.MarginBaseline = c.MarginBaseline.Add(b.Margin)
		c.CostBaseline = c.CostBaseline.Add(b.Cost)
	}
	for _, d := range decisions {
		c.MarginOptimized = c.MarginOptimized.Add(d.Margin)
		c.CostOptimized = c.CostOptimized.Add(d.Cost)
	}

	c.GainAbsolute = c.MarginOptimized.Sub(c.MarginBaseline)
	c.GainPercentage = percentage(c.GainAbsolute, c.MarginBaseline)
	c.ReductionAbsolute = c.CostBaseline.Sub(c.CostOptimized)
	c.ReductionPercentage = percentage(c.ReductionAbsolute, c.CostBaseline)

	logger.Info("Compared against uniform baseline",
		"marginBaseline", c.MarginBaseline.StringFixed(2),
		"marginOptimized", c.MarginOptimized.StringFixed(2),
		"gain", c.GainPercentage.StringFixed(2)+"%",
		"costBaseline", c.CostBaseline.StringFixed(2),
		"costOptimized", c.CostOptimized.StringFixed(2),
		"reduction", c.ReductionPercentage.StringFixed(2)+"%")

	return c
}

func percentage(delta, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return delta.Div(base).Mul(hundred).Round(4)
}
