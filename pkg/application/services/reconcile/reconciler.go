// Package reconcile merges the upstream tables into the allocation base table.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-logr/logr"
	"github.com/shopspring/decimal"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/repositories"
	"github.com/vsinha/mixopt/pkg/logging"
)

const source = "reconcile"

// Sources are the upstream tables. A nil repository means the table is absent:
// production and costs are mandatory, the others degrade to empty defaults.
type Sources struct {
	Production repositories.ProductionRepository
	Classes    repositories.ClassRepository
	Prices     repositories.PriceRepository
	Costs      repositories.CostRepository
	Orders     repositories.OrderRepository
}

// Reconciler builds the allocation base table
type Reconciler struct{}

// NewReconciler creates a new reconciler
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reconcile joins costs, prices, classes, production and orders into the base
// table. Items with non-positive price, cost or margin are dropped and reported.
func (r *Reconciler) Reconcile(ctx context.Context, src Sources) (*Table, error) {
	logger := logr.FromContextOrDiscard(ctx).WithName(source)

	if src.Costs == nil {
		return nil, entities.NewConfigurationError("costs", "cost table is mandatory", nil)
	}
	if src.Production == nil {
		return nil, entities.NewConfigurationError("production", "production table is mandatory", nil)
	}

	var warnings []entities.Warning
	warn := func(w entities.Warning) {
		logging.Warn(logger, w)
		warnings = append(warnings, w)
	}

	if src.Prices == nil {
		warn(entities.NewWarning(entities.DegradedInputWarning, "prices",
			"price table absent, items without a price fallback are dropped"))
	}
	if src.Orders == nil {
		warn(entities.NewWarning(entities.DegradedInputWarning, "orders",
			"order table absent, assuming zero orders"))
	}
	if src.Classes == nil {
		warn(entities.NewWarning(entities.DegradedInputWarning, "classes",
			fmt.Sprintf("class mapping absent, every SKU is %s", entities.UnclassifiedClass)))
	}

	costs, err := src.Costs.GetAllCosts()
	if err != nil {
		return nil, fmt.Errorf("failed to read costs: %w", err)
	}

	stats := Stats{InputItems: len(costs), PriceSources: map[entities.PriceSource]int{}}
	var droppedPrice, droppedCost, droppedMargin []string
	units := make([]entities.AllocationUnit, 0, len(costs))
	capacities := make(map[string]float64)

	for _, c := range costs {
		id := c.ItemID()
		class := entities.UnclassifiedClass
		if src.Classes != nil {
			class = src.Classes.GetClass(c.SKU)
		}

		var (
			price       decimal.Decimal
			priceSource entities.PriceSource
			found       bool
		)
		if src.Prices != nil {
			price, priceSource, found = src.Prices.ResolvePrice(id)
		}

		switch {
		case !found || !price.IsPositive():
			droppedPrice = append(droppedPrice, id.String())
			continue
		case !c.UnitCost.IsPositive():
			droppedCost = append(droppedCost, id.String())
			continue
		case !price.Sub(c.UnitCost).IsPositive():
			droppedMargin = append(droppedMargin, id.String())
			continue
		}

		if _, seen := capacities[class]; !seen {
			capacity, _ := src.Production.GetCapacity(class)
			capacities[class] = capacity
		}

		stats.PriceSources[priceSource]++
		units = append(units, entities.AllocationUnit{
			ItemID:      id,
			SKU:         c.SKU,
			Package:     c.Package,
			Class:       class,
			UnitPrice:   price,
			UnitCost:    c.UnitCost,
			UnitMargin:  price.Sub(c.UnitCost),
			PriceSource: priceSource,
		})
	}

	stats.DroppedPrice = len(droppedPrice)
	stats.DroppedCost = len(droppedCost)
	stats.DroppedMargin = len(droppedMargin)
	for _, dropped := range []struct {
		reason string
		keys   []string
	}{
		{"non-positive or missing price", droppedPrice},
		{"non-positive cost", droppedCost},
		{"non-positive margin", droppedMargin},
	} {
		if len(dropped.keys) > 0 {
			warn(entities.NewWarning(entities.DataQualityWarning, source,
				fmt.Sprintf("items dropped for %s", dropped.reason), dropped.keys...))
		}
	}

	var aggregates []entities.OrderAggregate
	if src.Orders != nil {
		orders, err := src.Orders.GetAggregates()
		if err != nil {
			return nil, fmt.Errorf("failed to read orders: %w", err)
		}
		for _, o := range orders {
			aggregates = append(aggregates, *o)
		}
	}

	table := NewTable(units, capacities, aggregates)

	var unmodelled []string
	for _, o := range aggregates {
		if _, ok := table.Order(o.SKU); !ok && o.TotalQuantity > 0 {
			unmodelled = append(unmodelled, fmt.Sprintf("%d", o.SKU))
		}
	}
	if len(unmodelled) > 0 {
		warn(entities.NewWarning(entities.DataQualityWarning, "orders",
			"orders for SKUs without allocation units are not modelled", unmodelled...))
	}

	var zeroCapacity []string
	for _, class := range table.Classes() {
		if class.TotalCapacity <= 0 {
			zeroCapacity = append(zeroCapacity, class.Name)
		}
	}
	if len(zeroCapacity) > 0 {
		warn(entities.NewWarning(entities.DataQualityWarning, "production",
			"classes without production receive no allocation", zeroCapacity...))
	}

	stats.Kept = len(units)
	stats.UnmodelledOrders = len(unmodelled)
	table.Stats = stats
	table.Warnings = warnings

	logger.Info("Reconciled allocation base table",
		"items", stats.InputItems,
		"kept", stats.Kept,
		"dropped", stats.Dropped(),
		"classes", len(table.Classes()),
		"orders", len(table.Orders()),
		"exactPrices", stats.PriceSources[entities.PriceExact],
		"skuMeanPrices", stats.PriceSources[entities.PriceSKUMean],
		"globalMeanPrices", stats.PriceSources[entities.PriceGlobalMean])

	logReallocationPotential(logger, table)

	return table, nil
}

// logReallocationPotential logs, per class, what moving the whole class
// production from its worst to its best unit margin could be worth
func logReallocationPotential(logger logr.Logger, table *Table) {
	debug := logger.V(logging.DEBUG)
	if !debug.Enabled() {
		return
	}

	type potential struct {
		class  string
		spread decimal.Decimal
		value  decimal.Decimal
	}
	var potentials []potential
	for _, class := range table.Classes() {
		units := table.UnitsOf(class.Name)
		if len(units) < 2 {
			continue
		}
		lo, hi := units[0].UnitMargin, units[0].UnitMargin
		for _, u := range units[1:] {
			lo = decimal.Min(lo, u.UnitMargin)
			hi = decimal.Max(hi, u.UnitMargin)
		}
		spread := hi.Sub(lo)
		potentials = append(potentials, potential{
			class:  class.Name,
			spread: spread,
			value:  spread.Mul(decimal.NewFromFloat(class.TotalCapacity)),
		})
	}
	sort.Slice(potentials, func(i, j int) bool {
		return potentials[i].value.GreaterThan(potentials[j].value)
	})

	for _, p := range potentials {
		debug.Info("Class reallocation potential",
			"class", p.class,
			"marginSpread", p.spread.StringFixed(2),
			"potential", p.value.StringFixed(2))
	}
}
