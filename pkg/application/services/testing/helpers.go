package testing

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mixopt/pkg/application/services/reconcile"
	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/infrastructure/repositories/memory"
)

// mustParsePackage is a helper for tests - panics on invalid descriptors
func mustParsePackage(raw string) entities.PackageDescriptor {
	pkg, err := entities.ParsePackageDescriptor(raw)
	if err != nil {
		panic(err)
	}
	return pkg
}

// ItemID builds an item id from a SKU and a package descriptor text
func ItemID(sku int64, pkg string) entities.ItemID {
	return entities.NewItemID(entities.SKUCode(sku), mustParsePackage(pkg))
}

// ScenarioBuilder assembles in-memory upstream tables for service tests
type ScenarioBuilder struct {
	production *memory.ProductionRepository
	classes    *memory.ClassRepository
	prices     *memory.PriceRepository
	costs      *memory.CostRepository
	orders     *memory.OrderRepository
	noPrices   bool
	noOrders   bool
}

// NewScenario creates an empty scenario
func NewScenario() *ScenarioBuilder {
	return &ScenarioBuilder{
		production: memory.NewProductionRepository(),
		classes:    memory.NewClassRepository(),
		prices:     memory.NewPriceRepository(),
		costs:      memory.NewCostRepository(16),
		orders:     memory.NewOrderRepository(),
	}
}

// WithProduction adds production to a class
func (b *ScenarioBuilder) WithProduction(class string, quantity float64) *ScenarioBuilder {
	b.production.AddProduction(entities.ClassProduction{Class: class, Quantity: quantity})
	return b
}

// WithUnit adds an item with its class mapping, price and cost. An empty price
// leaves the item to the price fallback.
func (b *ScenarioBuilder) WithUnit(sku int64, pkg, class, price, cost string) *ScenarioBuilder {
	id := ItemID(sku, pkg)
	_ = b.classes.LoadMappings([]*entities.ClassMapping{{SKU: id.SKU, Class: class}})
	if price != "" {
		b.prices.AddPrice(entities.PriceRecord{SKU: id.SKU, Package: id.Package, Price: decimal.RequireFromString(price)})
	}
	b.costs.AddCost(entities.CostRecord{SKU: id.SKU, Package: id.Package, UnitCost: decimal.RequireFromString(cost)})
	return b
}

// WithOrder adds a customer order
func (b *ScenarioBuilder) WithOrder(customer string, sku int64, quantity float64) *ScenarioBuilder {
	_ = b.orders.LoadOrders([]*entities.CustomerOrder{{CustomerID: customer, SKU: entities.SKUCode(sku), Quantity: quantity}})
	return b
}

// WithoutPrices marks the price table as absent
func (b *ScenarioBuilder) WithoutPrices() *ScenarioBuilder {
	b.noPrices = true
	return b
}

// WithoutOrders marks the order table as absent
func (b *ScenarioBuilder) WithoutOrders() *ScenarioBuilder {
	b.noOrders = true
	return b
}

// Sources returns the scenario as reconciler sources
func (b *ScenarioBuilder) Sources() reconcile.Sources {
	src := reconcile.Sources{
		Production: b.production,
		Classes:    b.classes,
		Costs:      b.costs,
	}
	if !b.noPrices {
		src.Prices = b.prices
	}
	if !b.noOrders {
		src.Orders = b.orders
	}
	return src
}

// Table reconciles the scenario, panicking on error
func (b *ScenarioBuilder) Table() *reconcile.Table {
	table, err := reconcile.NewReconciler().Reconcile(context.Background(), b.Sources())
	if err != nil {
		panic(err)
	}
	return table
}

// SimpleReallocation is one class producing 1000 + 500 units shared by unit A
// (margin 2.00) and unit B (margin 3.00), without orders.
func SimpleReallocation() *ScenarioBuilder {
	return NewScenario().
		WithProduction("GRADE_A", 1000).
		WithProduction("GRADE_A", 500).
		WithUnit(101, "CX 12 BJ 30 UN", "GRADE_A", "12.00", "10.00").
		WithUnit(102, "CX 1 BJ 30 UN", "GRADE_A", "13.00", "10.00")
}

// OrderProtection is one class producing 1000 units where SKU 201 (margin 1.00)
// has 300 units ordered and SKU 202 (margin 3.00) has none.
func OrderProtection() *ScenarioBuilder {
	return NewScenario().
		WithProduction("GRADE_B", 1000).
		WithUnit(201, "CX 12 BJ 30 UN", "GRADE_B", "11.00", "10.00").
		WithUnit(202, "CX 1 BJ 30 UN", "GRADE_B", "13.00", "10.00").
		WithOrder("C1", 201, 200).
		WithOrder("C2", 201, 100)
}

// TwoClasses has two independent classes with different margins and costs
func TwoClasses() *ScenarioBuilder {
	return NewScenario().
		WithProduction("LARGE", 800).
		WithProduction("SMALL", 400).
		WithUnit(301, "CX 12 BJ 30 UN", "LARGE", "15.00", "11.00").
		WithUnit(301, "CX 1 BJ 30 UN", "LARGE", "16.50", "12.00").
		WithUnit(302, "CX 12 BJ 20 UN", "LARGE", "14.00", "9.50").
		WithUnit(401, "CX 1 BJ 12 UN", "SMALL", "6.00", "5.00").
		WithUnit(402, "CX 1 BJ 20 UN", "SMALL", "7.00", "5.50").
		WithOrder("C9", 302, 120)
}

// SalesHistory builds monthly sales of sku at the given quantities, one record
// per month counting back from before the reference date
func SalesHistory(sku int64, reference time.Time, monthly ...float64) []entities.SalesRecord {
	records := make([]entities.SalesRecord, 0, len(monthly))
	for i, qty := range monthly {
		ts := time.Date(reference.Year(), reference.Month(), 10, 12, 0, 0, 0, time.UTC).AddDate(0, -(i + 1), 0)
		records = append(records, entities.SalesRecord{SKU: entities.SKUCode(sku), Timestamp: ts, Quantity: qty})
	}
	return records
}

// Synthetic builds a reproducible scenario of classes with skusPerClass SKUs
// each, two packages per SKU and orders on every third SKU
func Synthetic(classes, skusPerClass int, seed int64) *ScenarioBuilder {
	rng := rand.New(rand.NewSource(seed))
	b := NewScenario()
	sku := int64(1000)
	for c := 0; c < classes; c++ {
		class := fmt.Sprintf("CLASS_%03d", c)
		b.WithProduction(class, float64(500+rng.Intn(5000)))
		for s := 0; s < skusPerClass; s++ {
			sku++
			for _, pkg := range []string{"CX 1 BJ 30 UN", "CX 12 BJ 30 UN"} {
				cost := 5 + rng.Float64()*10
				price := cost * (1.02 + rng.Float64()*0.4)
				b.WithUnit(sku, pkg, class, fmt.Sprintf("%.2f", price), fmt.Sprintf("%.2f", cost))
			}
			if s%3 == 0 {
				b.WithOrder(fmt.Sprintf("C%03d", s), sku, float64(10+rng.Intn(100)))
			}
		}
	}
	return b
}
