package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mixopt/pkg/domain/entities"
)

// Stats counts what reconciliation kept and dropped
type Stats struct {
	InputItems       int
	Kept             int
	DroppedPrice     int
	DroppedCost      int
	DroppedMargin    int
	UnmodelledOrders int
	PriceSources     map[entities.PriceSource]int
}

// Dropped returns the number of items excluded from optimization
func (s Stats) Dropped() int {
	return s.DroppedPrice + s.DroppedCost + s.DroppedMargin
}

// Table is the denormalized allocation base table. It is read-only after construction.
type Table struct {
	units      []entities.AllocationUnit
	classes    []entities.ProductClass
	orders     []entities.OrderAggregate
	capacities map[string]float64
	unitIndex  map[entities.ItemID]int
	orderIndex map[entities.SKUCode]int

	Stats    Stats
	Warnings []entities.Warning
}

// NewTable builds a table from eligible units, class capacities and per-SKU order
// totals. Order aggregates get the class and mean unit economics of their SKU's units;
// orders of SKUs without units are left out.
func NewTable(units []entities.AllocationUnit, capacities map[string]float64, orders []entities.OrderAggregate) *Table {
	t := &Table{
		units:      make([]entities.AllocationUnit, len(units)),
		capacities: make(map[string]float64, len(capacities)),
		unitIndex:  make(map[entities.ItemID]int, len(units)),
		orderIndex: make(map[entities.SKUCode]int, len(orders)),
		Stats:      Stats{PriceSources: map[entities.PriceSource]int{}},
	}
	for class, capacity := range capacities {
		t.capacities[class] = max(0, capacity)
	}

	copy(t.units, units)
	sort.SliceStable(t.units, func(i, j int) bool {
		return t.units[i].ItemID.Less(t.units[j].ItemID)
	})

	merged := make(map[entities.SKUCode]entities.OrderAggregate, len(orders))
	for _, o := range orders {
		agg := merged[o.SKU]
		agg.SKU = o.SKU
		agg.TotalQuantity += o.TotalQuantity
		agg.Customers += o.Customers
		merged[o.SKU] = agg
	}

	members := make(map[string][]entities.ItemID)
	bySKU := make(map[entities.SKUCode][]int)
	for i := range t.units {
		u := &t.units[i]
		u.ClassCapacity = t.capacities[u.Class]
		u.OrderedQuantity = merged[u.SKU].TotalQuantity
		t.unitIndex[u.ItemID] = i
		members[u.Class] = append(members[u.Class], u.ItemID)
		bySKU[u.SKU] = append(bySKU[u.SKU], i)
	}

	for name, ids := range members {
		t.classes = append(t.classes, entities.ProductClass{
			Name:          name,
			TotalCapacity: t.capacities[name],
			Members:       ids,
		})
	}
	sort.Slice(t.classes, func(i, j int) bool {
		return t.classes[i].Name < t.classes[j].Name
	})

	for sku, o := range merged {
		idx, ok := bySKU[sku]
		if !ok {
			continue
		}
		agg := o
		agg.Class = t.units[idx[0]].Class
		agg.UnitPrice, agg.UnitCost = meanEconomics(t.units, idx)
		agg.UnitMargin = agg.UnitPrice.Sub(agg.UnitCost)
		t.orders = append(t.orders, agg)
	}
	sort.Slice(t.orders, func(i, j int) bool {
		return t.orders[i].SKU < t.orders[j].SKU
	})
	for i, o := range t.orders {
		t.orderIndex[o.SKU] = i
	}

	t.Stats.Kept = len(t.units)
	return t
}

func meanEconomics(units []entities.AllocationUnit, idx []int) (decimal.Decimal, decimal.Decimal) {
	prices := make([]decimal.Decimal, 0, len(idx))
	costs := make([]decimal.Decimal, 0, len(idx))
	for _, i := range idx {
		prices = append(prices, units[i].UnitPrice)
		costs = append(costs, units[i].UnitCost)
	}
	return decimal.Avg(prices[0], prices[1:]...), decimal.Avg(costs[0], costs[1:]...)
}

// Units returns the eligible allocation units sorted by item id
func (t *Table) Units() []entities.AllocationUnit {
	out := make([]entities.AllocationUnit, len(t.units))
	copy(out, t.units)
	return out
}

// Unit returns the unit of an item
func (t *Table) Unit(id entities.ItemID) (entities.AllocationUnit, bool) {
	i, ok := t.unitIndex[id]
	if !ok {
		return entities.AllocationUnit{}, false
	}
	return t.units[i], true
}

// UnitsOf returns the units of a class
func (t *Table) UnitsOf(class string) []entities.AllocationUnit {
	var out []entities.AllocationUnit
	for _, u := range t.units {
		if u.Class == class {
			out = append(out, u)
		}
	}
	return out
}

// Classes returns the classes that have at least one unit, sorted by name
func (t *Table) Classes() []entities.ProductClass {
	out := make([]entities.ProductClass, len(t.classes))
	copy(out, t.classes)
	return out
}

// Orders returns the modelled per-SKU order aggregates sorted by SKU
func (t *Table) Orders() []entities.OrderAggregate {
	out := make([]entities.OrderAggregate, len(t.orders))
	copy(out, t.orders)
	return out
}

// Order returns the order aggregate of a SKU
func (t *Table) Order(sku entities.SKUCode) (entities.OrderAggregate, bool) {
	i, ok := t.orderIndex[sku]
	if !ok {
		return entities.OrderAggregate{}, false
	}
	return t.orders[i], true
}

// OrdersOf returns the order aggregates of a class
func (t *Table) OrdersOf(class string) []entities.OrderAggregate {
	var out []entities.OrderAggregate
	for _, o := range t.orders {
		if o.Class == class {
			out = append(out, o)
		}
	}
	return out
}

// ClassCapacity returns the total production of a class, 0 when it has none
func (t *Table) ClassCapacity(class string) float64 {
	return t.capacities[class]
}

// Empty reports whether no unit survived reconciliation
func (t *Table) Empty() bool {
	return len(t.units) == 0
}
