package shared

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mixopt/pkg/domain/entities"
)

// ClassUsage holds what a solved run allocated out of one class capacity
type ClassUsage struct {
	Capacity        float64
	OrderQuantity   float64
	SurplusQuantity float64
	Revenue         decimal.Decimal
	Cost            decimal.Decimal
	Margin          decimal.Decimal
	skus            map[entities.SKUCode]struct{}
}

// Allocated returns orders plus surplus
func (u *ClassUsage) Allocated() float64 {
	return u.OrderQuantity + u.SurplusQuantity
}

// Utilization returns the allocated share of capacity (0.0 when capacity is zero)
func (u *ClassUsage) Utilization() float64 {
	if u.Capacity <= 0 {
		return 0.0
	}
	return u.Allocated() / u.Capacity
}

// UsageLedger manages class usage by class name
type UsageLedger map[string]*ClassUsage

// NewUsageLedger creates a new empty ledger
func NewUsageLedger() UsageLedger {
	return make(UsageLedger)
}

// NewUsageLedgerFromDecisions creates a ledger from solved decisions. capacities seeds
// every class so that classes without allocation still show up.
func NewUsageLedgerFromDecisions(capacities map[string]float64, decisions []entities.AllocationDecision) UsageLedger {
	ledger := NewUsageLedger()
	for class, capacity := range capacities {
		ledger.Set(class, &ClassUsage{Capacity: capacity})
	}
	for _, d := range decisions {
		ledger.Record(d)
	}
	return ledger
}

// Get retrieves usage for a class
func (l UsageLedger) Get(class string) *ClassUsage {
	return l[class]
}

// Set stores usage for a class
func (l UsageLedger) Set(class string, usage *ClassUsage) {
	if usage.skus == nil {
		usage.skus = make(map[entities.SKUCode]struct{})
	}
	l[class] = usage
}

// Record adds one decision to its class
func (l UsageLedger) Record(d entities.AllocationDecision) {
	usage := l.Get(d.Class)
	if usage == nil {
		usage = &ClassUsage{}
		l.Set(d.Class, usage)
	}
	switch d.Kind {
	case entities.DecisionOrder:
		usage.OrderQuantity += d.AllocatedQuantity
	default:
		usage.SurplusQuantity += d.AllocatedQuantity
	}
	usage.Revenue = usage.Revenue.Add(d.Revenue)
	usage.Cost = usage.Cost.Add(d.Cost)
	usage.Margin = usage.Margin.Add(d.Margin)
	usage.skus[d.SKU] = struct{}{}
}

// Classes returns all class names, sorted
func (l UsageLedger) Classes() []string {
	classes := make([]string, 0, len(l))
	for class := range l {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}

// TotalAllocated returns the allocated quantity across all classes
func (l UsageLedger) TotalAllocated() float64 {
	var total float64
	for _, usage := range l {
		total += usage.Allocated()
	}
	return total
}

// TotalCapacity returns the capacity across all classes
func (l UsageLedger) TotalCapacity() float64 {
	var total float64
	for _, usage := range l {
		total += usage.Capacity
	}
	return total
}

// Utilization returns the overall allocated share of capacity (0.0 to 1.0)
func (l UsageLedger) Utilization() float64 {
	capacity := l.TotalCapacity()
	if capacity == 0 {
		return 0.0
	}
	return l.TotalAllocated() / capacity
}

// Rollups returns one summary row per class, sorted by class name
func (l UsageLedger) Rollups() []entities.ClassRollup {
	rollups := make([]entities.ClassRollup, 0, len(l))
	for _, class := range l.Classes() {
		usage := l[class]
		rollups = append(rollups, entities.ClassRollup{
			Class:           class,
			SKUs:            len(usage.skus),
			OrderQuantity:   usage.OrderQuantity,
			SurplusQuantity: usage.SurplusQuantity,
			Capacity:        usage.Capacity,
			Utilization:     usage.Utilization(),
			Revenue:         usage.Revenue,
			Cost:            usage.Cost,
			Margin:          usage.Margin,
		})
	}
	return rollups
}

// String returns a string representation of the ledger for debugging
func (l UsageLedger) String() string {
	if len(l) == 0 {
		return "UsageLedger{empty}"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "UsageLedger{%d classes:\n", len(l))
	for _, class := range l.Classes() {
		usage := l[class]
		fmt.Fprintf(&b, "  %s: orders=%g, surplus=%g, capacity=%g, margin=%s\n",
			class, usage.OrderQuantity, usage.SurplusQuantity, usage.Capacity, usage.Margin.StringFixed(2))
	}
	b.WriteString("}")
	return b.String()
}
