package entities

import (
	"github.com/shopspring/decimal"
)

// UnclassifiedClass is assigned to SKUs missing from the class mapping
const UnclassifiedClass = "UNCLASSIFIED"

// PriceSource represents which tier of the price fallback produced a unit price
type PriceSource int

const (
	PriceExact PriceSource = iota
	PriceSKUMean
	PriceGlobalMean
)

// String method for PriceSource enum
func (s PriceSource) String() string {
	switch s {
	case PriceExact:
		return "exact"
	case PriceSKUMean:
		return "sku_mean"
	case PriceGlobalMean:
		return "global_mean"
	default:
		return "unknown"
	}
}

// AllocationUnit represents one decision entity of the allocation model
type AllocationUnit struct {
	ItemID          ItemID
	SKU             SKUCode
	Package         PackageDescriptor
	Class           string
	UnitPrice       decimal.Decimal
	UnitCost        decimal.Decimal
	UnitMargin      decimal.Decimal
	PriceSource     PriceSource
	ClassCapacity   float64
	OrderedQuantity float64
}

// Eligible reports whether the unit may take part in optimization
func (u AllocationUnit) Eligible() bool {
	return u.UnitPrice.IsPositive() && u.UnitCost.IsPositive() && u.UnitMargin.IsPositive()
}

// ProductClass represents a group of SKUs pooling the same production
type ProductClass struct {
	Name          string
	TotalCapacity float64
	Members       []ItemID
}

// OrderAggregate represents all customer orders of one SKU, with the mean unit
// economics of the SKU's allocation units
type OrderAggregate struct {
	SKU           SKUCode
	Class         string
	TotalQuantity float64
	Customers     int
	UnitPrice     decimal.Decimal
	UnitCost      decimal.Decimal
	UnitMargin    decimal.Decimal
}

// DemandCeiling represents the historical upper bound on what a SKU can absorb
type DemandCeiling struct {
	SKU         SKUCode
	MaxQuantity float64
	Periods     int
}

// DecisionKind tags an allocation decision as order fulfillment or surplus optimization
type DecisionKind int

const (
	DecisionOrder DecisionKind = iota
	DecisionSurplus
)

// String method for DecisionKind enum
func (k DecisionKind) String() string {
	switch k {
	case DecisionOrder:
		return "ORDER"
	case DecisionSurplus:
		return "SURPLUS"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the kind as its label in JSON output
func (k DecisionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AllocationDecision represents one allocated row of a solved run
type AllocationDecision struct {
	ItemID            ItemID            `json:"item_id"`
	SKU               SKUCode           `json:"sku_code"`
	Package           PackageDescriptor `json:"package"`
	Class             string            `json:"class"`
	Kind              DecisionKind      `json:"kind"`
	AllocatedQuantity float64           `json:"allocated_quantity"`
	UnitPrice         decimal.Decimal   `json:"unit_price"`
	UnitCost          decimal.Decimal   `json:"unit_cost"`
	UnitMargin        decimal.Decimal   `json:"unit_margin"`
	Revenue           decimal.Decimal   `json:"revenue"`
	Cost              decimal.Decimal   `json:"cost"`
	Margin            decimal.Decimal   `json:"margin"`
}

// NewAllocationDecision creates a decision and derives revenue, cost and margin from the quantity
func NewAllocationDecision(id ItemID, class string, kind DecisionKind, quantity float64, price, cost decimal.Decimal) AllocationDecision {
	qty := decimal.NewFromFloat(quantity)
	margin := price.Sub(cost)
	return AllocationDecision{
		ItemID:            id,
		SKU:               id.SKU,
		Package:           id.Package,
		Class:             class,
		Kind:              kind,
		AllocatedQuantity: quantity,
		UnitPrice:         price,
		UnitCost:          cost,
		UnitMargin:        margin,
		Revenue:           qty.Mul(price),
		Cost:              qty.Mul(cost),
		Margin:            qty.Mul(margin),
	}
}

// ClassRollup represents the per-class summary of a solved run
type ClassRollup struct {
	Class           string          `json:"class"`
	SKUs            int             `json:"skus"`
	OrderQuantity   float64         `json:"order_quantity"`
	SurplusQuantity float64         `json:"surplus_quantity"`
	Capacity        float64         `json:"capacity"`
	Utilization     float64         `json:"utilization"`
	Revenue         decimal.Decimal `json:"revenue"`
	Cost            decimal.Decimal `json:"cost"`
	Margin          decimal.Decimal `json:"margin"`
}

// Comparison represents optimized totals against the uniform-distribution baseline
type Comparison struct {
	MarginBaseline      decimal.Decimal `json:"margin_baseline"`
	MarginOptimized     decimal.Decimal `json:"margin_optimized"`
	GainAbsolute        decimal.Decimal `json:"gain_absolute"`
	GainPercentage      decimal.Decimal `json:"gain_percentage"`
	CostBaseline        decimal.Decimal `json:"cost_baseline"`
	CostOptimized       decimal.Decimal `json:"cost_optimized"`
	ReductionAbsolute   decimal.Decimal `json:"reduction_absolute"`
	ReductionPercentage decimal.Decimal `json:"reduction_percentage"`
}
