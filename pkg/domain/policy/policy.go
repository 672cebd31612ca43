// Package policy resolves the allocation policy flags into the effective
// operating mode of the model builder.
package policy

import (
	"fmt"
	"strings"
)

// DefaultCostAllocationBonus is the per-unit reward subtracted in the
// cost-minimization objective so that allocating nothing is never optimal.
const DefaultCostAllocationBonus = 200.0

// Objective selects what the model optimizes
type Objective int

const (
	MaximizeMargin Objective = iota
	MinimizeCost
)

// String method for Objective enum
func (o Objective) String() string {
	switch o {
	case MaximizeMargin:
		return "maximize_margin"
	case MinimizeCost:
		return "minimize_cost"
	default:
		return "unknown"
	}
}

// ParseObjective parses the configuration spelling of an objective
func ParseObjective(s string) (Objective, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "maximize_margin":
		return MaximizeMargin, nil
	case "minimize_cost":
		return MinimizeCost, nil
	default:
		return 0, fmt.Errorf("unknown objective %q (expected maximize_margin or minimize_cost)", s)
	}
}

// Mode is one of the two effective operating modes
type Mode int

const (
	// OrdersThenSurplus fulfills orders first and optimizes the remaining class surplus
	OrdersThenSurplus Mode = iota
	// TotalStock ignores orders and optimizes the entire class capacity
	TotalStock
)

// String method for Mode enum
func (m Mode) String() string {
	switch m {
	case OrdersThenSurplus:
		return "orders_then_surplus"
	case TotalStock:
		return "total_stock"
	default:
		return "unknown"
	}
}

// Policy holds the configured flags as the user wrote them
type Policy struct {
	FulfillOrders           bool
	OptimizeSurplusOnly     bool
	Objective               Objective
	CostAllocationBonus     float64
	MinUtilization          *float64
	ReallocationLimitFactor float64
}

// Validate checks value ranges. Flag contradictions are not errors; Resolve corrects them.
func (p Policy) Validate() error {
	if p.CostAllocationBonus < 0 {
		return fmt.Errorf("cost allocation bonus cannot be negative, got %g", p.CostAllocationBonus)
	}
	if p.MinUtilization != nil && (*p.MinUtilization < 0 || *p.MinUtilization > 1) {
		return fmt.Errorf("min utilization must be within [0, 1], got %g", *p.MinUtilization)
	}
	if p.ReallocationLimitFactor < 0 {
		return fmt.Errorf("reallocation limit factor cannot be negative, got %g", p.ReallocationLimitFactor)
	}
	return nil
}

// Effective is the policy the model builder actually uses
type Effective struct {
	FulfillOrders       bool
	OptimizeSurplusOnly bool
	Objective           Objective
	CostAllocationBonus float64
	MinUtilization      *float64
}

// Mode returns the operating mode the flags collapse to
func (e Effective) Mode() Mode {
	if e.FulfillOrders {
		return OrdersThenSurplus
	}
	return TotalStock
}

// Correction records one flag that Resolve changed
type Correction struct {
	Field  string `json:"field"`
	From   bool   `json:"from"`
	To     bool   `json:"to"`
	Reason string `json:"reason"`
}

func (c Correction) String() string {
	return fmt.Sprintf("%s forced from %t to %t: %s", c.Field, c.From, c.To, c.Reason)
}

// Resolve applies the flag validity rules: surplus-only is forced on whenever
// orders are fulfilled, and forced off when they are not.
func Resolve(p Policy) (Effective, []Correction) {
	eff := Effective{
		FulfillOrders:       p.FulfillOrders,
		OptimizeSurplusOnly: p.OptimizeSurplusOnly,
		Objective:           p.Objective,
		CostAllocationBonus: p.CostAllocationBonus,
		MinUtilization:      p.MinUtilization,
	}

	var corrections []Correction
	switch {
	case p.FulfillOrders && !p.OptimizeSurplusOnly:
		eff.OptimizeSurplusOnly = true
		corrections = append(corrections, Correction{
			Field:  "optimize_surplus_only",
			From:   false,
			To:     true,
			Reason: "orders are fulfilled first, so only the surplus may be optimized",
		})
	case !p.FulfillOrders && p.OptimizeSurplusOnly:
		eff.OptimizeSurplusOnly = false
		corrections = append(corrections, Correction{
			Field:  "optimize_surplus_only",
			From:   true,
			To:     false,
			Reason: "without order fulfillment the surplus equals the total capacity",
		})
	}

	return eff, corrections
}
