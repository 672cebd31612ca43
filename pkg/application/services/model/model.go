// Package model builds the allocation linear program and reads solved values
// back into allocation decisions.
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/policy"
)

// VarKind tells order variables from surplus variables
type VarKind int

const (
	OrderVar VarKind = iota
	SurplusVar
)

// String method for VarKind enum
func (k VarKind) String() string {
	switch k {
	case OrderVar:
		return "order"
	case SurplusVar:
		return "surplus"
	default:
		return "unknown"
	}
}

// Variable is one continuous decision variable in [Lower, Upper]
type Variable struct {
	Index     int
	Name      string
	Kind      VarKind
	Item      entities.ItemID
	SKU       entities.SKUCode
	Class     string
	Lower     float64
	Upper     float64
	Objective float64
}

// Sense is the direction of a constraint row
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
)

// String method for Sense enum
func (s Sense) String() string {
	if s == GreaterEqual {
		return ">="
	}
	return "<="
}

// ConstraintKind names the family a row belongs to
type ConstraintKind int

const (
	OrderBoundRow ConstraintKind = iota
	ClassOrdersRow
	ClassPoolRow
	DemandCeilingRow
	MinUtilizationRow
)

// String method for ConstraintKind enum
func (k ConstraintKind) String() string {
	switch k {
	case OrderBoundRow:
		return "order_bound"
	case ClassOrdersRow:
		return "class_orders"
	case ClassPoolRow:
		return "class_pool"
	case DemandCeilingRow:
		return "demand_ceiling"
	case MinUtilizationRow:
		return "min_utilization"
	default:
		return "unknown"
	}
}

// Term is one coefficient of a constraint row
type Term struct {
	Var  int
	Coef float64
}

// Constraint is one linear row: Σ coef·x (sense) RHS
type Constraint struct {
	Name  string
	Kind  ConstraintKind
	Terms []Term
	Sense Sense
	RHS   float64
}

// Direction is the optimization direction of the objective
type Direction int

const (
	Maximize Direction = iota
	Minimize
)

// String method for Direction enum
func (d Direction) String() string {
	if d == Minimize {
		return "minimize"
	}
	return "maximize"
}

// ClassPool records how a class capacity is split between orders and surplus
type ClassPool struct {
	Class         string
	Capacity      float64
	OrderReserved float64
	Available     float64
}

// Model is the built linear program. It is a plain value owned by the caller.
type Model struct {
	Variables   []Variable
	Constraints []Constraint
	Direction   Direction
	Policy      policy.Effective
	Pools       map[string]ClassPool
}

// Empty reports whether the model has no variables
func (m *Model) Empty() bool {
	return len(m.Variables) == 0
}

// ObjectiveValue evaluates the objective at x
func (m *Model) ObjectiveValue(x []float64) float64 {
	var total float64
	for i, v := range m.Variables {
		if i < len(x) {
			total += v.Objective * x[i]
		}
	}
	return total
}

// Summary counts the model parts
type Summary struct {
	Variables        int
	OrderVariables   int
	SurplusVariables int
	Constraints      map[ConstraintKind]int
	Classes          int
}

// Summary returns counts per variable and constraint family
func (m *Model) Summary() Summary {
	s := Summary{Variables: len(m.Variables), Constraints: map[ConstraintKind]int{}, Classes: len(m.Pools)}
	for _, v := range m.Variables {
		if v.Kind == OrderVar {
			s.OrderVariables++
		} else {
			s.SurplusVariables++
		}
	}
	for _, c := range m.Constraints {
		s.Constraints[c.Kind]++
	}
	return s
}

// String renders the model in a readable LP-like form
func (m *Model) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n ", m.Direction)
	if m.Empty() {
		b.WriteString(" 0\n")
	}
	for i, v := range m.Variables {
		if i > 0 {
			b.WriteString(" +")
		}
		fmt.Fprintf(&b, " %g %s", v.Objective, v.Name)
	}
	b.WriteString("\nsubject to\n")
	for _, c := range m.Constraints {
		fmt.Fprintf(&b, "  %s:", c.Name)
		for i, t := range c.Terms {
			if i > 0 {
				b.WriteString(" +")
			}
			fmt.Fprintf(&b, " %g %s", t.Coef, m.Variables[t.Var].Name)
		}
		fmt.Fprintf(&b, " %s %g\n", c.Sense, c.RHS)
	}
	b.WriteString("bounds\n")
	for _, v := range m.Variables {
		fmt.Fprintf(&b, "  %g <= %s <= %g\n", v.Lower, v.Name, v.Upper)
	}
	return b.String()
}

// PoolNames returns the class names with a pool, sorted
func (m *Model) PoolNames() []string {
	names := make([]string, 0, len(m.Pools))
	for name := range m.Pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
