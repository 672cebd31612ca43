package services

import (
	"fmt"
	"sort"

	"github.com/vsinha/mixopt/pkg/domain/entities"
)

// InputValidator checks the upstream tables for integrity problems before a run
type InputValidator struct{}

// NewInputValidator creates a new input validator
func NewInputValidator() *InputValidator {
	return &InputValidator{}
}

// InputSet holds the raw rows of the upstream tables. Nil slices mean the table is absent.
type InputSet struct {
	Production []*entities.ClassProduction
	Classes    []*entities.ClassMapping
	Prices     []*entities.PriceRecord
	Costs      []*entities.CostRecord
	Orders     []*entities.CustomerOrder
}

// ValidationResult contains the results of input validation. Errors make a run
// impossible; Warnings name rows the reconciler will drop or default.
type ValidationResult struct {
	DuplicateCosts      []entities.ItemID
	DuplicatePrices     []entities.ItemID
	ConflictingClasses  []entities.SKUCode
	UnmappedSKUs        []entities.SKUCode
	ClassesWithoutSKUs  []string
	ClassesWithoutStock []string
	OrdersWithoutItems  []entities.SKUCode
	NonPositiveMargins  []entities.ItemID
	Errors              []string
	Warnings            []string
}

// Valid reports whether no blocking error was found
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ValidateInputs performs the integrity checks on a set of upstream rows
func (v *InputValidator) ValidateInputs(in InputSet) *ValidationResult {
	result := &ValidationResult{
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}

	if in.Costs == nil {
		result.Errors = append(result.Errors, "cost table is mandatory")
	}
	if in.Production == nil {
		result.Errors = append(result.Errors, "production table is mandatory")
	}

	result.DuplicateCosts = v.detectDuplicateCosts(in.Costs)
	result.DuplicatePrices = v.detectDuplicatePrices(in.Prices)
	result.ConflictingClasses = v.detectConflictingClasses(in.Classes)
	result.UnmappedSKUs, result.ClassesWithoutSKUs, result.ClassesWithoutStock = v.detectClassGaps(in)
	result.OrdersWithoutItems = v.detectOrphanedOrders(in.Orders, in.Costs)
	result.NonPositiveMargins = v.detectNonPositiveMargins(in.Prices, in.Costs)

	if len(result.ConflictingClasses) > 0 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("%d SKUs are mapped to more than one class: %v", len(result.ConflictingClasses), result.ConflictingClasses))
	}
	if len(result.DuplicateCosts) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d items have more than one cost row, the last one wins", len(result.DuplicateCosts)))
	}
	if len(result.DuplicatePrices) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d items have more than one price row, the last one wins", len(result.DuplicatePrices)))
	}
	if len(result.UnmappedSKUs) > 0 && in.Classes != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d SKUs have no class and fall into %s", len(result.UnmappedSKUs), entities.UnclassifiedClass))
	}
	if len(result.ClassesWithoutStock) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("classes without production receive no allocation: %v", result.ClassesWithoutStock))
	}
	if len(result.ClassesWithoutSKUs) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("production of classes without SKUs is never allocated: %v", result.ClassesWithoutSKUs))
	}
	if len(result.OrdersWithoutItems) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d ordered SKUs have no cost row and are not modelled", len(result.OrdersWithoutItems)))
	}
	if len(result.NonPositiveMargins) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d items have a non-positive margin and are dropped", len(result.NonPositiveMargins)))
	}

	return result
}

func (v *InputValidator) detectDuplicateCosts(costs []*entities.CostRecord) []entities.ItemID {
	ids := make([]entities.ItemID, 0, len(costs))
	for _, c := range costs {
		ids = append(ids, c.ItemID())
	}
	return duplicates(ids)
}

func (v *InputValidator) detectDuplicatePrices(prices []*entities.PriceRecord) []entities.ItemID {
	ids := make([]entities.ItemID, 0, len(prices))
	for _, p := range prices {
		ids = append(ids, p.ItemID())
	}
	return duplicates(ids)
}

func duplicates(ids []entities.ItemID) []entities.ItemID {
	seen := make(map[entities.ItemID]int)
	for _, id := range ids {
		seen[id]++
	}
	out := make([]entities.ItemID, 0)
	for id, n := range seen {
		if n > 1 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// detectConflictingClasses finds SKUs mapped to two different classes
func (v *InputValidator) detectConflictingClasses(mappings []*entities.ClassMapping) []entities.SKUCode {
	classOf := make(map[entities.SKUCode]string)
	conflicts := make(map[entities.SKUCode]bool)
	for _, m := range mappings {
		if m.Class == "" {
			continue
		}
		if prev, ok := classOf[m.SKU]; ok && prev != m.Class {
			conflicts[m.SKU] = true
		}
		classOf[m.SKU] = m.Class
	}
	return sortedSKUs(conflicts)
}

// detectClassGaps relates costed SKUs, class mappings and production
func (v *InputValidator) detectClassGaps(in InputSet) ([]entities.SKUCode, []string, []string) {
	classOf := make(map[entities.SKUCode]string)
	for _, m := range in.Classes {
		if m.Class != "" {
			classOf[m.SKU] = m.Class
		}
	}
	stock := make(map[string]float64)
	for _, p := range in.Production {
		stock[p.Class] += p.Quantity
	}

	unmapped := make(map[entities.SKUCode]bool)
	used := make(map[string]bool)
	for _, c := range in.Costs {
		class, ok := classOf[c.SKU]
		if !ok {
			unmapped[c.SKU] = true
			class = entities.UnclassifiedClass
		}
		used[class] = true
	}

	withoutSKUs := make([]string, 0)
	for class, qty := range stock {
		if !used[class] && qty > 0 {
			withoutSKUs = append(withoutSKUs, class)
		}
	}
	withoutStock := make([]string, 0)
	for class := range used {
		if stock[class] <= 0 {
			withoutStock = append(withoutStock, class)
		}
	}
	sort.Strings(withoutSKUs)
	sort.Strings(withoutStock)

	return sortedSKUs(unmapped), withoutSKUs, withoutStock
}

func (v *InputValidator) detectOrphanedOrders(orders []*entities.CustomerOrder, costs []*entities.CostRecord) []entities.SKUCode {
	costed := make(map[entities.SKUCode]bool)
	for _, c := range costs {
		costed[c.SKU] = true
	}
	orphaned := make(map[entities.SKUCode]bool)
	for _, o := range orders {
		if !costed[o.SKU] && o.Quantity > 0 {
			orphaned[o.SKU] = true
		}
	}
	return sortedSKUs(orphaned)
}

// detectNonPositiveMargins compares exact prices with costs of the same item
func (v *InputValidator) detectNonPositiveMargins(prices []*entities.PriceRecord, costs []*entities.CostRecord) []entities.ItemID {
	priceOf := make(map[entities.ItemID]*entities.PriceRecord)
	for _, p := range prices {
		priceOf[p.ItemID()] = p
	}
	seen := make(map[entities.ItemID]bool)
	out := make([]entities.ItemID, 0)
	for _, c := range costs {
		p, ok := priceOf[c.ItemID()]
		if !ok || seen[c.ItemID()] {
			continue
		}
		seen[c.ItemID()] = true
		if !p.Price.Sub(c.UnitCost).IsPositive() {
			out = append(out, c.ItemID())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func sortedSKUs(set map[entities.SKUCode]bool) []entities.SKUCode {
	out := make([]entities.SKUCode, 0, len(set))
	for sku := range set {
		out = append(out, sku)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
