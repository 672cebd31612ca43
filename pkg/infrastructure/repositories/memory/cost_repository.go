package memory

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/repositories"
)

// CostRepository provides in-memory unit cost storage
type CostRepository struct {
	costs    []entities.CostRecord
	costsMap map[entities.ItemID]int
}

// NewCostRepository creates a new in-memory cost repository
func NewCostRepository(expectedItems int) *CostRepository {
	return &CostRepository{
		costs:    make([]entities.CostRecord, 0, expectedItems),
		costsMap: make(map[entities.ItemID]int, expectedItems),
	}
}

// Verify interface compliance
var _ repositories.CostRepository = (*CostRepository)(nil)

// LoadCosts loads cost records into the repository
func (r *CostRepository) LoadCosts(costs []*entities.CostRecord) error {
	for _, c := range costs {
		r.AddCost(*c)
	}
	return nil
}

// AddCost adds a cost record. A later record for the same item replaces the earlier one.
func (r *CostRepository) AddCost(c entities.CostRecord) {
	id := c.ItemID()
	if index, exists := r.costsMap[id]; exists {
		r.costs[index] = c
		return
	}
	r.costsMap[id] = len(r.costs)
	r.costs = append(r.costs, c)
}

// GetCost returns the unit cost of an item
func (r *CostRepository) GetCost(id entities.ItemID) (decimal.Decimal, bool) {
	index, exists := r.costsMap[id]
	if !exists {
		return decimal.Zero, false
	}
	return r.costs[index].UnitCost, true
}

// GetAllCosts returns all cost records sorted by item id
func (r *CostRepository) GetAllCosts() ([]*entities.CostRecord, error) {
	costs := make([]*entities.CostRecord, 0, len(r.costs))
	for i := range r.costs {
		costs = append(costs, &r.costs[i])
	}
	sort.Slice(costs, func(i, j int) bool {
		return costs[i].ItemID().Less(costs[j].ItemID())
	})
	return costs, nil
}
