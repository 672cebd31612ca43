package memory

import (
	"sort"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/repositories"
)

// ProductionRepository provides in-memory production storage
type ProductionRepository struct {
	rows       []entities.ClassProduction
	capacities map[string]float64
}

// NewProductionRepository creates a new in-memory production repository
func NewProductionRepository() *ProductionRepository {
	return &ProductionRepository{
		rows:       []entities.ClassProduction{},
		capacities: make(map[string]float64),
	}
}

// Verify interface compliance
var _ repositories.ProductionRepository = (*ProductionRepository)(nil)

// LoadProduction loads production rows. Rows of the same class are summed.
func (r *ProductionRepository) LoadProduction(rows []*entities.ClassProduction) error {
	for _, row := range rows {
		r.AddProduction(*row)
	}
	return nil
}

// AddProduction adds one production row
func (r *ProductionRepository) AddProduction(row entities.ClassProduction) {
	r.rows = append(r.rows, row)
	r.capacities[row.Class] += row.Quantity
}

// GetCapacity returns the total production of a class
func (r *ProductionRepository) GetCapacity(class string) (float64, bool) {
	capacity, exists := r.capacities[class]
	return capacity, exists
}

// GetAllProduction returns one row per class with summed quantities, sorted by class
func (r *ProductionRepository) GetAllProduction() ([]*entities.ClassProduction, error) {
	rows := make([]*entities.ClassProduction, 0, len(r.capacities))
	for class, quantity := range r.capacities {
		rows = append(rows, &entities.ClassProduction{Class: class, Quantity: quantity})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Class < rows[j].Class
	})
	return rows, nil
}
