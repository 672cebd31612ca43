package repositories

import "github.com/vsinha/mixopt/pkg/domain/entities"

// ProductionRepository provides access to the daily production by class
type ProductionRepository interface {
	GetCapacity(class string) (float64, bool)
	GetAllProduction() ([]*entities.ClassProduction, error)
	LoadProduction(rows []*entities.ClassProduction) error
}
