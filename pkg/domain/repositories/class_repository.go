package repositories

import "github.com/vsinha/mixopt/pkg/domain/entities"

// ClassRepository provides the SKU to product class mapping
type ClassRepository interface {
	// GetClass returns the class of a SKU, or entities.UnclassifiedClass when unmapped
	GetClass(sku entities.SKUCode) string
	GetAllMappings() ([]*entities.ClassMapping, error)
	LoadMappings(mappings []*entities.ClassMapping) error
}
