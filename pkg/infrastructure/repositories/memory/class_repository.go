package memory

import (
	"sort"
	"strings"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/repositories"
)

// ClassRepository provides in-memory SKU to class mapping
type ClassRepository struct {
	classes map[entities.SKUCode]string
}

// NewClassRepository creates a new in-memory class repository
func NewClassRepository() *ClassRepository {
	return &ClassRepository{
		classes: make(map[entities.SKUCode]string),
	}
}

// Verify interface compliance
var _ repositories.ClassRepository = (*ClassRepository)(nil)

// LoadMappings loads SKU to class mappings. A later mapping of the same SKU wins.
func (r *ClassRepository) LoadMappings(mappings []*entities.ClassMapping) error {
	for _, m := range mappings {
		class := strings.TrimSpace(m.Class)
		if class == "" {
			continue
		}
		r.classes[m.SKU] = class
	}
	return nil
}

// GetClass returns the class of a SKU, or entities.UnclassifiedClass when unmapped
func (r *ClassRepository) GetClass(sku entities.SKUCode) string {
	if class, exists := r.classes[sku]; exists {
		return class
	}
	return entities.UnclassifiedClass
}

// GetAllMappings returns all mappings sorted by SKU
func (r *ClassRepository) GetAllMappings() ([]*entities.ClassMapping, error) {
	mappings := make([]*entities.ClassMapping, 0, len(r.classes))
	for sku, class := range r.classes {
		mappings = append(mappings, &entities.ClassMapping{SKU: sku, Class: class})
	}
	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].SKU < mappings[j].SKU
	})
	return mappings, nil
}
