package repositories

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/mixopt/pkg/domain/entities"
)

// CostRepository provides unit costs keyed by item
type CostRepository interface {
	GetCost(id entities.ItemID) (decimal.Decimal, bool)
	// GetAllCosts returns one record per item, sorted by item id
	GetAllCosts() ([]*entities.CostRecord, error)
	LoadCosts(costs []*entities.CostRecord) error
}
