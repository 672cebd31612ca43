package repositories

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/mixopt/pkg/domain/entities"
)

// PriceRepository provides unit prices with the three-tier fallback:
// exact item price, mean price of the SKU's packages, global mean price.
type PriceRepository interface {
	ResolvePrice(id entities.ItemID) (decimal.Decimal, entities.PriceSource, bool)
	GetAllPrices() ([]*entities.PriceRecord, error)
	LoadPrices(prices []*entities.PriceRecord) error
}
