package memory

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/repositories"
)

// PriceRepository provides in-memory price storage with fallback resolution
type PriceRepository struct {
	prices    []entities.PriceRecord
	exact     map[entities.ItemID]decimal.Decimal
	skuTotals map[entities.SKUCode]priceTotal
	global    priceTotal
}

type priceTotal struct {
	sum   decimal.Decimal
	count int64
}

func (t priceTotal) mean() (decimal.Decimal, bool) {
	if t.count == 0 {
		return decimal.Zero, false
	}
	return t.sum.Div(decimal.NewFromInt(t.count)), true
}

// NewPriceRepository creates a new in-memory price repository
func NewPriceRepository() *PriceRepository {
	return &PriceRepository{
		exact:     make(map[entities.ItemID]decimal.Decimal),
		skuTotals: make(map[entities.SKUCode]priceTotal),
	}
}

// Verify interface compliance
var _ repositories.PriceRepository = (*PriceRepository)(nil)

// LoadPrices loads price records into the repository
func (r *PriceRepository) LoadPrices(prices []*entities.PriceRecord) error {
	for _, p := range prices {
		r.AddPrice(*p)
	}
	return nil
}

// AddPrice adds a price record. Only positive prices feed the fallback means.
func (r *PriceRepository) AddPrice(p entities.PriceRecord) {
	r.prices = append(r.prices, p)
	r.exact[p.ItemID()] = p.Price
	if !p.Price.IsPositive() {
		return
	}
	t := r.skuTotals[p.SKU]
	t.sum = t.sum.Add(p.Price)
	t.count++
	r.skuTotals[p.SKU] = t
	r.global.sum = r.global.sum.Add(p.Price)
	r.global.count++
}

// ResolvePrice returns the exact price of the item, else the mean price of its
// SKU, else the global mean. ok is false when every tier is empty.
func (r *PriceRepository) ResolvePrice(id entities.ItemID) (decimal.Decimal, entities.PriceSource, bool) {
	if price, exists := r.exact[id]; exists {
		return price, entities.PriceExact, true
	}
	if price, ok := r.skuTotals[id.SKU].mean(); ok {
		return price, entities.PriceSKUMean, true
	}
	if price, ok := r.global.mean(); ok {
		return price, entities.PriceGlobalMean, true
	}
	return decimal.Zero, entities.PriceExact, false
}

// GetAllPrices returns all price records in load order
func (r *PriceRepository) GetAllPrices() ([]*entities.PriceRecord, error) {
	prices := make([]*entities.PriceRecord, 0, len(r.prices))
	for i := range r.prices {
		prices = append(prices, &r.prices[i])
	}
	return prices, nil
}
