package memory

import (
	"sort"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/repositories"
)

// OrderRepository provides in-memory customer order storage
type OrderRepository struct {
	orders []entities.CustomerOrder
}

// NewOrderRepository creates a new in-memory order repository
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: []entities.CustomerOrder{},
	}
}

// Verify interface compliance
var _ repositories.OrderRepository = (*OrderRepository)(nil)

// LoadOrders loads customer orders into the repository
func (r *OrderRepository) LoadOrders(orders []*entities.CustomerOrder) error {
	for _, order := range orders {
		r.orders = append(r.orders, *order)
	}
	return nil
}

// GetOrders returns all customer orders
func (r *OrderRepository) GetOrders() ([]*entities.CustomerOrder, error) {
	var orders []*entities.CustomerOrder
	for i := range r.orders {
		orders = append(orders, &r.orders[i])
	}
	return orders, nil
}

// GetAggregates sums orders per SKU and counts distinct customers
func (r *OrderRepository) GetAggregates() ([]*entities.OrderAggregate, error) {
	bySKU := make(map[entities.SKUCode]*entities.OrderAggregate)
	customers := make(map[entities.SKUCode]map[string]struct{})

	for _, order := range r.orders {
		agg, exists := bySKU[order.SKU]
		if !exists {
			agg = &entities.OrderAggregate{SKU: order.SKU}
			bySKU[order.SKU] = agg
			customers[order.SKU] = make(map[string]struct{})
		}
		agg.TotalQuantity += order.Quantity
		customers[order.SKU][order.CustomerID] = struct{}{}
	}

	aggregates := make([]*entities.OrderAggregate, 0, len(bySKU))
	for sku, agg := range bySKU {
		agg.Customers = len(customers[sku])
		aggregates = append(aggregates, agg)
	}
	sort.Slice(aggregates, func(i, j int) bool {
		return aggregates[i].SKU < aggregates[j].SKU
	})
	return aggregates, nil
}
