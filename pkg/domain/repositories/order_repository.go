package repositories

import "github.com/vsinha/mixopt/pkg/domain/entities"

// OrderRepository provides customer orders aggregated per SKU
type OrderRepository interface {
	GetOrders() ([]*entities.CustomerOrder, error)
	// GetAggregates returns one aggregate per SKU, sorted by SKU. Only SKU,
	// TotalQuantity and Customers are populated.
	GetAggregates() ([]*entities.OrderAggregate, error)
	LoadOrders(orders []*entities.CustomerOrder) error
}
