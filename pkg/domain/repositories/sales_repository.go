package repositories

import (
	"context"
	"time"

	"github.com/vsinha/mixopt/pkg/domain/entities"
)

// SalesHistoryRepository provides historical sales transactions
type SalesHistoryRepository interface {
	// GetSales returns the records with from <= timestamp < to
	GetSales(ctx context.Context, from, to time.Time) ([]entities.SalesRecord, error)
	Close() error
}
