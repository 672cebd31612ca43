package csv

import (
	"context"
	"time"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/repositories"
)

// SalesRepository serves historical sales from a CSV file
type SalesRepository struct {
	loader   *Loader
	filename string
}

// NewSalesRepository creates a sales repository reading filename on demand
func NewSalesRepository(loader *Loader, filename string) *SalesRepository {
	return &SalesRepository{loader: loader, filename: filename}
}

// Verify interface compliance
var _ repositories.SalesHistoryRepository = (*SalesRepository)(nil)

// GetSales loads the file and keeps the records with from <= timestamp < to
func (r *SalesRepository) GetSales(ctx context.Context, from, to time.Time) ([]entities.SalesRecord, error) {
	records, err := r.loader.LoadSales(r.filename)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filtered := make([]entities.SalesRecord, 0, len(records))
	for _, rec := range records {
		if rec.Timestamp.Before(from) || !rec.Timestamp.Before(to) {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered, nil
}

// Close is a no-op for file sources
func (r *SalesRepository) Close() error {
	return nil
}
