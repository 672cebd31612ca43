package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/repositories"
)

// SalesRepository provides in-memory historical sales storage
type SalesRepository struct {
	records []entities.SalesRecord
}

// NewSalesRepository creates a new in-memory sales repository
func NewSalesRepository(records ...entities.SalesRecord) *SalesRepository {
	r := &SalesRepository{}
	r.LoadSales(records)
	return r
}

// Verify interface compliance
var _ repositories.SalesHistoryRepository = (*SalesRepository)(nil)

// LoadSales adds records, keeping them ordered by timestamp
func (r *SalesRepository) LoadSales(records []entities.SalesRecord) {
	r.records = append(r.records, records...)
	sort.SliceStable(r.records, func(i, j int) bool {
		return r.records[i].Timestamp.Before(r.records[j].Timestamp)
	})
}

// GetSales returns the records with from <= timestamp < to
func (r *SalesRepository) GetSales(ctx context.Context, from, to time.Time) ([]entities.SalesRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []entities.SalesRecord
	for _, rec := range r.records {
		if !rec.Timestamp.Before(from) && rec.Timestamp.Before(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Close is a no-op
func (r *SalesRepository) Close() error {
	return nil
}
