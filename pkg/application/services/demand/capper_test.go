package demand

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fixtures "github.com/vsinha/mixopt/pkg/application/services/testing"
	"github.com/vsinha/mixopt/pkg/domain/entities"
)

var reference = time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestPeriodStart(t *testing.T) {
	ts := time.Date(2024, 5, 15, 17, 45, 0, 0, time.UTC) // Wednesday
	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), Daily.PeriodStart(ts))
	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), Weekly.PeriodStart(ts))
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Monthly.PeriodStart(ts))

	sunday := time.Date(2024, 5, 19, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), Weekly.PeriodStart(sunday))
}

func TestCompute_PercentileMonthly(t *testing.T) {
	records := []entities.SalesRecord{
		{SKU: 10, Timestamp: at(2024, 2, 20), Quantity: 60},
		{SKU: 10, Timestamp: at(2024, 2, 25), Quantity: 40},
		{SKU: 10, Timestamp: at(2024, 3, 5), Quantity: 200},
		{SKU: 10, Timestamp: at(2024, 4, 1), Quantity: 300},
		{SKU: 10, Timestamp: at(2024, 2, 1), Quantity: 5000}, // before the window
		{SKU: 10, Timestamp: at(2024, 5, 15), Quantity: 5000}, // run date is excluded
	}

	opts := DefaultOptions(reference)
	ceilings := Compute(context.Background(), records, opts)

	ceiling, ok := ceilings.Get(10)
	require.True(t, ok)
	// p90 of [100 200 300] interpolates to 270
	assert.InDelta(t, 270*1.5, ceiling, 1e-9)
	assert.Equal(t, 3, ceilings[10].Periods)
}

func TestCompute_PercentileMedian(t *testing.T) {
	records := []entities.SalesRecord{
		{SKU: 10, Timestamp: at(2024, 3, 5), Quantity: 100},
		{SKU: 10, Timestamp: at(2024, 4, 5), Quantity: 200},
	}
	opts := DefaultOptions(reference)
	opts.Percentile = 50
	opts.ExpansionFactor = 1

	ceiling, ok := Compute(context.Background(), records, opts).Get(10)
	require.True(t, ok)
	assert.InDelta(t, 100, ceiling, 1e-9)
}

func TestCompute_MaximumWeekly(t *testing.T) {
	records := []entities.SalesRecord{
		{SKU: 20, Timestamp: at(2024, 5, 6), Quantity: 10},  // Monday
		{SKU: 20, Timestamp: at(2024, 5, 12), Quantity: 15}, // Sunday, same week
		{SKU: 20, Timestamp: at(2024, 5, 13), Quantity: 20}, // next week
	}
	opts := DefaultOptions(reference)
	opts.Granularity = Weekly
	opts.Estimator = Maximum

	ceilings := Compute(context.Background(), records, opts)
	ceiling, ok := ceilings.Get(20)
	require.True(t, ok)
	assert.InDelta(t, 25*1.2, ceiling, 1e-9)
	assert.Equal(t, 2, ceilings[20].Periods)
}

func TestCompute_NeverNegativeAndNoHistory(t *testing.T) {
	records := []entities.SalesRecord{
		{SKU: 30, Timestamp: at(2024, 4, 2), Quantity: -40}, // returns
	}
	ceilings := Compute(context.Background(), records, DefaultOptions(reference))

	ceiling, ok := ceilings.Get(30)
	require.True(t, ok)
	assert.Equal(t, 0.0, ceiling)

	_, ok = ceilings.Get(31)
	assert.False(t, ok)
}

func TestCompute_FixtureHistory(t *testing.T) {
	records := fixtures.SalesHistory(40, reference, 120, 80)
	opts := DefaultOptions(reference)
	opts.Estimator = Maximum
	opts.MaxFactor = 1

	ceiling, ok := Compute(context.Background(), records, opts).Get(40)
	require.True(t, ok)
	assert.Equal(t, 120.0, ceiling)
}

type failingRepo struct{}

func (failingRepo) GetSales(context.Context, time.Time, time.Time) ([]entities.SalesRecord, error) {
	return nil, errors.New("connection refused")
}

func (failingRepo) Close() error { return nil }

func TestLoad_DegradesOnError(t *testing.T) {
	ceilings, warnings := Load(context.Background(), failingRepo{}, DefaultOptions(reference))
	assert.Empty(t, ceilings)
	require.Len(t, warnings, 1)
	assert.Equal(t, entities.DegradedInputWarning, warnings[0].Kind)

	ceilings, warnings = Load(context.Background(), nil, DefaultOptions(reference))
	assert.Empty(t, ceilings)
	assert.Len(t, warnings, 1)
}

func TestParse(t *testing.T) {
	g, err := ParseGranularity("w")
	require.NoError(t, err)
	assert.Equal(t, Weekly, g)
	_, err = ParseGranularity("Q")
	assert.Error(t, err)

	e, err := ParseEstimator("maximum")
	require.NoError(t, err)
	assert.Equal(t, Maximum, e)
	_, err = ParseEstimator("mean")
	assert.Error(t, err)
}
