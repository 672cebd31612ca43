package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mixopt/pkg/application/services/reconcile"
	fixtures "github.com/vsinha/mixopt/pkg/application/services/testing"
	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/logging"
)

func testContext() context.Context {
	return logr.NewContext(context.Background(), logging.NewTestLogger())
}

func TestReconcile_SimpleReallocation(t *testing.T) {
	table, err := reconcile.NewReconciler().Reconcile(testContext(), fixtures.SimpleReallocation().Sources())
	require.NoError(t, err)

	units := table.Units()
	require.Len(t, units, 2)
	for _, u := range units {
		assert.Equal(t, "GRADE_A", u.Class)
		assert.Equal(t, 1500.0, u.ClassCapacity)
		assert.Equal(t, 0.0, u.OrderedQuantity)
		assert.True(t, u.UnitMargin.IsPositive())
		assert.Equal(t, entities.PriceExact, u.PriceSource)
	}
	assert.True(t, units[0].UnitMargin.Equal(decimal.NewFromInt(2)))
	assert.True(t, units[1].UnitMargin.Equal(decimal.NewFromInt(3)))

	classes := table.Classes()
	require.Len(t, classes, 1)
	assert.Equal(t, 1500.0, classes[0].TotalCapacity)
	assert.Len(t, classes[0].Members, 2)
	assert.Empty(t, table.Orders())
}

func TestReconcile_OrdersUseMeanEconomics(t *testing.T) {
	scenario := fixtures.NewScenario().
		WithProduction("GRADE_A", 100).
		WithUnit(10, "CX 1 BJ 30 UN", "GRADE_A", "12", "10").
		WithUnit(10, "CX 12 BJ 30 UN", "GRADE_A", "16", "12").
		WithOrder("C1", 10, 40).
		WithOrder("C2", 10, 10)

	table, err := reconcile.NewReconciler().Reconcile(testContext(), scenario.Sources())
	require.NoError(t, err)

	order, ok := table.Order(10)
	require.True(t, ok)
	assert.Equal(t, 50.0, order.TotalQuantity)
	assert.Equal(t, 2, order.Customers)
	assert.Equal(t, "GRADE_A", order.Class)
	assert.True(t, order.UnitPrice.Equal(decimal.NewFromInt(14)))
	assert.True(t, order.UnitCost.Equal(decimal.NewFromInt(11)))
	assert.True(t, order.UnitMargin.Equal(decimal.NewFromInt(3)))

	for _, u := range table.Units() {
		assert.Equal(t, 50.0, u.OrderedQuantity)
	}
}

func TestReconcile_DropsNonPositiveRows(t *testing.T) {
	scenario := fixtures.NewScenario().
		WithProduction("GRADE_A", 100).
		WithUnit(1, "CX 1 BJ 30 UN", "GRADE_A", "12", "10").
		WithUnit(2, "CX 1 BJ 30 UN", "GRADE_A", "0", "10").
		WithUnit(3, "CX 1 BJ 30 UN", "GRADE_A", "12", "0").
		WithUnit(4, "CX 1 BJ 30 UN", "GRADE_A", "9", "10").
		WithUnit(5, "CX 1 BJ 30 UN", "GRADE_A", "10", "10")

	table, err := reconcile.NewReconciler().Reconcile(testContext(), scenario.Sources())
	require.NoError(t, err)

	require.Len(t, table.Units(), 1)
	assert.Equal(t, entities.SKUCode(1), table.Units()[0].SKU)
	assert.Equal(t, 5, table.Stats.InputItems)
	assert.Equal(t, 1, table.Stats.DroppedPrice)
	assert.Equal(t, 1, table.Stats.DroppedCost)
	assert.Equal(t, 2, table.Stats.DroppedMargin)
	assert.Equal(t, 4, table.Stats.Dropped())

	var dataQuality int
	for _, w := range table.Warnings {
		if w.Kind == entities.DataQualityWarning {
			dataQuality += w.Count
		}
	}
	assert.Equal(t, 4, dataQuality)
}

func TestReconcile_PriceFallback(t *testing.T) {
	scenario := fixtures.NewScenario().
		WithProduction("GRADE_A", 100).
		WithUnit(1, "CX 1 BJ 30 UN", "GRADE_A", "12", "10").
		WithUnit(1, "CX 12 BJ 30 UN", "GRADE_A", "", "10").
		WithUnit(2, "CX 1 BJ 30 UN", "GRADE_A", "", "10")

	table, err := reconcile.NewReconciler().Reconcile(testContext(), scenario.Sources())
	require.NoError(t, err)

	assert.Equal(t, 1, table.Stats.PriceSources[entities.PriceExact])
	assert.Equal(t, 1, table.Stats.PriceSources[entities.PriceSKUMean])
	assert.Equal(t, 1, table.Stats.PriceSources[entities.PriceGlobalMean])
}

func TestReconcile_UnclassifiedAndMissingCapacity(t *testing.T) {
	scenario := fixtures.SimpleReallocation().
		WithUnit(900, "CX 1 BJ 30 UN", "GRADE_Z", "12", "10")

	table, err := reconcile.NewReconciler().Reconcile(testContext(), scenario.Sources())
	require.NoError(t, err)

	unit, ok := table.Unit(fixtures.ItemID(900, "CX 1 BJ 30 UN"))
	require.True(t, ok)
	assert.Equal(t, 0.0, unit.ClassCapacity)
	assert.Equal(t, 0.0, table.ClassCapacity("GRADE_Z"))
}

func TestReconcile_MandatoryTables(t *testing.T) {
	src := fixtures.SimpleReallocation().Sources()
	src.Costs = nil
	_, err := reconcile.NewReconciler().Reconcile(testContext(), src)
	var cfgErr *entities.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "costs", cfgErr.Source)

	src = fixtures.SimpleReallocation().Sources()
	src.Production = nil
	_, err = reconcile.NewReconciler().Reconcile(testContext(), src)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "production", cfgErr.Source)
}

func TestReconcile_OptionalTablesDegrade(t *testing.T) {
	table, err := reconcile.NewReconciler().Reconcile(testContext(),
		fixtures.OrderProtection().WithoutPrices().WithoutOrders().Sources())
	require.NoError(t, err)

	assert.True(t, table.Empty())
	assert.Empty(t, table.Orders())

	var degraded []string
	for _, w := range table.Warnings {
		if w.Kind == entities.DegradedInputWarning {
			degraded = append(degraded, w.Source)
		}
	}
	assert.ElementsMatch(t, []string{"prices", "orders"}, degraded)
}

func TestReconcile_UnmodelledOrders(t *testing.T) {
	scenario := fixtures.SimpleReallocation().WithOrder("C1", 777, 50)

	table, err := reconcile.NewReconciler().Reconcile(testContext(), scenario.Sources())
	require.NoError(t, err)

	assert.Equal(t, 1, table.Stats.UnmodelledOrders)
	_, ok := table.Order(777)
	assert.False(t, ok)
}
