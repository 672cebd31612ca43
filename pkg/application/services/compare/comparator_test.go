package compare

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fixtures "github.com/vsinha/mixopt/pkg/application/services/testing"
	"github.com/vsinha/mixopt/pkg/domain/entities"
)

func TestBaseline_UniformMeans(t *testing.T) {
	baselines := Baseline(fixtures.SimpleReallocation().Table())

	require.Len(t, baselines, 1)
	b := baselines[0]
	assert.Equal(t, "GRADE_A", b.Class)
	assert.InDelta(t, 2.5, b.MeanMargin, 1e-9)
	assert.InDelta(t, 10, b.MeanCost, 1e-9)
	assert.True(t, b.Margin.Equal(decimal.NewFromInt(3750)), b.Margin.String())
	assert.True(t, b.Cost.Equal(decimal.NewFromInt(15000)), b.Cost.String())
}

func TestCompare_GainOverBaseline(t *testing.T) {
	table := fixtures.SimpleReallocation().Table()
	decisions := []entities.AllocationDecision{
		entities.NewAllocationDecision(fixtures.ItemID(102, "CX 1 BJ 30 UN"), "GRADE_A",
			entities.DecisionSurplus, 1500, decimal.NewFromInt(13), decimal.NewFromInt(10)),
	}

	c := Compare(context.Background(), table, decisions)

	assert.Equal(t, "3750", c.MarginBaseline.String())
	assert.Equal(t, "4500", c.MarginOptimized.String())
	assert.Equal(t, "750", c.GainAbsolute.String())
	assert.Equal(t, "20", c.GainPercentage.String())
	assert.Equal(t, "15000", c.CostBaseline.String())
	assert.Equal(t, "15000", c.CostOptimized.String())
	assert.True(t, c.ReductionAbsolute.IsZero())
	assert.True(t, c.ReductionPercentage.IsZero())
}

func TestCompare_ZeroBaseline(t *testing.T) {
	table := fixtures.NewScenario().WithProduction("GRADE_A", 100).Table()

	c := Compare(context.Background(), table, nil)

	assert.True(t, c.MarginBaseline.IsZero())
	assert.True(t, c.GainPercentage.IsZero())
	assert.True(t, c.ReductionPercentage.IsZero())
}

func TestBaseline_SkipsClassesWithoutUnits(t *testing.T) {
	table := fixtures.TwoClasses().WithProduction("EMPTY", 500).Table()

	baselines := Baseline(table)
	require.Len(t, baselines, 2)
	assert.Equal(t, "LARGE", baselines[0].Class)
	assert.Equal(t, "SMALL", baselines[1].Class)
}
