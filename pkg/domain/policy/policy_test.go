package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name            string
		in              Policy
		wantSurplusOnly bool
		wantMode        Mode
		wantCorrections int
	}{
		{"orders forces surplus only", Policy{FulfillOrders: true, OptimizeSurplusOnly: false}, true, OrdersThenSurplus, 1},
		{"orders with surplus only", Policy{FulfillOrders: true, OptimizeSurplusOnly: true}, true, OrdersThenSurplus, 0},
		{"no orders clears surplus only", Policy{FulfillOrders: false, OptimizeSurplusOnly: true}, false, TotalStock, 1},
		{"total stock", Policy{}, false, TotalStock, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff, corrections := Resolve(tt.in)
			assert.Equal(t, tt.wantSurplusOnly, eff.OptimizeSurplusOnly)
			assert.Equal(t, tt.wantMode, eff.Mode())
			assert.Len(t, corrections, tt.wantCorrections)
			for _, c := range corrections {
				assert.Equal(t, "optimize_surplus_only", c.Field)
				assert.NotEqual(t, c.From, c.To)
			}
		})
	}
}

func TestResolve_KeepsObjectiveSettings(t *testing.T) {
	eff, _ := Resolve(Policy{
		Objective:           MinimizeCost,
		CostAllocationBonus: 150,
		MinUtilization:      ptr.To(0.8),
	})
	assert.Equal(t, MinimizeCost, eff.Objective)
	assert.Equal(t, 150.0, eff.CostAllocationBonus)
	require.NotNil(t, eff.MinUtilization)
	assert.Equal(t, 0.8, *eff.MinUtilization)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Policy{CostAllocationBonus: DefaultCostAllocationBonus}.Validate())
	assert.Error(t, Policy{CostAllocationBonus: -1}.Validate())
	assert.Error(t, Policy{MinUtilization: ptr.To(1.5)}.Validate())
	assert.Error(t, Policy{ReallocationLimitFactor: -0.1}.Validate())
}

func TestParseObjective(t *testing.T) {
	o, err := ParseObjective("minimize_cost")
	require.NoError(t, err)
	assert.Equal(t, MinimizeCost, o)

	o, err = ParseObjective("")
	require.NoError(t, err)
	assert.Equal(t, MaximizeMargin, o)

	_, err = ParseObjective("maximize_profit")
	assert.Error(t, err)
}
