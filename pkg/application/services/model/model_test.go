package model_test

import (
	"context"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"k8s.io/utils/ptr"

	"github.com/vsinha/mixopt/pkg/application/services/demand"
	"github.com/vsinha/mixopt/pkg/application/services/model"
	"github.com/vsinha/mixopt/pkg/application/services/reconcile"
	"github.com/vsinha/mixopt/pkg/application/services/solver"
	fixtures "github.com/vsinha/mixopt/pkg/application/services/testing"
	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/policy"
)

func marginPolicy() policy.Effective {
	return policy.Effective{
		FulfillOrders:       true,
		OptimizeSurplusOnly: true,
		Objective:           policy.MaximizeMargin,
		CostAllocationBonus: policy.DefaultCostAllocationBonus,
	}
}

func buildAndSolve(ctx context.Context, table *reconcile.Table, ceilings demand.Ceilings, eff policy.Effective) (*model.Model, *model.Result) {
	m, err := model.NewBuilder().Build(ctx, table, ceilings, eff)
	Expect(err).NotTo(HaveOccurred())
	sol, err := solver.NewSolver().Solve(ctx, m, solver.Options{Backend: solver.SimplexBackend})
	Expect(err).NotTo(HaveOccurred())
	Expect(sol.Status).To(Equal(entities.StatusOptimal))
	res, err := model.Extract(ctx, m, sol.Values, table)
	Expect(err).NotTo(HaveOccurred())
	return m, res
}

func quantityOf(res *model.Result, sku entities.SKUCode, kind entities.DecisionKind) float64 {
	var total float64
	for _, d := range res.Decisions {
		if d.SKU == sku && d.Kind == kind {
			total += d.AllocatedQuantity
		}
	}
	return total
}

func totalMargin(res *model.Result) decimal.Decimal {
	total := decimal.Zero
	for _, d := range res.Decisions {
		total = total.Add(d.Margin)
	}
	return total
}

var _ = Describe("Builder", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("with one class and no orders", func() {
		It("should create one surplus variable per item and one pool row", func() {
			m, err := model.NewBuilder().Build(ctx, fixtures.SimpleReallocation().Table(), nil, marginPolicy())
			Expect(err).NotTo(HaveOccurred())

			s := m.Summary()
			Expect(s.SurplusVariables).To(Equal(2))
			Expect(s.OrderVariables).To(Equal(0))
			Expect(s.Constraints[model.ClassPoolRow]).To(Equal(1))
			Expect(m.Pools["GRADE_A"].Available).To(Equal(1500.0))
			Expect(m.Direction).To(Equal(model.Maximize))
			Expect(m.String()).To(ContainSubstring("class_pool[GRADE_A]"))
		})
	})

	Context("with orders under orders-then-surplus", func() {
		It("should bound order variables and reserve their quantity", func() {
			m, err := model.NewBuilder().Build(ctx, fixtures.OrderProtection().Table(), nil, marginPolicy())
			Expect(err).NotTo(HaveOccurred())

			s := m.Summary()
			Expect(s.OrderVariables).To(Equal(1))
			Expect(s.Constraints[model.OrderBoundRow]).To(Equal(1))
			Expect(s.Constraints[model.ClassOrdersRow]).To(Equal(1))
			pool := m.Pools["GRADE_B"]
			Expect(pool.OrderReserved).To(Equal(300.0))
			Expect(pool.Available).To(Equal(700.0))
		})
	})

	Context("with orders under total stock", func() {
		It("should ignore orders and pool the whole capacity", func() {
			eff := marginPolicy()
			eff.FulfillOrders = false
			eff.OptimizeSurplusOnly = false

			m, err := model.NewBuilder().Build(ctx, fixtures.OrderProtection().Table(), nil, eff)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Summary().OrderVariables).To(Equal(0))
			Expect(m.Pools["GRADE_B"].Available).To(Equal(1000.0))
		})
	})

	Context("when minimizing cost", func() {
		It("should subtract the allocation bonus from every coefficient", func() {
			eff := marginPolicy()
			eff.Objective = policy.MinimizeCost

			m, err := model.NewBuilder().Build(ctx, fixtures.OrderProtection().Table(), nil, eff)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Direction).To(Equal(model.Minimize))
			for _, v := range m.Variables {
				Expect(v.Objective).To(BeNumerically("~", 10-policy.DefaultCostAllocationBonus, 1e-9))
			}
		})
	})

	It("should reject a missing table", func() {
		_, err := model.NewBuilder().Build(ctx, nil, nil, marginPolicy())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Solved allocation", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("should move the whole surplus to the higher margin item", func() {
		_, res := buildAndSolve(ctx, fixtures.SimpleReallocation().Table(), nil, marginPolicy())

		Expect(res.TotalAllocated()).To(BeNumerically("~", 1500, 1e-6))
		Expect(quantityOf(res, 102, entities.DecisionSurplus)).To(BeNumerically("~", 1500, 1e-6))
		Expect(totalMargin(res).InexactFloat64()).To(BeNumerically("~", 4500, 1e-4))
		Expect(res.Objective).To(BeNumerically("~", 4500, 1e-4))
	})

	It("should fulfill orders before optimizing the surplus", func() {
		_, res := buildAndSolve(ctx, fixtures.OrderProtection().Table(), nil, marginPolicy())

		Expect(quantityOf(res, 201, entities.DecisionOrder)).To(BeNumerically("~", 300, 1e-6))
		surplus := quantityOf(res, 201, entities.DecisionSurplus) + quantityOf(res, 202, entities.DecisionSurplus)
		Expect(surplus).To(BeNumerically("<=", 700+1e-6))
		Expect(quantityOf(res, 202, entities.DecisionSurplus)).To(BeNumerically("~", 700, 1e-6))
	})

	It("should price order rows with the SKU mean economics", func() {
		_, res := buildAndSolve(ctx, fixtures.OrderProtection().Table(), nil, marginPolicy())

		for _, d := range res.Decisions {
			if d.Kind == entities.DecisionOrder {
				Expect(d.UnitMargin.Equal(decimal.NewFromInt(1))).To(BeTrue())
				Expect(d.Package.IsZero()).To(BeTrue())
			}
		}
	})

	It("should keep every class within its production", func() {
		table := fixtures.TwoClasses().Table()
		_, res := buildAndSolve(ctx, table, nil, marginPolicy())

		for _, r := range res.Rollups {
			Expect(r.OrderQuantity + r.SurplusQuantity).To(BeNumerically("<=", r.Capacity+1e-6))
		}
		for _, d := range res.Decisions {
			Expect(d.Margin.IsNegative()).To(BeFalse())
		}
	})

	It("should respect demand ceilings", func() {
		ceilings := demand.Ceilings{102: {SKU: 102, MaxQuantity: 400, Periods: 3}}
		m, res := buildAndSolve(ctx, fixtures.SimpleReallocation().Table(), ceilings, marginPolicy())

		Expect(m.Summary().Constraints[model.DemandCeilingRow]).To(Equal(1))
		Expect(quantityOf(res, 102, entities.DecisionSurplus)).To(BeNumerically("~", 400, 1e-6))
		Expect(quantityOf(res, 101, entities.DecisionSurplus)).To(BeNumerically("~", 1100, 1e-6))
		Expect(totalMargin(res).InexactFloat64()).To(BeNumerically("~", 3400, 1e-4))
	})

	It("should honour a minimum utilization without the bonus", func() {
		eff := marginPolicy()
		eff.Objective = policy.MinimizeCost
		eff.CostAllocationBonus = 0
		eff.MinUtilization = ptr.To(0.5)

		_, res := buildAndSolve(ctx, fixtures.SimpleReallocation().Table(), nil, eff)
		Expect(res.TotalAllocated()).To(BeNumerically("~", 750, 1e-6))
	})

	It("should allocate nothing when minimizing cost without bonus or floor", func() {
		eff := marginPolicy()
		eff.Objective = policy.MinimizeCost
		eff.CostAllocationBonus = 0

		_, res := buildAndSolve(ctx, fixtures.SimpleReallocation().Table(), nil, eff)
		Expect(res.Decisions).To(BeEmpty())
		Expect(res.Decisions).NotTo(BeNil())
	})

	It("should return an empty table for an empty model", func() {
		table := fixtures.NewScenario().WithProduction("GRADE_A", 100).Table()
		m, res := buildAndSolve(ctx, table, nil, marginPolicy())

		Expect(m.Empty()).To(BeTrue())
		Expect(res.Decisions).NotTo(BeNil())
		Expect(res.Decisions).To(BeEmpty())
		Expect(res.Objective).To(BeZero())
	})

	It("should produce the same decisions on repeated runs", func() {
		table := fixtures.TwoClasses().Table()
		_, first := buildAndSolve(ctx, table, nil, marginPolicy())
		_, second := buildAndSolve(ctx, table, nil, marginPolicy())

		Expect(second.Objective).To(BeNumerically("~", first.Objective, 1e-6))
		diff := cmp.Diff(first.Rollups, second.Rollups,
			cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }))
		Expect(diff).To(BeEmpty())
	})

	It("should reject a solution of the wrong length", func() {
		table := fixtures.SimpleReallocation().Table()
		m, err := model.NewBuilder().Build(ctx, table, nil, marginPolicy())
		Expect(err).NotTo(HaveOccurred())

		_, err = model.Extract(ctx, m, []float64{1}, table)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Blocks", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("should split a multi-class model into blocks that never mix classes", func() {
		m, err := model.NewBuilder().Build(ctx, fixtures.Synthetic(4, 5, 3).Table(), nil, marginPolicy())
		Expect(err).NotTo(HaveOccurred())

		blocks := m.Blocks()
		Expect(len(blocks)).To(BeNumerically(">=", 4))

		seen := make(map[int]bool)
		rows := 0
		for _, b := range blocks {
			Expect(b.Model.Variables).To(HaveLen(len(b.Vars)))
			class := m.Variables[b.Vars[0]].Class
			for j, v := range b.Vars {
				Expect(seen[v]).To(BeFalse())
				seen[v] = true
				Expect(m.Variables[v].Class).To(Equal(class))
				Expect(b.Model.Variables[j].Item).To(Equal(m.Variables[v].Item))
				Expect(b.Model.Variables[j].Index).To(Equal(j))
			}
			for _, c := range b.Model.Constraints {
				for _, t := range c.Terms {
					Expect(t.Var).To(BeNumerically("<", len(b.Vars)))
				}
			}
			rows += len(b.Model.Constraints)
		}
		Expect(seen).To(HaveLen(len(m.Variables)))
		Expect(rows).To(Equal(len(m.Constraints)))
	})

	It("should report a floor row without variables as unsatisfiable", func() {
		m := &model.Model{Constraints: []model.Constraint{
			{Name: "class_pool[EMPTY]", Kind: model.ClassPoolRow, Sense: model.LessEqual, RHS: 100},
			{Name: "min_utilization[EMPTY]", Kind: model.MinUtilizationRow, Sense: model.GreaterEqual, RHS: 50},
		}}

		rows := m.UnsatisfiableRows()
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].Kind).To(Equal(model.MinUtilizationRow))
		Expect(m.Blocks()).To(BeEmpty())
	})
})
