package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/shopspring/decimal"

	"github.com/vsinha/mixopt/pkg/application/services/model"
	"github.com/vsinha/mixopt/pkg/application/services/orchestration"
	"github.com/vsinha/mixopt/pkg/application/services/reconcile"
	"github.com/vsinha/mixopt/pkg/application/services/solver"
	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/domain/policy"
	"github.com/vsinha/mixopt/pkg/infrastructure/events"
	"github.com/vsinha/mixopt/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/mixopt/pkg/logging"
)

func main() {
	logger, err := logging.NewLogger("info", "console")
	if err != nil {
		fmt.Printf("❌ Logger setup failed: %v\n", err)
		return
	}
	ctx := logr.NewContext(context.Background(), logger)

	// One class of 1500 units shared by two packages of different margin
	sources := setupEggScenario()

	orchestrator := orchestration.NewAllocationOrchestrator(
		reconcile.NewReconciler(),
		model.NewBuilder(),
		solver.NewSolver(),
		events.NewRunStore(logger),
	)

	fmt.Println("🥚 Allocating the day's production of GRADE_A...")
	result, err := orchestrator.Run(ctx, orchestration.RunRequest{
		Date:    time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Policy:  policy.Policy{FulfillOrders: true, Objective: policy.MaximizeMargin},
		Sources: sources,
		Solver:  solver.Options{Backend: solver.SimplexBackend, TimeLimit: 5 * time.Second},
	})
	if err != nil {
		fmt.Printf("❌ Allocation failed: %v\n", err)
		return
	}

	fmt.Println("📊 Allocation Results:")
	fmt.Printf("  Status: %s\n", result.Status)
	fmt.Printf("  Decisions: %d\n", len(result.Decisions))
	fmt.Printf("  Allocated: %.0f units\n", result.TotalAllocated())
	fmt.Println()

	for _, d := range result.Decisions {
		fmt.Printf("  %-8s %-20s %8.0f units  margin %s\n",
			d.Kind, d.ItemID, d.AllocatedQuantity, d.Margin.StringFixed(2))
	}
	fmt.Println()

	cmp := result.Comparison
	fmt.Printf("💰 Margin: %s optimized vs %s uniform (+%s%%)\n",
		cmp.MarginOptimized.StringFixed(2),
		cmp.MarginBaseline.StringFixed(2),
		cmp.GainPercentage.StringFixed(2))

	evs, err := orchestrator.Events(result.RunID)
	if err == nil {
		fmt.Printf("🧾 %d run events recorded under %s\n", len(evs), result.RunID)
	}
}

func setupEggScenario() reconcile.Sources {
	small := entities.PackageDescriptor{InnerPacks: 1, UnitsPerPack: 30}
	large := entities.PackageDescriptor{InnerPacks: 12, UnitsPerPack: 30}

	production := memory.NewProductionRepository()
	production.AddProduction(entities.ClassProduction{Class: "GRADE_A", Quantity: 1000})
	production.AddProduction(entities.ClassProduction{Class: "GRADE_A", Quantity: 500})

	classes := memory.NewClassRepository()
	_ = classes.LoadMappings([]*entities.ClassMapping{
		{SKU: 101, Class: "GRADE_A"},
		{SKU: 102, Class: "GRADE_A"},
	})

	prices := memory.NewPriceRepository()
	prices.AddPrice(entities.PriceRecord{SKU: 101, Package: large, Price: decimal.NewFromInt(12)})
	prices.AddPrice(entities.PriceRecord{SKU: 102, Package: small, Price: decimal.NewFromInt(13)})

	costs := memory.NewCostRepository(2)
	costs.AddCost(entities.CostRecord{SKU: 101, Package: large, UnitCost: decimal.NewFromInt(10)})
	costs.AddCost(entities.CostRecord{SKU: 102, Package: small, UnitCost: decimal.NewFromInt(10)})

	orders := memory.NewOrderRepository()
	_ = orders.LoadOrders([]*entities.CustomerOrder{
		{CustomerID: "C1", SKU: 101, Quantity: 200},
		{CustomerID: "C2", SKU: 101, Quantity: 100},
	})

	return reconcile.Sources{
		Production: production,
		Classes:    classes,
		Prices:     prices,
		Costs:      costs,
		Orders:     orders,
	}
}
