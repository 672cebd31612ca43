package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-logr/logr"

	"github.com/vsinha/mixopt/pkg/application/services/demand"
	"github.com/vsinha/mixopt/pkg/application/services/reconcile"
	"github.com/vsinha/mixopt/pkg/config"
	"github.com/vsinha/mixopt/pkg/domain/repositories"
	"github.com/vsinha/mixopt/pkg/domain/services"
	"github.com/vsinha/mixopt/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/mixopt/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/mixopt/pkg/infrastructure/repositories/sql"
	"github.com/vsinha/mixopt/pkg/logging"
)

// Inputs holds the loaded upstream tables of one run
type Inputs struct {
	Rows    services.InputSet
	Sources reconcile.Sources
	Sales   repositories.SalesHistoryRepository
}

// Close releases the sales source
func (in *Inputs) Close() error {
	if in.Sales == nil {
		return nil
	}
	return in.Sales.Close()
}

// loadInputs reads the configured tables into in-memory repositories. Optional
// tables without a path, or whose file does not exist, are left nil so the
// reconciler sees them as absent. A present but unreadable table is an error.
func loadInputs(ctx context.Context, cfg config.Config) (*Inputs, error) {
	logger := logr.FromContextOrDiscard(ctx)
	loader := csv.NewLoader(cfg.Columns)
	in := &Inputs{}

	production, err := loader.LoadProduction(cfg.Paths.Production)
	if err != nil {
		return nil, fmt.Errorf("error loading production: %w", err)
	}
	productionRepo := memory.NewProductionRepository()
	if err := productionRepo.LoadProduction(production); err != nil {
		return nil, fmt.Errorf("failed to load production into repository: %w", err)
	}
	in.Rows.Production = production
	in.Sources.Production = productionRepo

	costs, err := loader.LoadCosts(cfg.Paths.Costs)
	if err != nil {
		return nil, fmt.Errorf("error loading costs: %w", err)
	}
	costRepo := memory.NewCostRepository(len(costs))
	if err := costRepo.LoadCosts(costs); err != nil {
		return nil, fmt.Errorf("failed to load costs into repository: %w", err)
	}
	in.Rows.Costs = costs
	in.Sources.Costs = costRepo

	if path := cfg.Paths.Classes; path != "" {
		mappings, err := loader.LoadClasses(path)
		switch {
		case missing(err):
			logger.Info("Class mapping file not found, continuing without it", "path", path)
		case err != nil:
			return nil, fmt.Errorf("error loading classes: %w", err)
		default:
			classRepo := memory.NewClassRepository()
			if err := classRepo.LoadMappings(mappings); err != nil {
				return nil, fmt.Errorf("failed to load classes into repository: %w", err)
			}
			in.Rows.Classes = mappings
			in.Sources.Classes = classRepo
		}
	}

	if path := cfg.Paths.Prices; path != "" {
		prices, err := loader.LoadPrices(path)
		switch {
		case missing(err):
			logger.Info("Price file not found, continuing without it", "path", path)
		case err != nil:
			return nil, fmt.Errorf("error loading prices: %w", err)
		default:
			priceRepo := memory.NewPriceRepository()
			if err := priceRepo.LoadPrices(prices); err != nil {
				return nil, fmt.Errorf("failed to load prices into repository: %w", err)
			}
			in.Rows.Prices = prices
			in.Sources.Prices = priceRepo
		}
	}

	if path := cfg.Paths.Orders; path != "" {
		orders, err := loader.LoadOrders(path)
		switch {
		case missing(err):
			logger.Info("Order file not found, continuing without it", "path", path)
		case err != nil:
			return nil, fmt.Errorf("error loading orders: %w", err)
		default:
			orderRepo := memory.NewOrderRepository()
			if err := orderRepo.LoadOrders(orders); err != nil {
				return nil, fmt.Errorf("failed to load orders into repository: %w", err)
			}
			in.Rows.Orders = orders
			in.Sources.Orders = orderRepo
		}
	}

	// history is only read when the demand window uses it; connection and
	// read failures surface from GetSales and degrade to no ceiling
	if source := cfg.Paths.HistoricalSales; source != "" && cfg.DemandWindow.Enabled {
		if sql.IsDSN(source) {
			repo, err := sql.Open(source, cfg.Columns.For(csv.TableSales))
			if err != nil {
				return nil, err
			}
			in.Sales = repo
		} else {
			in.Sales = csv.NewSalesRepository(loader, source)
		}
	}

	logger.V(logging.DEBUG).Info("Loaded input tables",
		"production", len(in.Rows.Production),
		"costs", len(in.Rows.Costs),
		"classes", len(in.Rows.Classes),
		"prices", len(in.Rows.Prices),
		"orders", len(in.Rows.Orders),
		"sales", in.Sales != nil)

	return in, nil
}

// missing reports whether err comes from a table file that does not exist
func missing(err error) bool {
	return err != nil && errors.Is(err, fs.ErrNotExist)
}

// demandOptions converts the demand_window section, or returns nil when the
// ceiling is disabled
func demandOptions(cfg config.Config) (*demand.Options, error) {
	if !cfg.DemandWindow.Enabled {
		return nil, nil
	}
	granularity, err := demand.ParseGranularity(cfg.DemandWindow.Granularity)
	if err != nil {
		return nil, err
	}
	estimator, err := demand.ParseEstimator(cfg.DemandWindow.Estimator)
	if err != nil {
		return nil, err
	}
	opts := demand.DefaultOptions(cfg.RunDate())
	opts.LookbackMonths = cfg.DemandWindow.LookbackMonths
	opts.Granularity = granularity
	opts.Estimator = estimator
	opts.Percentile = cfg.DemandWindow.Percentile
	opts.ExpansionFactor = cfg.DemandWindow.ExpansionFactor
	opts.MaxFactor = cfg.DemandWindow.MaxFactor
	return &opts, nil
}
