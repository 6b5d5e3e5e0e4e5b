package orders

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/observability"
)

// DashboardLimit caps each dashboard list.
const DashboardLimit = 10

var errDashboardTablesRequired = errors.New("dashboard service: tables are required")

// DashboardStats counts the rows shown on the dashboard.
type DashboardStats struct {
	TotalOrders    int
	TotalCustomers int
	TotalProducts  int
}

// DashboardData is the admin overview.
type DashboardData struct {
	Orders    []domain.Order
	Customers []domain.CustomerSummary
	Products  []domain.ProductSummary
	Stats     DashboardStats
}

// Dashboard loads the admin overview. Callers wrap it in an admin guard.
type Dashboard struct {
	tables backend.Tables
	logger *zap.Logger
}

// NewDashboard validates tables.
func NewDashboard(tables backend.Tables, logger *zap.Logger) (*Dashboard, error) {
	if tables == nil {
		return nil, errDashboardTablesRequired
	}
	return &Dashboard{tables: tables, logger: observability.OrNop(logger).Named("dashboard")}, nil
}

// Load reads recent orders, customers and products concurrently. Each source
// that fails contributes an empty list instead of failing the whole load.
func (d *Dashboard) Load(ctx context.Context) (DashboardData, error) {
	var data DashboardData
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		orders, err := d.tables.Orders().ListRecent(gctx, DashboardLimit)
		if err != nil {
			d.logger.Warn("dashboard orders unavailable", zap.Error(err))
			return nil
		}
		data.Orders = orders
		return nil
	})
	g.Go(func() error {
		customers, err := d.tables.Customers().ListRecent(gctx, DashboardLimit)
		if err != nil {
			d.logger.Warn("dashboard customers unavailable", zap.Error(err))
			return nil
		}
		data.Customers = customers
		return nil
	})
	g.Go(func() error {
		products, err := d.tables.Catalog().ListRecentProducts(gctx, DashboardLimit)
		if err != nil {
			d.logger.Warn("dashboard products unavailable", zap.Error(err))
			return nil
		}
		data.Products = products
		return nil
	})
	if err := g.Wait(); err != nil {
		return DashboardData{}, err
	}
	if err := ctx.Err(); err != nil {
		return DashboardData{}, err
	}

	if data.Orders == nil {
		data.Orders = []domain.Order{}
	}
	if data.Customers == nil {
		data.Customers = []domain.CustomerSummary{}
	}
	if data.Products == nil {
		data.Products = []domain.ProductSummary{}
	}
	data.Stats = DashboardStats{
		TotalOrders:    len(data.Orders),
		TotalCustomers: len(data.Customers),
		TotalProducts:  len(data.Products),
	}
	return data, nil
}
