package pricing

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/fssa-batch3/homebakery-backend/pkg/clock"
	"github.com/fssa-batch3/homebakery-backend/pkg/db"
	"github.com/fssa-batch3/homebakery-backend/pkg/db/dbtest"
	"github.com/fssa-batch3/homebakery-backend/pkg/db/models"
	"github.com/fssa-batch3/homebakery-backend/pkg/logger"
	"github.com/fssa-batch3/homebakery-backend/pkg/metrics"
	"github.com/fssa-batch3/homebakery-backend/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var baseTime = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

type gateStub struct {
	active map[int64]bool
	err    error
}

func (g *gateStub) IsActiveProduct(_ context.Context, productID int64) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	return g.active[productID], nil
}

type harness struct {
	svc       Service
	client    *db.Client
	conn      *gorm.DB
	clock     *clock.FakeClock
	redis     *redis.MockCmdable
	gate      *gateStub
	registry  *prometheus.Registry
	productID int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	client := dbtest.Client(t)
	conn := client.DB()
	productID := insertProduct(t, conn, "Black Forest")

	clk := clock.NewFakeClock(baseTime)
	mock := redis.NewMockCmdable()
	cache, err := NewSheetCache(redis.NewWithCmdable(mock), 5*time.Minute)
	require.NoError(t, err)

	gate := &gateStub{active: map[int64]bool{productID: true}}
	reg := prometheus.NewRegistry()
	repo := NewRepository(conn)
	repo.clock = clk

	svc, err := NewService(ServiceParams{
		DB:      client,
		Repo:    repo,
		Gate:    gate,
		Clock:   clk,
		Cache:   cache,
		Metrics: metrics.NewPricingMetrics(reg),
		Logger:  logger.New(logger.Options{ServiceName: "pricing-test", Output: io.Discard}),
	})
	require.NoError(t, err)

	return &harness{
		svc:       svc,
		client:    client,
		conn:      conn,
		clock:     clk,
		redis:     mock,
		gate:      gate,
		registry:  reg,
		productID: productID,
	}
}

func insertProduct(t *testing.T, conn *gorm.DB, name string) int64 {
	t.Helper()
	product := models.Product{Name: name, CategoryID: 1, IsVeg: true, IsActive: true}
	require.NoError(t, conn.Create(&product).Error)
	return product.ID
}

func dec(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}

func allRows(t *testing.T, conn *gorm.DB, productID int64) []models.ProductPrice {
	t.Helper()
	var rows []models.ProductPrice
	require.NoError(t, conn.Where("product_id = ?", productID).Order("id ASC").Find(&rows).Error)
	return rows
}

// requireSingleCurrent checks that no tier of the product has more than one
// open record.
func requireSingleCurrent(t *testing.T, conn *gorm.DB, productID int64) {
	t.Helper()
	open := map[string]int{}
	for _, row := range allRows(t, conn, productID) {
		if row.ValidTo == nil {
			open[row.Quantity.String()]++
		}
	}
	for qty, n := range open {
		require.LessOrEqualf(t, n, 1, "tier %s has %d open records", qty, n)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
