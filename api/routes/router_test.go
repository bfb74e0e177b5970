package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/fssa-batch3/homebakery-backend/internal/orders"
	"github.com/fssa-batch3/homebakery-backend/internal/pricing"
	products "github.com/fssa-batch3/homebakery-backend/internal/products"
	"github.com/fssa-batch3/homebakery-backend/pkg/clock"
	"github.com/fssa-batch3/homebakery-backend/pkg/config"
	"github.com/fssa-batch3/homebakery-backend/pkg/db/dbtest"
	"github.com/fssa-batch3/homebakery-backend/pkg/logger"
	"github.com/fssa-batch3/homebakery-backend/pkg/metrics"
	"github.com/fssa-batch3/homebakery-backend/pkg/redis"
)

type testServer struct {
	handler http.Handler
	clock   *clock.FakeClock
}

func newTestServer(t *testing.T, withRedis bool) *testServer {
	t.Helper()

	cfg := &config.Config{App: config.AppConfig{
		Env:            "dev",
		CORSOrigins:    []string{"http://localhost:3000"},
		IdempotencyTTL: time.Hour,
	}}
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	client := dbtest.Client(t)
	conn := client.DB()
	clk := clock.NewFakeClock(time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))
	registry := prometheus.NewRegistry()

	var redisClient *redis.Client
	var cache *pricing.SheetCache
	if withRedis {
		redisClient = redis.NewWithCmdable(redis.NewMockCmdable())
		var err error
		cache, err = pricing.NewSheetCache(redisClient, 5*time.Minute)
		require.NoError(t, err)
	}

	productRepo := products.NewRepository(conn)
	pricingSvc, err := pricing.NewService(pricing.ServiceParams{
		DB:      client,
		Repo:    pricing.NewRepository(conn),
		Gate:    productRepo,
		Clock:   clk,
		Cache:   cache,
		Metrics: metrics.NewPricingMetrics(registry),
		Logger:  logg,
	})
	require.NoError(t, err)

	productSvc, err := products.NewService(products.ServiceParams{DB: client, Repo: productRepo, Pricing: pricingSvc, Clock: clk, Logger: logg})
	require.NoError(t, err)

	ordersSvc, err := orders.NewService(orders.ServiceParams{Repo: orders.NewRepository(conn), Pricing: pricingSvc, Gate: productRepo, Clock: clk, Logger: logg})
	require.NoError(t, err)

	handler := NewRouter(cfg, logg, registry, metrics.NewHTTPMetrics(registry), client, redisClient, pricingSvc, productSvc, ordersSvc)
	return &testServer{handler: handler, clock: clk}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type priceView struct {
	ID      int64  `json:"id"`
	Amount  string `json:"amount"`
	Current bool   `json:"current"`
}

type productView struct {
	ID     int64       `json:"id"`
	Prices []priceView `json:"prices"`
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(t, false)

	rec := srv.do(t, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"redis":"disabled"`)
}

func TestPriceLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, true)

	rec := srv.do(t, http.MethodPost, "/api/v1/products", `{"name":"Black Forest","category_id":1,"prices":[{"quantity":"0.5","unit":"KG","amount":"450"},{"quantity":"1","unit":"KG","amount":"850"}]}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var product productView
	decodeData(t, rec, &product)
	require.Len(t, product.Prices, 2)

	rec = srv.do(t, http.MethodGet, "/api/v1/prices", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sheet []priceView
	decodeData(t, rec, &sheet)
	require.Len(t, sheet, 2)

	srv.clock.Advance(time.Hour)
	tierPath := fmt.Sprintf("/api/v1/products/%d/prices/1", product.ID)
	rec = srv.do(t, http.MethodPut, tierPath, `{"amount":"900"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPut, tierPath, `{"amount":"900"}`, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/products/%d/prices/history", product.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []priceView
	decodeData(t, rec, &history)
	require.Len(t, history, 3)

	rec = srv.do(t, http.MethodGet, tierPath+"?at=2024-01-10T09:30:00Z", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var asOf priceView
	decodeData(t, rec, &asOf)
	require.False(t, asOf.Current)

	rec = srv.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/products/%d/prices/0.5", product.ID), "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/products/%d/prices", product.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var current []priceView
	decodeData(t, rec, &current)
	require.Len(t, current, 1)
	require.Equal(t, "900", current[0].Amount)

	rec = srv.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "price_transitions_total")
	require.Contains(t, rec.Body.String(), `route="/api/v1/products/{productId}/prices/{quantity}"`)
}

func TestPlaceOrderRequiresIdempotencyKey(t *testing.T) {
	srv := newTestServer(t, true)

	rec := srv.do(t, http.MethodPost, "/api/v1/products", `{"name":"Cupcakes","category_id":2,"is_veg":true,"prices":[{"quantity":6,"unit":"NOS","amount":300}]}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var product productView
	decodeData(t, rec, &product)

	body := fmt.Sprintf(`{"user_id":7,"price_id":%d,"quantity":2,"address":"12 Anna Salai","delivery_date":"2024-01-12"}`, product.Prices[0].ID)

	rec = srv.do(t, http.MethodPost, "/api/v1/orders", body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	headers := map[string]string{"Idempotency-Key": "order-7-1"}
	first := srv.do(t, http.MethodPost, "/api/v1/orders", body, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	replay := srv.do(t, http.MethodPost, "/api/v1/orders", body, headers)
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, "true", replay.Header().Get("Idempotent-Replay"))
	require.Equal(t, first.Body.String(), replay.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/v1/users/7/orders", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Orders []struct {
			ID string `json:"id"`
		} `json:"orders"`
	}
	decodeData(t, rec, &list)
	require.Len(t, list.Orders, 1)

	rec = srv.do(t, http.MethodPatch, "/api/v1/orders/"+list.Orders[0].ID+"/status", `{"status":"DELIVERED"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, false)

	rec := srv.do(t, http.MethodOptions, "/api/v1/prices", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": http.MethodGet,
	})
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
