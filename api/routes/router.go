package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fssa-batch3/homebakery-backend/api/controllers"
	ordercontrollers "github.com/fssa-batch3/homebakery-backend/api/controllers/orders"
	"github.com/fssa-batch3/homebakery-backend/api/middleware"
	"github.com/fssa-batch3/homebakery-backend/internal/orders"
	"github.com/fssa-batch3/homebakery-backend/internal/pricing"
	products "github.com/fssa-batch3/homebakery-backend/internal/products"
	"github.com/fssa-batch3/homebakery-backend/pkg/config"
	"github.com/fssa-batch3/homebakery-backend/pkg/db"
	"github.com/fssa-batch3/homebakery-backend/pkg/logger"
	"github.com/fssa-batch3/homebakery-backend/pkg/metrics"
	"github.com/fssa-batch3/homebakery-backend/pkg/redis"
)

// NewRouter wires the public API. redisClient may be nil, in which case the
// readiness probe reports redis as disabled and POST /orders runs without
// idempotency replay.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	dbP db.Pinger,
	redisClient *redis.Client,
	pricingService pricing.Service,
	productService products.Service,
	ordersService orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		redisPinger      controllers.Pinger
		idempotencyStore middleware.IdempotencyStore
	)
	if redisClient != nil {
		redisPinger = redisClient
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisPinger,
		}))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/prices", func(r chi.Router) {
			r.Get("/", controllers.ListCurrentPrices(pricingService, logg))
			r.Get("/{priceId}", controllers.ResolvePrice(pricingService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.CreateProduct(productService, logg))
			r.Get("/", controllers.ListProducts(productService, logg))

			r.Route("/{productId}", func(r chi.Router) {
				r.Get("/", controllers.GetProduct(productService, logg))
				r.Delete("/", controllers.DeactivateProduct(productService, logg))

				r.Route("/prices", func(r chi.Router) {
					r.Get("/", controllers.ProductCurrentPrices(pricingService, logg))
					r.Post("/", controllers.CreateProductPrice(pricingService, logg))
					r.Get("/history", controllers.ProductPriceHistory(pricingService, logg))
					r.Get("/{quantity}", controllers.ProductPriceAtTier(pricingService, logg))
					r.Put("/{quantity}", controllers.UpdateProductPrice(pricingService, logg))
					r.Delete("/{quantity}", controllers.ExpireProductPrice(pricingService, logg))
				})
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.Idempotency(idempotencyStore, cfg.App.IdempotencyTTL, logg)).
				Post("/", ordercontrollers.PlaceOrder(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.Patch("/{orderId}/status", ordercontrollers.UpdateStatus(ordersService, logg))
		})

		r.Get("/users/{userId}/orders", ordercontrollers.ListForUser(ordersService, logg))
	})

	return r
}
