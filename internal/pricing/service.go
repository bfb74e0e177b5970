package pricing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fssa-batch3/homebakery-backend/pkg/clock"
	"github.com/fssa-batch3/homebakery-backend/pkg/db"
	"github.com/fssa-batch3/homebakery-backend/pkg/db/models"
	"github.com/fssa-batch3/homebakery-backend/pkg/enums"
	pkgerrors "github.com/fssa-batch3/homebakery-backend/pkg/errors"
	"github.com/fssa-batch3/homebakery-backend/pkg/logger"
	"github.com/fssa-batch3/homebakery-backend/pkg/metrics"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const sheetLoadKey = "current"

// ProductGate answers whether a product may carry prices.
type ProductGate interface {
	IsActiveProduct(ctx context.Context, productID int64) (bool, error)
}

type sheetCache interface {
	Load(ctx context.Context) ([]PriceDTO, bool, error)
	Store(ctx context.Context, sheet []PriceDTO) error
	Invalidate(ctx context.Context) error
}

// Service versions tier prices: at most one current record per
// (product, quantity), and history rows are never rewritten.
type Service interface {
	CreateTier(ctx context.Context, productID int64, amount, quantity decimal.Decimal, unit enums.QuantityUnit) (*PriceDTO, error)
	UpdateTier(ctx context.Context, productID int64, quantity, newAmount decimal.Decimal) (*PriceDTO, error)
	ExpireTier(ctx context.Context, productID int64, quantity decimal.Decimal) error

	CurrentPricesFor(ctx context.Context, productID int64) ([]PriceDTO, error)
	AllCurrentPrices(ctx context.Context) ([]PriceDTO, error)
	HistoryFor(ctx context.Context, productID int64) ([]PriceDTO, error)
	PriceAtTier(ctx context.Context, productID int64, quantity decimal.Decimal) (*PriceDTO, error)
	PriceAsOf(ctx context.Context, productID int64, quantity decimal.Decimal, at time.Time) (*PriceDTO, error)
	ResolveForOrder(ctx context.Context, priceID int64) (*PriceDTO, error)

	// SeedTiers and ExpireProductTiers run inside a caller-owned transaction.
	// The caller must call InvalidateSheet once that transaction commits.
	SeedTiers(ctx context.Context, tx *gorm.DB, productID int64, tiers []TierInput) ([]PriceDTO, error)
	ExpireProductTiers(ctx context.Context, tx *gorm.DB, productID int64) (int64, error)
	InvalidateSheet(ctx context.Context)
}

type ServiceParams struct {
	DB      *db.Client
	Repo    *Repository
	Gate    ProductGate
	Clock   clock.Clock
	Cache   *SheetCache
	Metrics *metrics.PricingMetrics
	Logger  *logger.Logger
}

type service struct {
	db      *db.Client
	repo    *Repository
	gate    ProductGate
	clock   clock.Clock
	cache   sheetCache
	metrics *metrics.PricingMetrics
	logg    *logger.Logger

	// sheetLoads collapses concurrent cache misses into one query.
	// sheetGen is bumped on every invalidation; a load that started before
	// the bump does not write its result back.
	sheetLoads singleflight.Group
	sheetGen   atomic.Uint64
}

func NewService(p ServiceParams) (Service, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("price repository required")
	}
	if p.Gate == nil {
		return nil, fmt.Errorf("product gate required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	svc := &service{
		db:      p.DB,
		repo:    p.Repo,
		gate:    p.Gate,
		clock:   clk,
		metrics: p.Metrics,
		logg:    p.Logger,
	}
	if p.Cache != nil {
		svc.cache = p.Cache
	}
	return svc, nil
}

func (s *service) CreateTier(ctx context.Context, productID int64, amount, quantity decimal.Decimal, unit enums.QuantityUnit) (*PriceDTO, error) {
	input := TierInput{Quantity: quantity, Unit: unit, Amount: amount}
	if err := validateTierInput(productID, input); err != nil {
		return nil, err
	}
	if err := s.ensureActiveProduct(ctx, productID); err != nil {
		return nil, err
	}

	start := time.Now()
	var created *models.ProductPrice
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := createTierTx(ctx, s.repo.WithTx(tx), productID, input, s.clock.Now())
		created = row
		return err
	})
	if err != nil {
		return nil, s.fail(metrics.OpCreate, err, "create tier")
	}

	s.afterWrite(ctx, metrics.OpCreate, start, created, "price.tier_created")
	dto := toDTO(*created)
	return &dto, nil
}

func (s *service) UpdateTier(ctx context.Context, productID int64, quantity, newAmount decimal.Decimal) (*PriceDTO, error) {
	if err := validateTierKey(productID, quantity); err != nil {
		return nil, err
	}
	if err := validateAmount(productID, quantity, newAmount); err != nil {
		return nil, err
	}
	if err := s.ensureActiveProduct(ctx, productID); err != nil {
		return nil, err
	}

	start := time.Now()
	var result *models.ProductPrice
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindByTier(ctx, productID, quantity)
		if err != nil {
			return pkgerrors.Store(err, "db: load current tier")
		}
		if current == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "tier does not exist").WithDetails(tierDetails(productID, quantity))
		}
		if current.Amount.Equal(newAmount) {
			return pkgerrors.New(pkgerrors.CodeConflict, "price unchanged").WithDetails(tierDetails(productID, quantity))
		}

		closedAt := closeInstant(s.clock.Now(), current.ValidFrom)
		closed, err := repo.CloseCurrent(ctx, productID, current.Quantity, closedAt)
		if err != nil {
			return pkgerrors.Store(err, "db: close current tier")
		}
		if closed == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "tier changed concurrently").WithDetails(tierDetails(productID, quantity))
		}

		next := &models.ProductPrice{
			ProductID: productID,
			Quantity:  current.Quantity,
			Unit:      current.Unit,
			Amount:    newAmount,
			ValidFrom: closedAt,
		}
		if err := repo.Insert(ctx, next); err != nil {
			return translateInsertErr(err, productID, quantity)
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, s.fail(metrics.OpUpdate, err, "update tier")
	}

	s.afterWrite(ctx, metrics.OpUpdate, start, result, "price.tier_updated")
	dto := toDTO(*result)
	return &dto, nil
}

func (s *service) ExpireTier(ctx context.Context, productID int64, quantity decimal.Decimal) error {
	if err := validateTierKey(productID, quantity); err != nil {
		return err
	}
	if err := s.ensureActiveProduct(ctx, productID); err != nil {
		return err
	}

	start := time.Now()
	var expired *models.ProductPrice
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindByTier(ctx, productID, quantity)
		if err != nil {
			return pkgerrors.Store(err, "db: load current tier")
		}
		if current == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "tier does not exist").WithDetails(tierDetails(productID, quantity))
		}

		closedAt := closeInstant(s.clock.Now(), current.ValidFrom)
		closed, err := repo.Expire(ctx, productID, current.Quantity, closedAt)
		if err != nil {
			return pkgerrors.Store(err, "db: expire tier")
		}
		if closed == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "tier does not exist").WithDetails(tierDetails(productID, quantity))
		}
		current.ValidTo = &closedAt
		expired = current
		return nil
	})
	if err != nil {
		return s.fail(metrics.OpExpire, err, "expire tier")
	}

	s.afterWrite(ctx, metrics.OpExpire, start, expired, "price.tier_expired")
	return nil
}

func (s *service) CurrentPricesFor(ctx context.Context, productID int64) ([]PriceDTO, error) {
	if err := validateProductID(productID); err != nil {
		return nil, err
	}
	if err := s.ensureActiveProduct(ctx, productID); err != nil {
		return nil, err
	}
	rows, err := s.repo.FindCurrentByProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Store(err, "db: list current prices")
	}
	return toDTOs(rows), nil
}

func (s *service) AllCurrentPrices(ctx context.Context) ([]PriceDTO, error) {
	if s.cache != nil {
		sheet, ok, err := s.cache.Load(ctx)
		switch {
		case err != nil:
			s.metrics.IncCache(metrics.CacheError)
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "price_sheet.cache_load_failed")
		case ok:
			s.metrics.IncCache(metrics.CacheHit)
			return sheet, nil
		default:
			s.metrics.IncCache(metrics.CacheMiss)
		}
	}

	loaded, err, _ := s.sheetLoads.Do(sheetLoadKey, func() (any, error) {
		gen := s.sheetGen.Load()
		rows, err := s.repo.FindCurrentAll(ctx)
		if err != nil {
			return nil, pkgerrors.Store(err, "db: list price sheet")
		}
		sheet := toDTOs(rows)

		if s.cache != nil && s.sheetGen.Load() == gen {
			if err := s.cache.Store(ctx, sheet); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "price_sheet.cache_store_failed")
			}
		}
		return sheet, nil
	})
	if err != nil {
		return nil, err
	}
	return loaded.([]PriceDTO), nil
}

func (s *service) HistoryFor(ctx context.Context, productID int64) ([]PriceDTO, error) {
	if err := validateProductID(productID); err != nil {
		return nil, err
	}
	rows, err := s.repo.FindByProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Store(err, "db: list price history")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no price history for product").
			WithDetails(map[string]any{"product_id": productID})
	}
	return toDTOs(rows), nil
}

func (s *service) PriceAtTier(ctx context.Context, productID int64, quantity decimal.Decimal) (*PriceDTO, error) {
	if err := validateTierKey(productID, quantity); err != nil {
		return nil, err
	}
	row, err := s.repo.FindByTier(ctx, productID, quantity)
	if err != nil {
		return nil, pkgerrors.Store(err, "db: load current tier")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tier does not exist").WithDetails(tierDetails(productID, quantity))
	}
	dto := toDTO(*row)
	return &dto, nil
}

func (s *service) PriceAsOf(ctx context.Context, productID int64, quantity decimal.Decimal, at time.Time) (*PriceDTO, error) {
	if err := validateTierKey(productID, quantity); err != nil {
		return nil, err
	}
	if at.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "as-of time is required")
	}
	row, err := s.repo.FindEffectiveAt(ctx, productID, quantity, at.UTC())
	if err != nil {
		return nil, pkgerrors.Store(err, "db: load tier as of")
	}
	if row == nil {
		details := tierDetails(productID, quantity)
		details["at"] = at.UTC()
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tier was not priced at that time").WithDetails(details)
	}
	dto := toDTO(*row)
	return &dto, nil
}

func (s *service) ResolveForOrder(ctx context.Context, priceID int64) (*PriceDTO, error) {
	if priceID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_id must be positive").
			WithDetails(map[string]any{"price_id": priceID})
	}
	row, err := s.repo.FindByID(ctx, priceID)
	if err != nil {
		return nil, pkgerrors.Store(err, "db: load price record")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "price record not found").
			WithDetails(map[string]any{"price_id": priceID})
	}
	dto := toDTO(*row)
	return &dto, nil
}

func (s *service) SeedTiers(ctx context.Context, tx *gorm.DB, productID int64, tiers []TierInput) ([]PriceDTO, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "seed tiers requires a transaction")
	}
	if len(tiers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one price tier is required")
	}
	seen := make(map[string]struct{}, len(tiers))
	for _, tier := range tiers {
		if err := validateTierInput(productID, tier); err != nil {
			return nil, err
		}
		key := tier.Quantity.String()
		if _, dup := seen[key]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate tier quantity").WithDetails(tierDetails(productID, tier.Quantity))
		}
		seen[key] = struct{}{}
	}

	repo := s.repo.WithTx(tx)
	now := s.clock.Now()
	out := make([]PriceDTO, 0, len(tiers))
	for _, tier := range tiers {
		row, err := createTierTx(ctx, repo, productID, tier, now)
		if err != nil {
			return nil, err
		}
		out = append(out, toDTO(*row))
	}
	return out, nil
}

func (s *service) ExpireProductTiers(ctx context.Context, tx *gorm.DB, productID int64) (int64, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "expire product tiers requires a transaction")
	}
	if err := validateProductID(productID); err != nil {
		return 0, err
	}
	repo := s.repo.WithTx(tx)

	current, err := repo.FindCurrentByProduct(ctx, productID)
	if err != nil {
		return 0, pkgerrors.Store(err, "db: list current prices")
	}
	if len(current) == 0 {
		return 0, nil
	}

	closedAt := s.clock.Now()
	for _, row := range current {
		closedAt = closeInstant(closedAt, row.ValidFrom)
	}
	expired, err := repo.ExpireAllForProduct(ctx, productID, closedAt)
	if err != nil {
		return 0, pkgerrors.Store(err, "db: expire product prices")
	}
	return expired, nil
}

func (s *service) InvalidateSheet(ctx context.Context) {
	s.sheetGen.Add(1)
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "price_sheet.invalidate_failed")
	}
}

func (s *service) ensureActiveProduct(ctx context.Context, productID int64) error {
	active, err := s.gate.IsActiveProduct(ctx, productID)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Store(err, "db: check product")
	}
	if !active {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": productID})
	}
	return nil
}

func (s *service) fail(op string, err error, msg string) error {
	if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		s.metrics.IncConflict(op)
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Store(err, msg)
}

func (s *service) afterWrite(ctx context.Context, op string, start time.Time, row *models.ProductPrice, msg string) {
	s.metrics.IncTransition(op)
	s.metrics.ObserveDuration(op, time.Since(start))
	s.InvalidateSheet(ctx)

	ctx = s.logg.WithTier(ctx, row.ProductID, row.Quantity.String())
	ctx = s.logg.WithFields(ctx, map[string]any{
		"price_id": row.ID,
		"amount":   row.Amount.String(),
	})
	s.logg.Info(ctx, msg)
}

func createTierTx(ctx context.Context, repo *Repository, productID int64, in TierInput, now time.Time) (*models.ProductPrice, error) {
	exists, err := repo.ExistsCurrentTier(ctx, productID, in.Quantity)
	if err != nil {
		return nil, pkgerrors.Store(err, "db: check current tier")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "tier already priced").WithDetails(tierDetails(productID, in.Quantity))
	}

	row := &models.ProductPrice{
		ProductID: productID,
		Quantity:  in.Quantity,
		Unit:      in.Unit,
		Amount:    in.Amount,
		ValidFrom: now,
	}
	if err := repo.Insert(ctx, row); err != nil {
		return nil, translateInsertErr(err, productID, in.Quantity)
	}
	return row, nil
}

func translateInsertErr(err error, productID int64, quantity decimal.Decimal) error {
	if db.IsUniqueViolation(err, CurrentTierIndex) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "tier already priced").WithDetails(tierDetails(productID, quantity))
	}
	return pkgerrors.Store(err, "db: insert price record")
}

// closeInstant keeps validFrom < validTo when the clock has not moved past the
// record being closed.
func closeInstant(now, validFrom time.Time) time.Time {
	if now.After(validFrom) {
		return now
	}
	return validFrom.Add(time.Microsecond)
}
