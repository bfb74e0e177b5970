package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/fssa-batch3/homebakery-backend/pkg/clock"
	"github.com/fssa-batch3/homebakery-backend/pkg/db/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CurrentTierIndex is the partial unique index guarding one open price per tier.
const CurrentTierIndex = "ux_product_prices_current_tier"

// Repository is the price record store. Rows are only ever inserted or closed.
type Repository struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewRepository binds a price store to the provided database handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, clock: clock.System()}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx, clock: r.clock}
}

// Insert persists a new open record and assigns its ID. A zero ValidFrom is
// stamped with the store clock. A duplicate open tier fails with a unique
// violation (see db.IsUniqueViolation).
func (r *Repository) Insert(ctx context.Context, price *models.ProductPrice) error {
	if price == nil {
		return errors.New("price record is required")
	}
	if price.ValidFrom.IsZero() {
		price.ValidFrom = r.clock.Now()
	}
	price.ValidTo = nil
	return r.db.WithContext(ctx).Create(price).Error
}

// CloseCurrent ends the open record for the tier at closedAt. The update is
// conditional on end_date IS NULL so two racing closers cannot both succeed;
// it reports how many rows were closed.
func (r *Repository) CloseCurrent(ctx context.Context, productID int64, quantity decimal.Decimal, closedAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductPrice{}).
		Where("product_id = ? AND quantity = ? AND end_date IS NULL", productID, quantity).
		Update("end_date", closedAt)
	return res.RowsAffected, res.Error
}

// Expire closes a tier without a replacement.
func (r *Repository) Expire(ctx context.Context, productID int64, quantity decimal.Decimal, at time.Time) (int64, error) {
	return r.CloseCurrent(ctx, productID, quantity, at)
}

// ExpireAllForProduct closes every open tier of a product.
func (r *Repository) ExpireAllForProduct(ctx context.Context, productID int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductPrice{}).
		Where("product_id = ? AND end_date IS NULL", productID).
		Update("end_date", at)
	return res.RowsAffected, res.Error
}

// FindCurrentByProduct lists open tiers of a product in display order.
func (r *Repository) FindCurrentByProduct(ctx context.Context, productID int64) ([]models.ProductPrice, error) {
	var rows []models.ProductPrice
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND end_date IS NULL", productID).
		Order("quantity ASC").
		Find(&rows).Error
	return rows, err
}

// FindCurrentAll lists open tiers across the catalog.
func (r *Repository) FindCurrentAll(ctx context.Context) ([]models.ProductPrice, error) {
	var rows []models.ProductPrice
	err := r.db.WithContext(ctx).
		Where("end_date IS NULL").
		Order("product_id ASC").
		Order("quantity ASC").
		Find(&rows).Error
	return rows, err
}

// FindByProduct returns the full history of a product, most recent first.
func (r *Repository) FindByProduct(ctx context.Context, productID int64) ([]models.ProductPrice, error) {
	var rows []models.ProductPrice
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("start_date DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// FindByTier returns the open record for one tier, or nil when the tier has
// no current price.
func (r *Repository) FindByTier(ctx context.Context, productID int64, quantity decimal.Decimal) (*models.ProductPrice, error) {
	var row models.ProductPrice
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND quantity = ? AND end_date IS NULL", productID, quantity).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindEffectiveAt returns the record of a tier whose interval covers at.
func (r *Repository) FindEffectiveAt(ctx context.Context, productID int64, quantity decimal.Decimal, at time.Time) (*models.ProductPrice, error) {
	var row models.ProductPrice
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND quantity = ?", productID, quantity).
		Where("start_date <= ? AND (end_date IS NULL OR end_date > ?)", at, at).
		Order("start_date DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByID returns a record regardless of whether it is still current.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.ProductPrice, error) {
	var row models.ProductPrice
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ExistsCurrentTier reports whether the tier has an open record.
func (r *Repository) ExistsCurrentTier(ctx context.Context, productID int64, quantity decimal.Decimal) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductPrice{}).
		Where("product_id = ? AND quantity = ? AND end_date IS NULL", productID, quantity).
		Count(&count).Error
	return count > 0, err
}
