package product

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fssa-batch3/homebakery-backend/internal/pricing"
	"github.com/fssa-batch3/homebakery-backend/pkg/clock"
	"github.com/fssa-batch3/homebakery-backend/pkg/db"
	"github.com/fssa-batch3/homebakery-backend/pkg/db/models"
	pkgerrors "github.com/fssa-batch3/homebakery-backend/pkg/errors"
	"github.com/fssa-batch3/homebakery-backend/pkg/logger"
	"github.com/fssa-batch3/homebakery-backend/pkg/pagination"
	"gorm.io/gorm"
)

const maxNameLength = 100

// Service exposes catalog product management.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	GetProduct(ctx context.Context, productID int64) (*ProductDTO, error)
	ListProducts(ctx context.Context, params pagination.Params) (*ProductListResult, error)
	DeactivateProduct(ctx context.Context, productID int64) error
}

type ServiceParams struct {
	DB      *db.Client
	Repo    *Repository
	Pricing pricing.Service
	Clock   clock.Clock
	Logger  *logger.Logger
}

type service struct {
	db      *db.Client
	repo    *Repository
	pricing pricing.Service
	clock   clock.Clock
	logg    *logger.Logger
}

func NewService(p ServiceParams) (Service, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if p.Pricing == nil {
		return nil, fmt.Errorf("pricing service required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &service{db: p.DB, repo: p.Repo, pricing: p.Pricing, clock: clk, logg: p.Logger}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        input.Name,
		Description: input.Description,
		CategoryID:  input.CategoryID,
		IsVeg:       input.IsVeg,
		IsActive:    true,
	}
	var prices []pricing.PriceDTO
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, product); err != nil {
			return pkgerrors.Store(err, "db: insert product")
		}
		seeded, err := s.pricing.SeedTiers(ctx, tx, product.ID, input.Prices)
		if err != nil {
			return err
		}
		prices = seeded
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Store(err, "create product")
	}
	s.pricing.InvalidateSheet(ctx)

	logCtx := s.logg.WithFields(ctx, map[string]any{"product_id": product.ID, "tiers": len(prices)})
	s.logg.Info(logCtx, "product.created")

	dto := toDTO(*product, prices)
	return &dto, nil
}

func (s *service) GetProduct(ctx context.Context, productID int64) (*ProductDTO, error) {
	product, err := s.loadActive(ctx, productID)
	if err != nil {
		return nil, err
	}
	prices, err := s.pricing.CurrentPricesFor(ctx, productID)
	if err != nil {
		return nil, err
	}
	dto := toDTO(*product, prices)
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context, params pagination.Params) (*ProductListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		if _, err := strconv.ParseInt(cursor.ID, 10, 64); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
	}

	rows, err := s.repo.ListActive(ctx, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Store(err, "db: list products")
	}
	rows, more := pagination.Page(rows, params.Limit)

	sheet, err := s.pricing.AllCurrentPrices(ctx)
	if err != nil {
		return nil, err
	}
	byProduct := make(map[int64][]pricing.PriceDTO, len(rows))
	for _, price := range sheet {
		byProduct[price.ProductID] = append(byProduct[price.ProductID], price)
	}

	result := &ProductListResult{Products: make([]ProductDTO, 0, len(rows))}
	for _, row := range rows {
		result.Products = append(result.Products, toDTO(row, byProduct[row.ID]))
	}
	if more && len(rows) > 0 {
		last := rows[len(rows)-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        strconv.FormatInt(last.ID, 10),
		})
	}
	return result, nil
}

// DeactivateProduct hides the product and closes every open tier in one
// transaction. History and orders keep pointing at the closed records.
func (s *service) DeactivateProduct(ctx context.Context, productID int64) error {
	if _, err := s.loadActive(ctx, productID); err != nil {
		return err
	}

	var expired int64
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).Deactivate(ctx, productID, s.clock.Now())
		if err != nil {
			return pkgerrors.Store(err, "db: deactivate product")
		}
		if n == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "product changed concurrently").
				WithDetails(map[string]any{"product_id": productID})
		}
		expired, err = s.pricing.ExpireProductTiers(ctx, tx, productID)
		return err
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Store(err, "deactivate product")
	}
	s.pricing.InvalidateSheet(ctx)

	logCtx := s.logg.WithFields(ctx, map[string]any{"product_id": productID, "expired_tiers": expired})
	s.logg.Info(logCtx, "product.deactivated")
	return nil
}

func (s *service) loadActive(ctx context.Context, productID int64) (*models.Product, error) {
	if productID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id must be positive").
			WithDetails(map[string]any{"product_id": productID})
	}
	product, err := s.repo.FindActiveByID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Store(err, "db: load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": productID})
	}
	return product, nil
}

func validateCreate(input CreateProductInput) error {
	switch {
	case input.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case utf8.RuneCountInString(input.Name) > maxNameLength:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("name must be at most %d characters", maxNameLength))
	case input.CategoryID <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "category_id must be positive")
	case len(input.Prices) == 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one price tier is required")
	}
	return nil
}
