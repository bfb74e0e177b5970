package product

import (
	"time"

	"github.com/fssa-batch3/homebakery-backend/internal/pricing"
	"github.com/fssa-batch3/homebakery-backend/pkg/db/models"
)

// ProductDTO is a catalog product together with its current price tiers.
type ProductDTO struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	CategoryID  int64              `json:"category_id"`
	IsVeg       bool               `json:"is_veg"`
	IsActive    bool               `json:"is_active"`
	CreatedAt   time.Time          `json:"created_at"`
	Prices      []pricing.PriceDTO `json:"prices"`
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name        string
	Description string
	CategoryID  int64
	IsVeg       bool
	Prices      []pricing.TierInput
}

// ProductListResult is one page of the catalog.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func toDTO(product models.Product, prices []pricing.PriceDTO) ProductDTO {
	if prices == nil {
		prices = []pricing.PriceDTO{}
	}
	return ProductDTO{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		CategoryID:  product.CategoryID,
		IsVeg:       product.IsVeg,
		IsActive:    product.IsActive,
		CreatedAt:   product.CreatedAt,
		Prices:      prices,
	}
}
