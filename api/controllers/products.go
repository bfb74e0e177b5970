package controllers

import (
	"net/http"
	"strings"

	"github.com/fssa-batch3/homebakery-backend/api/responses"
	"github.com/fssa-batch3/homebakery-backend/api/validators"
	"github.com/fssa-batch3/homebakery-backend/internal/pricing"
	productsvc "github.com/fssa-batch3/homebakery-backend/internal/products"
	"github.com/fssa-batch3/homebakery-backend/pkg/logger"
	"github.com/fssa-batch3/homebakery-backend/pkg/pagination"
)

type createProductRequest struct {
	Name        string        `json:"name" validate:"required,max=100"`
	Description string        `json:"description"`
	CategoryID  int64         `json:"category_id" validate:"required,gt=0"`
	IsVeg       bool          `json:"is_veg"`
	Prices      []tierRequest `json:"prices" validate:"required,min=1,dive"`
}

func (r createProductRequest) toCreateInput() (productsvc.CreateProductInput, error) {
	tiers := make([]pricing.TierInput, 0, len(r.Prices))
	for _, tier := range r.Prices {
		input, err := tier.toInput()
		if err != nil {
			return productsvc.CreateProductInput{}, err
		}
		tiers = append(tiers, input)
	}
	return productsvc.CreateProductInput{
		Name:        r.Name,
		Description: r.Description,
		CategoryID:  r.CategoryID,
		IsVeg:       r.IsVeg,
		Prices:      tiers,
	}, nil
}

// CreateProduct adds a catalog product together with its initial tiers.
func CreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListProducts(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// DeactivateProduct hides a product from the catalog and expires its tiers.
func DeactivateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeactivateProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
