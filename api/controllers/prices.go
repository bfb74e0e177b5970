package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fssa-batch3/homebakery-backend/api/responses"
	"github.com/fssa-batch3/homebakery-backend/api/validators"
	"github.com/fssa-batch3/homebakery-backend/internal/pricing"
	pkgerrors "github.com/fssa-batch3/homebakery-backend/pkg/errors"
	"github.com/fssa-batch3/homebakery-backend/pkg/logger"
)

type tierRequest struct {
	Quantity json.Number `json:"quantity" validate:"required,decimal_positive"`
	Unit     string      `json:"unit" validate:"required"`
	Amount   json.Number `json:"amount" validate:"required,decimal_positive"`
}

func (r tierRequest) toInput() (pricing.TierInput, error) {
	quantity, err := parseDecimalField("quantity", r.Quantity)
	if err != nil {
		return pricing.TierInput{}, err
	}
	amount, err := parseDecimalField("amount", r.Amount)
	if err != nil {
		return pricing.TierInput{}, err
	}
	unit, err := pricing.ParseUnit(r.Unit)
	if err != nil {
		return pricing.TierInput{}, err
	}
	return pricing.TierInput{Quantity: quantity, Unit: unit, Amount: amount}, nil
}

type updateTierRequest struct {
	Amount json.Number `json:"amount" validate:"required,decimal_positive"`
}

func parseDecimalField(field string, raw json.Number) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decimal").WithDetails(map[string]any{"field": field})
	}
	return value, nil
}

// ListCurrentPrices returns the storefront price sheet.
func ListCurrentPrices(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sheet, err := svc.AllCurrentPrices(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sheet)
	}
}

// ResolvePrice returns a price record by id, open or closed.
func ResolvePrice(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		priceID, err := validators.ParseIDParam(r, "priceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := svc.ResolveForOrder(r.Context(), priceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, price)
	}
}

func ProductCurrentPrices(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		prices, err := svc.CurrentPricesFor(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, prices)
	}
}

func CreateProductPrice(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload tierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := svc.CreateTier(r.Context(), productID, input.Amount, input.Quantity, input.Unit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, price)
	}
}

func ProductPriceHistory(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		history, err := svc.HistoryFor(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, history)
	}
}

// ProductPriceAtTier returns the current record for a tier, or the record that
// was effective at the RFC 3339 instant given in ?at=.
func ProductPriceAtTier(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, quantity, err := tierParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var price *pricing.PriceDTO
		if raw := strings.TrimSpace(r.URL.Query().Get("at")); raw != "" {
			at, parseErr := time.Parse(time.RFC3339, raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "at must be an RFC 3339 timestamp").WithDetails(map[string]any{"field": "at"}))
				return
			}
			price, err = svc.PriceAsOf(r.Context(), productID, quantity, at)
		} else {
			price, err = svc.PriceAtTier(r.Context(), productID, quantity)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, price)
	}
}

func UpdateProductPrice(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, quantity, err := tierParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateTierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := parseDecimalField("amount", payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := svc.UpdateTier(r.Context(), productID, quantity, amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, price)
	}
}

func ExpireProductPrice(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, quantity, err := tierParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ExpireTier(r.Context(), productID, quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func tierParams(r *http.Request) (int64, decimal.Decimal, error) {
	productID, err := validators.ParseIDParam(r, "productId")
	if err != nil {
		return 0, decimal.Zero, err
	}
	quantity, err := validators.ParseDecimalParam(r, "quantity")
	if err != nil {
		return 0, decimal.Zero, err
	}
	return productID, quantity, nil
}
