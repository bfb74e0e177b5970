package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/fssa-batch3/homebakery-backend/api/responses"
	"github.com/fssa-batch3/homebakery-backend/api/validators"
	internalorders "github.com/fssa-batch3/homebakery-backend/internal/orders"
	"github.com/fssa-batch3/homebakery-backend/pkg/enums"
	pkgerrors "github.com/fssa-batch3/homebakery-backend/pkg/errors"
	"github.com/fssa-batch3/homebakery-backend/pkg/logger"
	"github.com/fssa-batch3/homebakery-backend/pkg/pagination"
)

const deliveryDateLayout = "2006-01-02"

type placeOrderRequest struct {
	UserID       int64  `json:"user_id" validate:"required,gt=0"`
	PriceID      int64  `json:"price_id" validate:"required,gt=0"`
	Quantity     int    `json:"quantity" validate:"required,min=1"`
	Address      string `json:"address" validate:"required,max=500"`
	DeliveryDate string `json:"delivery_date" validate:"required"`
}

func (r placeOrderRequest) toInput() (internalorders.PlaceOrderInput, error) {
	delivery, err := time.ParseInLocation(deliveryDateLayout, strings.TrimSpace(r.DeliveryDate), time.UTC)
	if err != nil {
		return internalorders.PlaceOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "delivery_date must be YYYY-MM-DD").WithDetails(map[string]any{"field": "delivery_date"})
	}
	return internalorders.PlaceOrderInput{
		UserID:       r.UserID,
		PriceID:      r.PriceID,
		Quantity:     r.Quantity,
		Address:      r.Address,
		DeliveryDate: delivery,
	}, nil
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// PlaceOrder records an order against the price record the buyer was shown.
func PlaceOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.PlaceOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ListForUser pages through one user's orders, newest first.
func ListForUser(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.ParseIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListOrdersForUser(r.Context(), userID, pagination.Params{
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

func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.UpdateOrderStatus(r.Context(), orderID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
