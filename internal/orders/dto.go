package orders

import (
	"time"

	"github.com/fssa-batch3/homebakery-backend/internal/pricing"
	"github.com/fssa-batch3/homebakery-backend/pkg/db/models"
	"github.com/fssa-batch3/homebakery-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlaceOrderInput is a buyer's request against one price record.
type PlaceOrderInput struct {
	UserID       int64
	PriceID      int64
	Quantity     int
	Address      string
	DeliveryDate time.Time
}

// OrderDTO is an order together with the price record it was placed against.
// LineTotal is always computed from that record, never from the current tier.
type OrderDTO struct {
	ID           uuid.UUID         `json:"id"`
	UserID       int64             `json:"user_id"`
	ProductID    int64             `json:"product_id"`
	Quantity     int               `json:"quantity"`
	Address      string            `json:"address"`
	DeliveryDate time.Time         `json:"delivery_date"`
	Status       enums.OrderStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	Price        pricing.PriceDTO  `json:"price"`
	LineTotal    decimal.Decimal   `json:"line_total"`
}

// OrderListResult is one page of a user's orders.
type OrderListResult struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func toDTO(order models.Order, price pricing.PriceDTO) OrderDTO {
	return OrderDTO{
		ID:           order.ID,
		UserID:       order.UserID,
		ProductID:    order.ProductID,
		Quantity:     order.Quantity,
		Address:      order.Address,
		DeliveryDate: order.DeliveryDate,
		Status:       order.Status,
		CreatedAt:    order.CreatedAt,
		Price:        price,
		LineTotal:    price.Amount.Mul(decimal.NewFromInt(int64(order.Quantity))),
	}
}
