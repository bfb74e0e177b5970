package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fssa-batch3/homebakery-backend/internal/pricing"
	"github.com/fssa-batch3/homebakery-backend/pkg/clock"
	"github.com/fssa-batch3/homebakery-backend/pkg/db/models"
	"github.com/fssa-batch3/homebakery-backend/pkg/enums"
	pkgerrors "github.com/fssa-batch3/homebakery-backend/pkg/errors"
	"github.com/fssa-batch3/homebakery-backend/pkg/logger"
	"github.com/fssa-batch3/homebakery-backend/pkg/pagination"
	"github.com/google/uuid"
)

const maxAddressLength = 500

// ProductGate reports whether a product is still sold.
type ProductGate interface {
	IsActiveProduct(ctx context.Context, productID int64) (bool, error)
}

// Service places orders against price records and reads them back at the
// price they were placed for.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	ListOrdersForUser(ctx context.Context, userID int64, params pagination.Params) (*OrderListResult, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*OrderDTO, error)
}

type ServiceParams struct {
	Repo    *Repository
	Pricing pricing.Service
	Gate    ProductGate
	Clock   clock.Clock
	Logger  *logger.Logger
}

type service struct {
	repo    *Repository
	pricing pricing.Service
	gate    ProductGate
	clock   clock.Clock
	logg    *logger.Logger
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, errors.New("orders repository required")
	}
	if p.Pricing == nil {
		return nil, errors.New("pricing service required")
	}
	if p.Gate == nil {
		return nil, errors.New("product gate required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &service{repo: p.Repo, pricing: p.Pricing, gate: p.Gate, clock: clk, logg: p.Logger}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderDTO, error) {
	input.Address = strings.TrimSpace(input.Address)
	if err := s.validatePlace(input); err != nil {
		return nil, err
	}

	price, err := s.pricing.ResolveForOrder(ctx, input.PriceID)
	if err != nil {
		return nil, err
	}
	if !price.Current {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "price is no longer current").
			WithDetails(map[string]any{"price_id": price.ID, "product_id": price.ProductID})
	}

	active, err := s.gate.IsActiveProduct(ctx, price.ProductID)
	if err != nil {
		return nil, pkgerrors.Store(err, "db: check product")
	}
	if !active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": price.ProductID})
	}

	order := &models.Order{
		ID:           uuid.New(),
		UserID:       input.UserID,
		ProductID:    price.ProductID,
		PriceID:      price.ID,
		Quantity:     input.Quantity,
		Address:      input.Address,
		DeliveryDate: input.DeliveryDate.UTC(),
		Status:       enums.OrderStatusNotDelivered,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Store(err, "db: insert order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":   order.ID.String(),
		"price_id":   price.ID,
		"product_id": price.ProductID,
	})
	s.logg.Info(logCtx, "order.placed")

	dto := toDTO(*order, *price)
	return &dto, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withPrice(ctx, *order)
}

func (s *service) ListOrdersForUser(ctx context.Context, userID int64, params pagination.Params) (*OrderListResult, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id must be positive")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Store(err, "db: list orders")
	}
	rows, more := pagination.Page(rows, params.Limit)

	result := &OrderListResult{Orders: make([]OrderDTO, 0, len(rows))}
	for _, row := range rows {
		dto, err := s.withPrice(ctx, row)
		if err != nil {
			return nil, err
		}
		result.Orders = append(result.Orders, *dto)
	}
	if more && len(rows) > 0 {
		last := rows[len(rows)-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID.String()})
	}
	return result, nil
}

// UpdateOrderStatus moves an undelivered order to DELIVERED or CANCELLED.
// Both are terminal.
func (s *service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	if !status.IsValid() || status == enums.OrderStatusNotDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be DELIVERED or CANCELLED").
			WithDetails(map[string]any{"status": status.String()})
	}
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusNotDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already closed").
			WithDetails(map[string]any{"order_id": id.String(), "status": order.Status.String()})
	}

	updated, err := s.repo.UpdateStatus(ctx, id, enums.OrderStatusNotDelivered, status)
	if err != nil {
		return nil, pkgerrors.Store(err, "db: update order status")
	}
	if updated == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently").
			WithDetails(map[string]any{"order_id": id.String()})
	}
	order.Status = status

	logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": id.String(), "status": status.String()})
	s.logg.Info(logCtx, "order.status_updated")
	return s.withPrice(ctx, *order)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Store(err, "db: load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"order_id": id.String()})
	}
	return order, nil
}

func (s *service) withPrice(ctx context.Context, order models.Order) (*OrderDTO, error) {
	price, err := s.pricing.ResolveForOrder(ctx, order.PriceID)
	if err != nil {
		return nil, err
	}
	dto := toDTO(order, *price)
	return &dto, nil
}

func (s *service) validatePlace(input PlaceOrderInput) error {
	today := s.clock.Now().Truncate(24 * time.Hour)
	switch {
	case input.UserID <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "user_id must be positive")
	case input.PriceID <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "price_id must be positive")
	case input.Quantity <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"quantity": input.Quantity})
	case input.Address == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	case len(input.Address) > maxAddressLength:
		return pkgerrors.New(pkgerrors.CodeValidation, "address is too long")
	case input.DeliveryDate.IsZero():
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery_date is required")
	case input.DeliveryDate.UTC().Before(today):
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery_date must not be in the past").
			WithDetails(map[string]any{"delivery_date": input.DeliveryDate.UTC()})
	}
	return nil
}
