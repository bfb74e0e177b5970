package models

import (
	"time"

	"github.com/fssa-batch3/homebakery-backend/pkg/enums"
	"github.com/google/uuid"
)

// Order snapshots the exact price record it was placed against through PriceID.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID       int64             `gorm:"column:user_id;not null"`
	ProductID    int64             `gorm:"column:product_id;not null"`
	PriceID      int64             `gorm:"column:price_id;not null"`
	Quantity     int               `gorm:"column:quantity;not null"`
	Address      string            `gorm:"column:address;not null"`
	DeliveryDate time.Time         `gorm:"column:delivery_date;not null"`
	Status       enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (Order) TableName() string { return "orders" }
