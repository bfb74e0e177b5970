package models

import (
	"time"

	"github.com/fssa-batch3/homebakery-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// ProductPrice is one interval of a tier's price history. A nil ValidTo marks
// the current price; the only permitted update sets ValidTo once.
type ProductPrice struct {
	ID        int64              `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID int64              `gorm:"column:product_id;not null"`
	Quantity  decimal.Decimal    `gorm:"column:quantity;type:numeric(10,3);not null"`
	Unit      enums.QuantityUnit `gorm:"column:type;type:quantity_unit;not null"`
	Amount    decimal.Decimal    `gorm:"column:price;type:numeric(10,2);not null"`
	ValidFrom time.Time          `gorm:"column:start_date;not null"`
	ValidTo   *time.Time         `gorm:"column:end_date"`
}

func (ProductPrice) TableName() string { return "product_prices" }

// IsCurrent reports whether the record is still open-ended.
func (p ProductPrice) IsCurrent() bool {
	return p.ValidTo == nil
}

// ActiveAt reports whether the record's interval covers t.
func (p ProductPrice) ActiveAt(t time.Time) bool {
	if t.Before(p.ValidFrom) {
		return false
	}
	return p.ValidTo == nil || t.Before(*p.ValidTo)
}
