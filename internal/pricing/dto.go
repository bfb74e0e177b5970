package pricing

import (
	"time"

	"github.com/fssa-batch3/homebakery-backend/pkg/db/models"
	"github.com/fssa-batch3/homebakery-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// PriceDTO is the read view of one price record.
type PriceDTO struct {
	ID        int64              `json:"id"`
	ProductID int64              `json:"product_id"`
	Quantity  decimal.Decimal    `json:"quantity"`
	Unit      enums.QuantityUnit `json:"unit"`
	Amount    decimal.Decimal    `json:"amount"`
	ValidFrom time.Time          `json:"valid_from"`
	ValidTo   *time.Time         `json:"valid_to,omitempty"`
	Current   bool               `json:"current"`
}

// TierInput describes a tier to introduce for a product.
type TierInput struct {
	Quantity decimal.Decimal
	Unit     enums.QuantityUnit
	Amount   decimal.Decimal
}

func toDTO(row models.ProductPrice) PriceDTO {
	return PriceDTO{
		ID:        row.ID,
		ProductID: row.ProductID,
		Quantity:  row.Quantity,
		Unit:      row.Unit,
		Amount:    row.Amount,
		ValidFrom: row.ValidFrom,
		ValidTo:   row.ValidTo,
		Current:   row.IsCurrent(),
	}
}

func toDTOs(rows []models.ProductPrice) []PriceDTO {
	out := make([]PriceDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out
}
