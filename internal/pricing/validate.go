package pricing

import (
	"github.com/fssa-batch3/homebakery-backend/pkg/enums"
	pkgerrors "github.com/fssa-batch3/homebakery-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Column limits: quantity numeric(10,3), price numeric(10,2).
const (
	quantityScale = 3
	amountScale   = 2
)

var (
	maxQuantity = decimal.New(1, 7)
	maxAmount   = decimal.New(1, 8)
)

func tierDetails(productID int64, quantity decimal.Decimal) map[string]any {
	return map[string]any{
		"product_id": productID,
		"quantity":   quantity.String(),
	}
}

func validateProductID(productID int64) error {
	if productID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product_id must be positive").
			WithDetails(map[string]any{"product_id": productID})
	}
	return nil
}

func validateTierKey(productID int64, quantity decimal.Decimal) error {
	if err := validateProductID(productID); err != nil {
		return err
	}
	switch {
	case !quantity.IsPositive():
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").WithDetails(tierDetails(productID, quantity))
	case !fitsColumn(quantity, quantityScale, maxQuantity):
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds 3 decimal places or column range").WithDetails(tierDetails(productID, quantity))
	}
	return nil
}

func validateAmount(productID int64, quantity, amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		details := tierDetails(productID, quantity)
		details["amount"] = amount.String()
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").WithDetails(details)
	case !fitsColumn(amount, amountScale, maxAmount):
		details := tierDetails(productID, quantity)
		details["amount"] = amount.String()
		return pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds 2 decimal places or column range").WithDetails(details)
	}
	return nil
}

func validateTierInput(productID int64, in TierInput) error {
	if err := validateTierKey(productID, in.Quantity); err != nil {
		return err
	}
	if !in.Unit.IsValid() {
		details := tierDetails(productID, in.Quantity)
		details["unit"] = in.Unit.String()
		return pkgerrors.New(pkgerrors.CodeValidation, "unit must be one of KG, NOS").WithDetails(details)
	}
	return validateAmount(productID, in.Quantity, in.Amount)
}

func fitsColumn(v decimal.Decimal, scale int32, limit decimal.Decimal) bool {
	if !v.Equal(v.Truncate(scale)) {
		return false
	}
	return v.LessThan(limit)
}

// ParseUnit accepts a unit from request input.
func ParseUnit(raw string) (enums.QuantityUnit, error) {
	unit, err := enums.ParseQuantityUnit(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unit must be one of KG, NOS").
			WithDetails(map[string]any{"unit": raw})
	}
	return unit, nil
}
