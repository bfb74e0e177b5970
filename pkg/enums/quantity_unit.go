package enums

import (
	"fmt"
	"strings"
)

// QuantityUnit describes how a price tier's quantity is measured.
type QuantityUnit string

const (
	// QuantityUnitKG is a weighed tier, e.g. 0.5 KG of cookies.
	QuantityUnitKG QuantityUnit = "KG"
	// QuantityUnitNOS counts pieces ("numbers"), e.g. 6 NOS of cupcakes.
	QuantityUnitNOS QuantityUnit = "NOS"
)

var validQuantityUnits = []QuantityUnit{
	QuantityUnitKG,
	QuantityUnitNOS,
}

// String implements fmt.Stringer.
func (u QuantityUnit) String() string {
	return string(u)
}

// IsValid reports whether the unit is recognized.
func (u QuantityUnit) IsValid() bool {
	for _, candidate := range validQuantityUnits {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseQuantityUnit converts raw input into a QuantityUnit, ignoring case.
func ParseQuantityUnit(value string) (QuantityUnit, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validQuantityUnits {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quantity unit %q", value)
}
