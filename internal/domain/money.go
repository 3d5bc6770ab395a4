package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PricePlaces is the number of decimal places prices are quoted in.
const PricePlaces = 2

// PriceFromFloat converts a float64 price to a decimal price.
// It validates that the input has at most 2 decimal places and returns
// an error if more precision is provided.
func PriceFromFloat(f float64) (decimal.Decimal, error) {
	d := decimal.NewFromFloat(f)
	if !d.Equal(d.Round(PricePlaces)) {
		return decimal.Zero, fmt.Errorf("prices must have at most %d decimal places", PricePlaces)
	}
	return d, nil
}

// PriceToFloat converts a decimal price back to float64 for JSON output.
func PriceToFloat(d decimal.Decimal) float64 {
	f, _ := d.Round(PricePlaces).Float64()
	return f
}

// RoundPrice rounds a price half away from zero to PricePlaces.
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(PricePlaces)
}
