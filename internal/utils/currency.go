package utils

import (
	"fmt"
	"math"
)

// RoundCurrency rounds an amount to the currency's minor unit (2 decimals).
func RoundCurrency(amount float64) float64 {
	return math.Round(amount*100) / 100
}

func FormatCurrency(amount float64, currencyCode string) string {
	if currencyCode == "" {
		currencyCode = DefaultCurrency
	}
	return fmt.Sprintf("%.2f %s", RoundCurrency(amount), currencyCode)
}
