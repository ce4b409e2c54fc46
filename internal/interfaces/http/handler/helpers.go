package handler

import "github.com/shopspring/decimal"

// toDecimal bridges JSON money fields, bound as float64, into the
// decimal amounts the dealing domain computes with.
func toDecimal(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
