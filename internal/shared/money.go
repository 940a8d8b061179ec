package shared

import "github.com/shopspring/decimal"

// Monetary amounts round to 2 decimals, inventory unit costs to 4. Rounding
// happens at every computation step so sub-ledger totals stay reconcilable
// with their GL control accounts over long histories.

// Round2 rounds a decimal to 2 places (half up).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Round4 rounds a decimal to 4 places (half up).
func Round4(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}

// Money2 converts a float64 amount to a decimal rounded to 2 places.
func Money2(v float64) decimal.Decimal {
	return Round2(decimal.NewFromFloat(v))
}

// Float2 rounds a decimal to 2 places and returns it as float64 for the
// ledger boundary, which scans NUMERIC columns into float64.
func Float2(d decimal.Decimal) float64 {
	f, _ := Round2(d).Float64()
	return f
}

// Float4 rounds a decimal to 4 places and returns it as float64.
func Float4(d decimal.Decimal) float64 {
	f, _ := Round4(d).Float64()
	return f
}
