package money

import "github.com/shopspring/decimal"

// Monetary amounts are fixed-point decimals quantized to two places.
// All arithmetic happens at full precision; quantize at persistence and
// presentation boundaries.

// Quantize rounds an amount to two decimal places.
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Zero is the canonical zero amount.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// Min returns the smaller of two amounts.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThanOrEqual(b) {
		return a
	}
	return b
}

// Subunits converts a major-unit amount to integer subunits (paise for
// INR). Gateways bill in subunits.
func Subunits(d decimal.Decimal) int64 {
	return Quantize(d).Mul(decimal.NewFromInt(100)).IntPart()
}

// FromSubunits converts integer subunits back to a major-unit amount.
func FromSubunits(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Div(decimal.NewFromInt(100))
}
