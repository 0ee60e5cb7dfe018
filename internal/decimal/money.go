package decimal

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Zero is decimal zero
var Zero = decimal.Zero

// Tolerance is the absolute tolerance for all currency comparisons.
// SEFAZ documents routinely carry rounding drift of a few cents.
var Tolerance = decimal.NewFromFloat(0.05)

// FromString parses decimal from string
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// ParseAmount parses a monetary value from an XML text node.
// Missing or unparseable values resolve to zero, never to an error:
// absence of a tax field is normal, not a failure.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero
	}
	return d
}

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// TaxFromBase computes round(base * rate/100, 2).
func TaxFromBase(base, ratePercent decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return base.Mul(ratePercent).Div(hundred).Round(2)
}

// WithinTolerance reports whether |a - b| <= Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders a value as Brazilian currency, e.g. "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return ptBR.Sprintf("R$ %v", number.Decimal(f, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
