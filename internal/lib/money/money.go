// Package money formats decimal amounts for display.
package money

import (
	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// USD renders an amount as US dollars, e.g. "$1,234.56", rounding half away from zero to cents.
func USD(amount decimal.Decimal) string {
	return Format(amount, gomoney.USD)
}

// Format renders an amount in the given ISO 4217 currency.
func Format(amount decimal.Decimal, code string) string {
	m := gomoney.New(0, code)
	fraction := int32(m.Currency().Fraction)
	minor := amount.Round(fraction).Shift(fraction).IntPart()
	return gomoney.New(minor, code).Display()
}
