// Package money renders minor-unit amounts for API responses.
package money

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Format renders a minor-unit amount with its currency symbol, e.g. 450 USD
// becomes "$4.50". Unknown currency codes fall back to USD.
func Format(minor int64, code string) string {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		unit = currency.USD
	}
	negative := minor < 0
	if negative {
		minor = -minor
	}
	formatted := printer.Sprint(currency.Symbol(unit.Amount(float64(minor) / 100)))
	if negative {
		return "-" + formatted
	}
	return formatted
}
