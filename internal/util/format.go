package util

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Preferences are the per-deployment display and alerting settings. They are
// passed explicitly to whatever needs them.
type Preferences struct {
	CurrencyCode      string
	CurrencySymbol    string
	LowStockThreshold int
}

// DefaultPreferences returns the settings used when nothing is configured
func DefaultPreferences() Preferences {
	return Preferences{
		CurrencyCode:      "USD",
		CurrencySymbol:    "$",
		LowStockThreshold: 5,
	}
}

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders an amount with two decimals, thousands separators and
// the configured symbol, e.g. "$1,234.50" or "-$3.00". Without a symbol the
// ISO code is used as a prefix.
func FormatMoney(prefs Preferences, amount decimal.Decimal) string {
	rounded := amount.Round(2)
	abs := rounded.Abs()
	whole := abs.Truncate(0)
	cents := abs.Sub(whole).Shift(2).IntPart()

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	return sign + currencyPrefix(prefs) + moneyPrinter.Sprintf("%d", whole.IntPart()) + fmt.Sprintf(".%02d", cents)
}

func currencyPrefix(prefs Preferences) string {
	if prefs.CurrencySymbol != "" {
		return prefs.CurrencySymbol
	}
	if unit, err := currency.ParseISO(strings.TrimSpace(prefs.CurrencyCode)); err == nil {
		return unit.String() + " "
	}
	return strings.TrimSpace(prefs.CurrencyCode) + " "
}
