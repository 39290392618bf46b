// Package format renders currency and percentage values for reports and pretty output.
package format

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencySymbol prefixes formatted currency amounts.
const CurrencySymbol = "₩"

var printer = message.NewPrinter(language.English)

// Currency returns a whole-unit currency string with a symbol and thousands separators (e.g., "-₩1,234,567").
func Currency(amount float64) string {
	rounded := int64(math.Round(math.Abs(amount)))
	if amount < 0 && rounded != 0 {
		return "-" + CurrencySymbol + printer.Sprintf("%d", rounded)
	}
	return CurrencySymbol + printer.Sprintf("%d", rounded)
}

// Percent renders a forecast percentage with no decimals (e.g., "250%").
func Percent(value float64) string {
	return printer.Sprintf("%.0f%%", value)
}

// SignedPercentPoints renders a difference in percentage points with an explicit sign (e.g., "+25.0%p").
func SignedPercentPoints(delta float64) string {
	if delta >= 0 {
		return printer.Sprintf("+%.1f%%p", delta)
	}
	return printer.Sprintf("%.1f%%p", delta)
}
