// Package i18n renders the money and percentage figures that go into
// notification bodies (spec §6) in a locale-aware, currency-correct form
// rather than a bare fmt.Sprintf("%.2f").
//
// Trimmed from the teacher's i18n/formatter.go: this module has no
// per-user locale preference or date/time display surface (no Non-goal
// names it, but nothing in SPEC_FULL.md produces a dated UI string), so
// only the currency/number formatting half survives, generalized to take
// a currency code per call instead of being bound to one language at
// construction.
package i18n

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders values for a single display locale. Contests and
// wallets are denominated in a single platform currency (spec §3), so
// callers pass the ISO 4217 code per call rather than threading a
// currency through construction.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter builds a Formatter for the given BCP 47 locale tag, e.g.
// "en-US". An unparseable tag falls back to language.English rather than
// failing a notification send over a cosmetic concern.
func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag)}
}

// FormatMoney renders value in currencyCode with locale-appropriate
// grouping, e.g. "USD 1,250.00". Falls back to a plain numeric string if
// currencyCode isn't a recognized ISO 4217 code.
func (f *Formatter) FormatMoney(value float64, currencyCode string) string {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return f.printer.Sprintf("%.2f", value)
	}
	return f.printer.Sprintf("%s %.2f", unit, value)
}

// FormatPercent renders value (already scaled, e.g. 12.5 means 12.5%)
// with decimals digits, e.g. "12.50%".
func (f *Formatter) FormatPercent(value float64, decimals int) string {
	return f.printer.Sprintf("%.*f%%", decimals, value)
}
