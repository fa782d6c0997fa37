package i18n

import (
	"strings"
	"testing"
)

func TestFormatMoney(t *testing.T) {
	f := NewFormatter("en-US")

	got := f.FormatMoney(1250, "USD")
	if !strings.Contains(got, "1,250") {
		t.Fatalf("FormatMoney() = %q, want it to contain grouped thousands", got)
	}
	if !strings.Contains(got, "USD") {
		t.Fatalf("FormatMoney() = %q, want it to contain the currency code", got)
	}
}

func TestFormatMoneyUnknownCurrencyFallsBackToPlainNumber(t *testing.T) {
	f := NewFormatter("en-US")
	got := f.FormatMoney(42.5, "NOT_A_CURRENCY")
	if !strings.Contains(got, "42.50") {
		t.Fatalf("FormatMoney() with bad currency code = %q, want a plain numeric fallback", got)
	}
}

func TestFormatPercent(t *testing.T) {
	f := NewFormatter("en-US")
	if got := f.FormatPercent(12.5, 2); got != "12.50%" {
		t.Fatalf("FormatPercent() = %q, want %q", got, "12.50%")
	}
}

func TestNewFormatterFallsBackOnBadLocale(t *testing.T) {
	f := NewFormatter("not-a-locale-tag!!")
	if got := f.FormatPercent(1, 0); got != "1%" {
		t.Fatalf("FormatPercent() with fallback formatter = %q, want %q", got, "1%")
	}
}
