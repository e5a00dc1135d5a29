// Package core provides amount parsing and display formatting.
//
// Amounts are carried as float64 through every computation. Formatting with
// locale grouping happens only at the edges (API responses, CLI output).
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ParseAmount converts a user-typed amount to a float64.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rejects signs, exponents and empty input. Zero is a valid amount.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-1")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return d.InexactFloat64(), nil
}

// Formatter renders amounts with the grouping rules of one locale.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter builds a formatter for a BCP 47 tag such as "en" or "de-DE".
// Unknown tags fall back to English.
func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag)}
}

// Format rounds half away from zero to two decimals and groups thousands.
func (f *Formatter) Format(v float64) string {
	rounded := decimal.NewFromFloat(v).Round(2).InexactFloat64()
	return f.printer.Sprint(number.Decimal(rounded, number.Scale(2)))
}
