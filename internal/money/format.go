package money

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders amounts for table views using a locale and ISO currency.
type Formatter struct {
	printer *message.Printer
	unit    currency.Unit
}

// NewFormatter builds a formatter; locale is a BCP 47 tag and code an ISO 4217 code.
func NewFormatter(locale, code string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("money: parse locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("money: parse currency %q: %w", code, err)
	}
	return &Formatter{printer: message.NewPrinter(tag), unit: unit}, nil
}

// Currency returns the ISO code used by the formatter.
func (f *Formatter) Currency() string {
	if f == nil {
		return ""
	}
	return f.unit.String()
}

// Format renders a as "<ISO> <localised number>", e.g. "USD 110.00".
func (f *Formatter) Format(a Amount) string {
	if f == nil {
		return a.String()
	}
	return f.printer.Sprintf("%s %.2f", f.unit.String(), a.Float64())
}
