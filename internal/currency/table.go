// Package currency answers how many decimal places a currency uses. The
// engines never hardcode this; callers look it up here and pass it in.
package currency

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/currency"

	"github.com/mmynk/tripsplit/internal/money"
)

// ErrUnknownCurrency is returned for codes that are neither ISO 4217 nor
// configured as an override.
var ErrUnknownCurrency = errors.New("unknown currency")

// Table looks up the decimal places of a currency.
type Table interface {
	DecimalPlaces(code string) (int32, error)
}

// StandardTable resolves codes through the CLDR data bundled with
// golang.org/x/text, with per-code overrides taking precedence.
type StandardTable struct {
	overrides map[string]int32
}

var _ Table = (*StandardTable)(nil)

// NewTable returns a table with the given overrides, keyed by currency code
// (case-insensitive). Overrides may also introduce codes unknown to ISO 4217.
func NewTable(overrides map[string]int32) (*StandardTable, error) {
	t := &StandardTable{overrides: make(map[string]int32, len(overrides))}
	for code, places := range overrides {
		if places < 0 || places > money.MaxDecimalPlaces {
			return nil, fmt.Errorf("invalid decimal places %d for %s", places, code)
		}
		t.overrides[strings.ToUpper(code)] = places
	}
	return t, nil
}

// DecimalPlaces returns the number of fractional digits of code: 2 for USD,
// 0 for JPY and VND, 3 for BHD and KWD.
func (t *StandardTable) DecimalPlaces(code string) (int32, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if places, ok := t.overrides[code]; ok {
		return places, nil
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale), nil
}
