// Package money holds the decimal rounding primitives shared by the
// allocation and settlement engines. Amounts are always shopspring
// decimals; nothing in this package touches float64.
package money

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// DivisionPlaces is the number of fractional digits kept by Div.
const DivisionPlaces int32 = 28

// snapPlaces absorbs the residue Div leaves behind (e.g. 3 × 10/3) before a
// value is rounded to a currency precision.
const snapPlaces int32 = 20

// RoundingMode selects how a value is brought onto a precision grid.
type RoundingMode string

const (
	RoundHalfUp   RoundingMode = "roundHalfUp"
	RoundHalfEven RoundingMode = "roundHalfEven"
	Floor         RoundingMode = "floor"
	Ceil          RoundingMode = "ceil"
)

// Valid reports whether m is a known rounding mode.
func (m RoundingMode) Valid() bool {
	switch m {
	case RoundHalfUp, RoundHalfEven, Floor, Ceil:
		return true
	}
	return false
}

// RemainderTarget decides who absorbs the minimal units left over after
// every share has been rounded.
type RemainderTarget string

const (
	LargestShare RemainderTarget = "largestShare"
	Payer        RemainderTarget = "payer"
	FirstListed  RemainderTarget = "firstListed"
	Random       RemainderTarget = "random"
)

// Valid reports whether t is a known remainder target.
func (t RemainderTarget) Valid() bool {
	switch t {
	case LargestShare, Payer, FirstListed, Random:
		return true
	}
	return false
}

// RandomSource picks an index in [0, n). *rand.Rand from math/rand/v2
// satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// Div divides a by b keeping DivisionPlaces digits. b must not be zero.
func Div(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, DivisionPlaces)
}

// Percent returns value% of basis.
func Percent(value, basis decimal.Decimal) decimal.Decimal {
	return basis.Mul(value).Shift(-2)
}

// MaxDecimalPlaces bounds the precision a caller may ask for.
const MaxDecimalPlaces = 18

// Unit returns the minimal unit for a currency with the given number of
// decimal places: 0.01 for 2, 1 for 0, 0.001 for 3.
func Unit(decimalPlaces int32) decimal.Decimal {
	return decimal.New(1, -decimalPlaces)
}

// Round brings v onto the grid defined by precision. The mode is applied to
// v / precision and the result is scaled back, so a precision of 0.05
// rounds to nickels.
func Round(v, precision decimal.Decimal, mode RoundingMode) decimal.Decimal {
	q := v.DivRound(precision, DivisionPlaces).Round(snapPlaces)
	switch mode {
	case RoundHalfEven:
		q = q.RoundBank(0)
	case Floor:
		q = q.Floor()
	case Ceil:
		q = q.Ceil()
	default:
		q = q.Round(0)
	}
	return q.Mul(precision)
}

// Sum adds up values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Candidate is one participant eligible to absorb a remainder unit.
type Candidate struct {
	ID     string
	Amount decimal.Decimal
}

// Distribution is the outcome of spreading a remainder.
type Distribution struct {
	// Adjustments holds the signed amount added to each candidate; untouched
	// candidates are absent.
	Adjustments map[string]decimal.Decimal
	// PayerMissing is set when the payer target was requested but the payer
	// was not a candidate, in which case largestShare was used instead.
	PayerMissing bool
}

// Distribute spreads remainder over candidates in steps of precision.
// Candidates must be in declaration order. rng is only consulted for the
// Random target; a nil rng panics in that mode.
func Distribute(remainder, precision decimal.Decimal, candidates []Candidate, target RemainderTarget, payerID string, rng RandomSource) Distribution {
	d := Distribution{Adjustments: make(map[string]decimal.Decimal)}
	if remainder.IsZero() || len(candidates) == 0 {
		return d
	}

	units := remainder.DivRound(precision, 0).IntPart()
	step := precision
	if units < 0 {
		step = precision.Neg()
		units = -units
	}

	add := func(id string, n int64) {
		if n == 0 {
			return
		}
		d.Adjustments[id] = d.Adjustments[id].Add(step.Mul(decimal.NewFromInt(n)))
	}

	switch target {
	case Payer:
		for _, c := range candidates {
			if c.ID == payerID {
				add(payerID, units)
				return d
			}
		}
		d.PayerMissing = true
	case FirstListed:
		add(candidates[0].ID, units)
		return d
	case Random:
		for range units {
			add(candidates[rng.IntN(len(candidates))].ID, 1)
		}
		return d
	}

	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b Candidate) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	for i := range units {
		add(ranked[int(i%int64(len(ranked)))].ID, 1)
	}
	return d
}
