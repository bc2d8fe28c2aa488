package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tripsplit/internal/money"
)

// Option customizes the settlement computations.
type Option func(*config)

type config struct {
	decimalPlaces int32
	mode          money.RoundingMode
	target        money.RemainderTarget
	rng           money.RandomSource
	baseCurrency  string
	settled       []MinimalTransfer
	now           func() time.Time
	newID         func() string
}

func newConfig(opts []Option) *config {
	c := &config{
		decimalPlaces: 2,
		mode:          money.RoundHalfUp,
		target:        money.LargestShare,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *config) unit() decimal.Decimal {
	return money.Unit(c.decimalPlaces)
}

// WithDecimalPlaces sets the currency's decimal places (2 for USD, 0 for
// JPY, 3 for KWD). Equal and weighted shares are rounded to it and it
// defines the minimal unit below which balances count as settled.
func WithDecimalPlaces(places int32) Option {
	return func(c *config) { c.decimalPlaces = places }
}

// WithRoundingMode sets how equal and weighted shares are rounded.
func WithRoundingMode(mode money.RoundingMode) Option {
	return func(c *config) { c.mode = mode }
}

// WithRemainderTarget sets who absorbs leftover units of equal and weighted
// splits.
func WithRemainderTarget(target money.RemainderTarget) Option {
	return func(c *config) { c.target = target }
}

// WithRandomSource sets the generator for the random remainder target.
func WithRandomSource(rng money.RandomSource) Option {
	return func(c *config) { c.rng = rng }
}

// WithBaseCurrency makes aggregation skip expenses in any other currency.
func WithBaseCurrency(code string) Option {
	return func(c *config) { c.baseCurrency = code }
}

// WithSettledTransfers feeds already-paid transfers back into aggregation
// so the debts they cleared are not settled twice. Unsettled entries are
// ignored.
func WithSettledTransfers(transfers []MinimalTransfer) Option {
	return func(c *config) { c.settled = transfers }
}

// WithClock overrides the time stamped on computed transfers.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithIDGenerator overrides how transfer ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(c *config) { c.newID = newID }
}
