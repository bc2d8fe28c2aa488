package settlement

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripsplit/internal/allocation"
	"github.com/mmynk/tripsplit/internal/money"
)

var one = decimal.NewFromInt(1)

// ComputeShares returns what each participant owes for one expense.
//
// Equal and weighted splits are rounded to the configured decimal places
// and reconciled so the shares add up to the rounded amount. Itemized
// expenses are delegated to allocation.ComputeBreakdown; a breakdown whose
// total disagrees with the declared amount is reported as a warning.
func ComputeShares(e Expense, opts ...Option) (map[string]decimal.Decimal, []allocation.Warning, error) {
	return computeShares(e, newConfig(opts))
}

func computeShares(e Expense, c *config) (map[string]decimal.Decimal, []allocation.Warning, error) {
	if e.Amount.IsNegative() {
		return nil, nil, allocation.NewValidationError("amount", "must not be negative, got %s", e.Amount)
	}
	if c.decimalPlaces < 0 || c.decimalPlaces > money.MaxDecimalPlaces {
		return nil, nil, allocation.NewValidationError("decimal_places", "must be between 0 and %d, got %d", money.MaxDecimalPlaces, c.decimalPlaces)
	}
	if !c.mode.Valid() {
		return nil, nil, allocation.NewValidationError("rounding_mode", "unknown rounding mode %q", c.mode)
	}
	if !c.target.Valid() {
		return nil, nil, allocation.NewValidationError("remainder_target", "unknown remainder target %q", c.target)
	}

	switch e.SplitType {
	case SplitEqual:
		if err := checkWeights(e, func(w decimal.Decimal) bool { return w.Equal(one) }, "must be 1 for an equal split"); err != nil {
			return nil, nil, err
		}
	case SplitWeighted:
		if err := checkWeights(e, decimal.Decimal.IsPositive, "must be greater than zero"); err != nil {
			return nil, nil, err
		}
	case SplitItemized:
		return itemizedShares(e, c)
	default:
		return nil, nil, allocation.NewValidationError("split_type", "unknown split type %q", e.SplitType)
	}

	ids := slices.Sorted(maps.Keys(e.Participants))
	weights := decimal.Zero
	for _, id := range ids {
		weights = weights.Add(e.Participants[id])
	}

	unit := c.unit()
	candidates := make([]money.Candidate, len(ids))
	roundedSum := decimal.Zero
	for i, id := range ids {
		raw := money.Div(e.Amount.Mul(e.Participants[id]), weights)
		rounded := money.Round(raw, unit, c.mode)
		candidates[i] = money.Candidate{ID: id, Amount: rounded}
		roundedSum = roundedSum.Add(rounded)
	}

	rng := c.rng
	if c.target == money.Random && rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	remainder := money.Round(e.Amount, unit, c.mode).Sub(roundedSum)
	dist := money.Distribute(remainder, unit, candidates, c.target, e.PayerID, rng)

	var warnings []allocation.Warning
	if dist.PayerMissing {
		warnings = append(warnings, allocation.Warning{
			Kind:    allocation.WarnPayerNotParticipant,
			Subject: e.ID,
			Message: fmt.Sprintf("payer %q is not a participant; remainder went to the largest share", e.PayerID),
		})
	}

	shares := make(map[string]decimal.Decimal, len(ids))
	for _, cand := range candidates {
		shares[cand.ID] = cand.Amount.Add(dist.Adjustments[cand.ID])
	}
	return shares, warnings, nil
}

func checkWeights(e Expense, ok func(decimal.Decimal) bool, msg string) error {
	if len(e.Participants) == 0 {
		return allocation.NewValidationError("participants", "expense %q has no participants", e.ID)
	}
	for _, id := range slices.Sorted(maps.Keys(e.Participants)) {
		if id == "" {
			return allocation.NewValidationError("participants", "participant id must not be empty")
		}
		if w := e.Participants[id]; !ok(w) {
			return allocation.NewValidationError("participants", "weight of %q %s, got %s", id, msg, w)
		}
	}
	return nil
}

func itemizedShares(e Expense, c *config) (map[string]decimal.Decimal, []allocation.Warning, error) {
	if e.Itemization == nil {
		return nil, nil, allocation.NewValidationError("itemization", "itemized expense %q has no items", e.ID)
	}

	opts := []allocation.Option{allocation.WithParticipants(slices.Sorted(maps.Keys(e.Participants))...)}
	if c.rng != nil {
		opts = append(opts, allocation.WithRandomSource(c.rng))
	}
	it := e.Itemization
	res, err := allocation.ComputeBreakdown(it.Items, it.Extras, it.Rule, e.PayerID, opts...)
	if err != nil {
		return nil, nil, err
	}

	warnings := res.Warnings
	if diff := res.GrandTotal.Sub(e.Amount).Abs(); diff.GreaterThanOrEqual(it.Rule.Rounding.Precision) {
		warnings = append(warnings, allocation.Warning{
			Kind:    WarnAmountMismatch,
			Subject: e.ID,
			Message: fmt.Sprintf("items and extras add up to %s but the expense amount is %s", res.GrandTotal, e.Amount),
		})
	}
	return res.Totals(), warnings, nil
}
