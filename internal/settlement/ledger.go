package settlement

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripsplit/internal/allocation"
)

// Ledger is the aggregated state of a trip: who paid and owes what, and
// the directed debt between every pair that shared an expense.
type Ledger struct {
	TripID    string
	Summaries map[string]PersonSummary
	// Debts holds, per pair, what Pair.Low owes Pair.High; a negative value
	// means High owes Low.
	Debts    map[Pair]decimal.Decimal
	Warnings []allocation.Warning

	cfg *config
}

// BuildLedger aggregates expenses into a Ledger.
//
// Each payer is credited with the amount of their expense and each
// participant is charged their share. When the shares do not cover the
// amount the expense gets an amount_mismatch warning and the nets no longer
// add up to zero, which Balanced reports. Expenses without a payer, in
// another currency than the configured base currency, or belonging to
// another trip are skipped with a warning. Invalid expenses fail the whole
// computation.
func BuildLedger(tripID string, expenses []Expense, opts ...Option) (*Ledger, error) {
	c := newConfig(opts)
	l := &Ledger{
		TripID:    tripID,
		Summaries: make(map[string]PersonSummary),
		Debts:     make(map[Pair]decimal.Decimal),
		cfg:       c,
	}
	paid := make(map[string]decimal.Decimal)
	owed := make(map[string]decimal.Decimal)

	for _, e := range expenses {
		if l.skip(e) {
			continue
		}

		shares, warnings, err := computeShares(e, c)
		if err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		l.Warnings = append(l.Warnings, warnings...)

		total := decimal.Zero
		for _, id := range slices.Sorted(maps.Keys(shares)) {
			share := shares[id]
			total = total.Add(share)
			owed[id] = owed[id].Add(share)
			l.addDebt(id, e.PayerID, share)
		}
		paid[e.PayerID] = paid[e.PayerID].Add(e.Amount)

		if e.SplitType != SplitItemized && total.Sub(e.Amount).Abs().GreaterThanOrEqual(c.unit()) {
			l.warn(WarnAmountMismatch, e.ID, "shares add up to %s but the expense amount is %s", total, e.Amount)
		}
	}

	// A settled transfer is a payment from FromUserID to ToUserID: it counts
	// as paid by the debtor and received by the creditor.
	for _, t := range c.settled {
		if !t.Settled() || (tripID != "" && t.TripID != "" && t.TripID != tripID) {
			continue
		}
		paid[t.FromUserID] = paid[t.FromUserID].Add(t.AmountBase)
		owed[t.ToUserID] = owed[t.ToUserID].Add(t.AmountBase)
		l.addDebt(t.ToUserID, t.FromUserID, t.AmountBase)
	}

	for id := range paid {
		l.ensure(id)
	}
	for id := range owed {
		l.ensure(id)
	}
	for id, s := range l.Summaries {
		s.TotalPaidBase = paid[id]
		s.TotalOwedBase = owed[id]
		s.NetBase = s.TotalPaidBase.Sub(s.TotalOwedBase)
		l.Summaries[id] = s
	}
	return l, nil
}

func (l *Ledger) skip(e Expense) bool {
	switch {
	case l.TripID != "" && e.TripID != "" && e.TripID != l.TripID:
		l.warn(WarnForeignTrip, e.ID, "expense belongs to trip %q", e.TripID)
	case e.PayerID == "":
		l.warn(WarnMissingPayer, e.ID, "expense has no payer and was left out")
	case l.cfg.baseCurrency != "" && !strings.EqualFold(e.Currency, l.cfg.baseCurrency):
		l.warn(WarnCurrencyMismatch, e.ID, "expense is in %s, not the base currency %s", e.Currency, l.cfg.baseCurrency)
	default:
		return false
	}
	return true
}

func (l *Ledger) warn(kind allocation.WarningKind, subject, format string, args ...any) {
	l.Warnings = append(l.Warnings, allocation.Warning{Kind: kind, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

func (l *Ledger) ensure(id string) {
	if _, ok := l.Summaries[id]; !ok {
		l.Summaries[id] = PersonSummary{UserID: id}
	}
}

// addDebt records that from owes to amount.
func (l *Ledger) addDebt(from, to string, amount decimal.Decimal) {
	if from == to {
		return
	}
	p := NewPair(from, to)
	if from == p.Low {
		l.Debts[p] = l.Debts[p].Add(amount)
	} else {
		l.Debts[p] = l.Debts[p].Sub(amount)
	}
}

// Balanced reports whether the ledger's nets add up to zero.
func (l *Ledger) Balanced() bool {
	return ValidateBalances(l.Summaries, l.cfg.decimalPlaces)
}

// ComputePersonSummaries aggregates expenses into per-person summaries in
// baseCurrency. An empty expense list yields an empty map.
func ComputePersonSummaries(expenses []Expense, baseCurrency string, opts ...Option) (map[string]PersonSummary, []allocation.Warning, error) {
	l, err := BuildLedger("", expenses, append(opts, WithBaseCurrency(baseCurrency))...)
	if err != nil {
		return nil, nil, err
	}
	return l.Summaries, l.Warnings, nil
}

// ValidateBalances reports whether the nets add up to zero within one
// minimal unit. A false result signals a bug upstream; callers should warn
// rather than fail.
func ValidateBalances(summaries map[string]PersonSummary, decimalPlaces int32) bool {
	sum := decimal.Zero
	for _, s := range summaries {
		sum = sum.Add(s.NetBase)
	}
	return sum.Abs().LessThanOrEqual(decimal.New(1, -decimalPlaces))
}
