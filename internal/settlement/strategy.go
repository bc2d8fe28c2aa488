package settlement

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripsplit/internal/allocation"
)

// StrategyName identifies a settlement algorithm.
type StrategyName string

const (
	StrategyPairwise StrategyName = "pairwise"
	StrategyGreedy   StrategyName = "greedy"
)

// Strategy turns an aggregated ledger into settling transfers.
type Strategy interface {
	Name() StrategyName
	Settle(l *Ledger) []MinimalTransfer
}

// StrategyFor returns the strategy with the given name. The empty name
// selects pairwise netting.
func StrategyFor(name StrategyName) (Strategy, error) {
	switch name {
	case "", StrategyPairwise:
		return PairwiseStrategy{}, nil
	case StrategyGreedy:
		return GreedyStrategy{}, nil
	}
	return nil, allocation.NewValidationError("strategy", "unknown settlement strategy %q", name)
}

// PairwiseStrategy nets the mutual debts of every pair into at most one
// transfer. Every transfer is traceable to expenses the two people shared.
type PairwiseStrategy struct{}

func (PairwiseStrategy) Name() StrategyName { return StrategyPairwise }

func (PairwiseStrategy) Settle(l *Ledger) []MinimalTransfer {
	unit := l.cfg.unit()
	now := l.cfg.now()

	var out []MinimalTransfer
	for _, p := range slices.SortedFunc(maps.Keys(l.Debts), comparePairs) {
		net := l.Debts[p]
		if net.Abs().LessThan(unit) {
			continue
		}
		from, to := p.Low, p.High
		if net.IsNegative() {
			from, to = to, from
		}
		out = append(out, MinimalTransfer{
			ID:         l.cfg.newID(),
			TripID:     l.TripID,
			FromUserID: from,
			ToUserID:   to,
			AmountBase: net.Abs(),
			ComputedAt: now,
		})
	}
	return out
}

// GreedyStrategy repeatedly matches the largest creditor with the largest
// debtor. It minimizes the number of transfers but may connect people who
// never shared an expense.
//
// Deprecated: kept for compatibility; PairwiseStrategy is the default.
type GreedyStrategy struct{}

func (GreedyStrategy) Name() StrategyName { return StrategyGreedy }

func (GreedyStrategy) Settle(l *Ledger) []MinimalTransfer {
	return greedy(l.TripID, l.Summaries, l.cfg)
}

type balance struct {
	id        string
	remaining decimal.Decimal
}

func greedy(tripID string, summaries map[string]PersonSummary, c *config) []MinimalTransfer {
	unit := c.unit()
	var creditors, debtors []balance
	for id, s := range summaries {
		switch {
		case s.NetBase.GreaterThanOrEqual(unit):
			creditors = append(creditors, balance{id: id, remaining: s.NetBase})
		case s.NetBase.Neg().GreaterThanOrEqual(unit):
			debtors = append(debtors, balance{id: id, remaining: s.NetBase.Neg()})
		}
	}
	byMagnitude := func(a, b balance) int {
		if c := b.remaining.Cmp(a.remaining); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	}
	slices.SortFunc(creditors, byMagnitude)
	slices.SortFunc(debtors, byMagnitude)

	now := c.now()
	var out []MinimalTransfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := &debtors[i], &creditors[j]
		amount := decimal.Min(debtor.remaining, creditor.remaining)
		if amount.GreaterThanOrEqual(unit) {
			out = append(out, MinimalTransfer{
				ID:         c.newID(),
				TripID:     tripID,
				FromUserID: debtor.id,
				ToUserID:   creditor.id,
				AmountBase: amount,
				ComputedAt: now,
			})
		}
		debtor.remaining = debtor.remaining.Sub(amount)
		creditor.remaining = creditor.remaining.Sub(amount)
		if debtor.remaining.LessThan(unit) {
			i++
		}
		if creditor.remaining.LessThan(unit) {
			j++
		}
	}
	return out
}

// ComputePairwiseTransfers aggregates expenses and nets each pair's debts.
func ComputePairwiseTransfers(tripID string, expenses []Expense, opts ...Option) ([]MinimalTransfer, error) {
	l, err := BuildLedger(tripID, expenses, opts...)
	if err != nil {
		return nil, fmt.Errorf("build ledger: %w", err)
	}
	return PairwiseStrategy{}.Settle(l), nil
}

// ComputeMinimalTransfers runs the greedy creditor/debtor matching over
// already computed summaries.
//
// Deprecated: use ComputePairwiseTransfers.
func ComputeMinimalTransfers(tripID string, summaries map[string]PersonSummary, opts ...Option) []MinimalTransfer {
	return greedy(tripID, summaries, newConfig(opts))
}
