package service

import (
	"github.com/mmynk/tripsplit/internal/money"
	"github.com/mmynk/tripsplit/internal/settlement"
)

// Policy holds the server-wide defaults applied when a request leaves them
// unset.
type Policy struct {
	Strategy        settlement.StrategyName
	RoundingMode    money.RoundingMode
	RemainderTarget money.RemainderTarget
}

// DefaultPolicy nets debts pairwise and rounds half up, handing leftover
// units to the largest share.
func DefaultPolicy() Policy {
	return Policy{
		Strategy:        settlement.StrategyPairwise,
		RoundingMode:    money.RoundHalfUp,
		RemainderTarget: money.LargestShare,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Strategy == "" {
		p.Strategy = d.Strategy
	}
	if p.RoundingMode == "" {
		p.RoundingMode = d.RoundingMode
	}
	if p.RemainderTarget == "" {
		p.RemainderTarget = d.RemainderTarget
	}
	return p
}
