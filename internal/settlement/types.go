// Package settlement aggregates the shares of a trip's expenses into
// per-person balances and the transfers that settle them.
package settlement

import (
	"cmp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripsplit/internal/allocation"
)

// SplitType says how an expense is shared.
type SplitType string

const (
	SplitEqual    SplitType = "equal"
	SplitWeighted SplitType = "weighted"
	SplitItemized SplitType = "itemized"
)

// Itemization carries the receipt of an itemized expense.
type Itemization struct {
	Items  []allocation.LineItem     `json:"items"`
	Extras allocation.Extras         `json:"extras"`
	Rule   allocation.AllocationRule `json:"rule"`
}

// Expense is one payment made by PayerID on behalf of Participants.
//
// For SplitEqual every weight is 1; for SplitWeighted weights are positive
// and relative. For SplitItemized the shares come from the Itemization and
// Participants, when present, only declares who takes part.
type Expense struct {
	ID           string                     `json:"id"`
	TripID       string                     `json:"trip_id"`
	PayerID      string                     `json:"payer_id"`
	Currency     string                     `json:"currency"`
	Amount       decimal.Decimal            `json:"amount"`
	SplitType    SplitType                  `json:"split_type"`
	Participants map[string]decimal.Decimal `json:"participants"`
	Itemization  *Itemization               `json:"itemization,omitempty"`
	CreatedAt    time.Time                  `json:"created_at"`
}

// PersonSummary is one person's position across a trip, in the trip's base
// currency. NetBase is positive when the person is owed money.
type PersonSummary struct {
	UserID        string          `json:"user_id"`
	TotalPaidBase decimal.Decimal `json:"total_paid_base"`
	TotalOwedBase decimal.Decimal `json:"total_owed_base"`
	NetBase       decimal.Decimal `json:"net_base"`
}

// MinimalTransfer is a directed payment obligation. SettledAt is set once
// the payment has been made and recorded.
type MinimalTransfer struct {
	ID         string          `json:"id"`
	TripID     string          `json:"trip_id"`
	FromUserID string          `json:"from_user_id"`
	ToUserID   string          `json:"to_user_id"`
	AmountBase decimal.Decimal `json:"amount_base"`
	ComputedAt time.Time       `json:"computed_at"`
	SettledAt  *time.Time      `json:"settled_at,omitempty"`
}

// Settled reports whether the transfer has been paid.
func (t MinimalTransfer) Settled() bool {
	return t.SettledAt != nil
}

// Pair is an unordered pair of people in canonical order (Low < High).
type Pair struct {
	Low  string
	High string
}

// NewPair returns the canonical pair for a and b.
func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}

func comparePairs(a, b Pair) int {
	if c := cmp.Compare(a.Low, b.Low); c != 0 {
		return c
	}
	return cmp.Compare(a.High, b.High)
}

// Warning kinds raised while aggregating expenses, in addition to those of
// the allocation package.
const (
	WarnCurrencyMismatch allocation.WarningKind = "currency_mismatch"
	WarnMissingPayer     allocation.WarningKind = "missing_payer"
	WarnAmountMismatch   allocation.WarningKind = "amount_mismatch"
	WarnForeignTrip      allocation.WarningKind = "foreign_trip"
)
