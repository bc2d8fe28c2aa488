// Package allocation turns one itemized expense (line items, per-item
// assignments, tax/tip/fees/discounts and a rounding policy) into an exact
// per-participant breakdown.
//
// All arithmetic is carried out on unrounded decimals; only each
// participant's final total is rounded, after which the leftover minimal
// units are handed out so the rounded totals add up to the rounded grand
// total exactly.
package allocation

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/tripsplit/internal/money"
)

// LineItem is one purchased line on a receipt.
type LineItem struct {
	ID                string
	Name              string
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
	Taxable           bool
	ServiceChargeable bool
	Assignment        ItemAssignment
}

// Total is quantity × unit price.
func (i LineItem) Total() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// ItemAssignment says who shares a line item. It is either an
// EvenAssignment or a CustomAssignment.
type ItemAssignment interface {
	// Assignees returns the assigned participant ids in declaration order.
	Assignees() []string
	isItemAssignment()
}

// EvenAssignment splits the item total equally among Users.
type EvenAssignment struct {
	Users []string
}

// CustomAssignment splits the item total by weight. Weights are normalized
// at computation time so they need not add up to 1; a user without an entry
// in Shares has weight zero.
type CustomAssignment struct {
	Users  []string
	Shares map[string]decimal.Decimal
}

func (a EvenAssignment) Assignees() []string   { return a.Users }
func (a CustomAssignment) Assignees() []string { return a.Users }

func (EvenAssignment) isItemAssignment()   {}
func (CustomAssignment) isItemAssignment() {}

// PercentBase names the subtotal a percentage extra is computed against.
type PercentBase string

const (
	PreTaxItemSubtotals PercentBase = "preTaxItemSubtotals"
	PostTaxSubtotals    PercentBase = "postTaxSubtotals"
)

func (b PercentBase) valid() bool {
	return b == PreTaxItemSubtotals || b == PostTaxSubtotals
}

// AbsoluteSplitMode says how a fixed-amount extra is shared.
type AbsoluteSplitMode string

const (
	ProportionalToItemsSubtotal AbsoluteSplitMode = "proportionalToItemsSubtotal"
	EvenAcrossAssignedPeople    AbsoluteSplitMode = "evenAcrossAssignedPeople"
)

func (m AbsoluteSplitMode) valid() bool {
	return m == ProportionalToItemsSubtotal || m == EvenAcrossAssignedPeople
}

// Charge is the size of an extra: either a PercentCharge or an AmountCharge.
type Charge interface {
	isCharge()
}

// PercentCharge is Value percent of a basis. An empty Base falls back to
// the rule's PercentBase.
type PercentCharge struct {
	Value decimal.Decimal
	Base  PercentBase
}

// AmountCharge is a fixed amount. An empty Split falls back to the rule's
// AbsoluteSplit.
type AmountCharge struct {
	Value decimal.Decimal
	Split AbsoluteSplitMode
}

func (PercentCharge) isCharge() {}
func (AmountCharge) isCharge()  {}

// Adjustment is a named fee or discount. AssignedTo optionally restricts it
// to a subset of participants; empty means everyone.
type Adjustment struct {
	ID         string
	Name       string
	Charge     Charge
	AssignedTo []string
}

// Extras are the non-item adjustments of an expense. Tax and Tip are nil
// when absent. Discounts always reduce what is owed, everything else adds.
type Extras struct {
	Tax       Charge
	Tip       Charge
	Fees      []Adjustment
	Discounts []Adjustment
}

// RoundingConfig controls how participant totals are rounded and who
// absorbs the leftover units.
type RoundingConfig struct {
	Precision             decimal.Decimal       `json:"precision"`
	Mode                  money.RoundingMode    `json:"mode"`
	DistributeRemainderTo money.RemainderTarget `json:"distribute_remainder_to"`
}

// AllocationRule carries the defaults applied when an extra does not name
// its own base or split mode.
type AllocationRule struct {
	PercentBase   PercentBase       `json:"percent_base"`
	AbsoluteSplit AbsoluteSplitMode `json:"absolute_split"`
	Rounding      RoundingConfig    `json:"rounding"`
}

// ExtraKey identifies an extra inside ParticipantBreakdown.ExtrasAllocated.
type ExtraKey string

const (
	TaxKey ExtraKey = "tax"
	TipKey ExtraKey = "tip"
)

// FeeKey returns the key for the fee with the given id.
func FeeKey(id string) ExtraKey { return ExtraKey("fee:" + id) }

// DiscountKey returns the key for the discount with the given id.
func DiscountKey(id string) ExtraKey { return ExtraKey("discount:" + id) }

// ItemContribution records one participant's raw share of one item.
type ItemContribution struct {
	ItemID        string          `json:"item_id"`
	ItemName      string          `json:"item_name"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	AssignedShare decimal.Decimal `json:"assigned_share"`
}

// ParticipantBreakdown is the audit-ready result for one participant.
//
// Total == ItemsSubtotal + Σ ExtrasAllocated + RoundedAdjustment holds
// exactly. RoundedAdjustment therefore covers both the rounding of the
// running total and any remainder unit; RemainderAdjustment isolates the
// latter and is zero for participants that received no unit.
type ParticipantBreakdown struct {
	UserID              string                       `json:"user_id"`
	ItemsSubtotal       decimal.Decimal              `json:"items_subtotal"`
	ExtrasAllocated     map[ExtraKey]decimal.Decimal `json:"extras_allocated"`
	RoundedAdjustment   decimal.Decimal              `json:"rounded_adjustment"`
	RemainderAdjustment decimal.Decimal              `json:"remainder_adjustment"`
	Total               decimal.Decimal              `json:"total"`
	Items               []ItemContribution           `json:"items"`
}

// Result is the output of ComputeBreakdown.
type Result struct {
	Breakdowns map[string]ParticipantBreakdown `json:"breakdowns"`
	// Participants lists breakdown keys in declaration order.
	Participants []string `json:"participants"`
	// GrandTotal is the sum of unrounded totals rounded to the precision;
	// the breakdown totals add up to it exactly.
	GrandTotal decimal.Decimal `json:"grand_total"`
	Warnings   []Warning       `json:"warnings,omitempty"`
}

// Totals returns each participant's rounded total.
func (r *Result) Totals() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(r.Breakdowns))
	for id, b := range r.Breakdowns {
		out[id] = b.Total
	}
	return out
}
