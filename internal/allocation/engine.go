package allocation

import (
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripsplit/internal/money"
)

// Option customizes ComputeBreakdown.
type Option func(*options)

type options struct {
	participants []string
	rng          money.RandomSource
}

// WithParticipants declares the full participant set in order. Participants
// without any assigned item still get a (possibly zero) breakdown and count
// as "everyone" for unrestricted extras.
func WithParticipants(ids ...string) Option {
	return func(o *options) { o.participants = ids }
}

// WithRandomSource sets the generator used by the random remainder target.
// Pass a seeded generator to keep results reproducible.
func WithRandomSource(rng money.RandomSource) Option {
	return func(o *options) { o.rng = rng }
}

type extraKind int

const (
	kindTax extraKind = iota
	kindTip
	kindFee
	kindDiscount
)

// participant accumulates unrounded amounts for one user.
type participant struct {
	id          string
	items       decimal.Decimal
	taxable     decimal.Decimal
	chargeable  decimal.Decimal
	tax         decimal.Decimal
	extras      map[ExtraKey]decimal.Decimal
	contributed []ItemContribution
}

func (p *participant) running() decimal.Decimal {
	total := p.items
	for _, v := range p.extras {
		total = total.Add(v)
	}
	return total
}

type engine struct {
	rule     AllocationRule
	order    []*participant
	byID     map[string]*participant
	warnings []Warning
}

// ComputeBreakdown allocates an itemized expense across its participants.
//
// Items are split first (even or weighted), then extras are applied in a
// fixed order: tax, tip, fees and discounts, the last two in declaration
// order. Each participant's running total is rounded with the rule's
// rounding config and the leftover units are distributed so that the
// rounded totals sum to the rounded grand total.
//
// Invalid configuration returns a *ValidationError before anything is
// computed. Degenerate input (unassigned items, all-zero weights, extras on
// an empty basis) is reported through Result.Warnings.
func ComputeBreakdown(items []LineItem, extras Extras, rule AllocationRule, payerID string, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := validateRule(rule); err != nil {
		return nil, err
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if err := validateExtras(extras, rule); err != nil {
		return nil, err
	}

	e := &engine{rule: rule, byID: make(map[string]*participant)}
	for _, id := range o.participants {
		if id != "" {
			e.participant(id)
		}
	}
	for _, item := range items {
		for _, id := range assignees(item.Assignment) {
			e.participant(id)
		}
	}
	for _, adj := range extras.Fees {
		for _, id := range adj.AssignedTo {
			e.participant(id)
		}
	}
	for _, adj := range extras.Discounts {
		for _, id := range adj.AssignedTo {
			e.participant(id)
		}
	}

	for _, item := range items {
		e.splitItem(item)
	}

	if extras.Tax != nil {
		e.applyExtra(TaxKey, kindTax, extras.Tax, nil)
	}
	if extras.Tip != nil {
		e.applyExtra(TipKey, kindTip, extras.Tip, nil)
	}
	for _, fee := range extras.Fees {
		e.applyExtra(FeeKey(fee.ID), kindFee, fee.Charge, fee.AssignedTo)
	}
	for _, discount := range extras.Discounts {
		e.applyExtra(DiscountKey(discount.ID), kindDiscount, discount.Charge, discount.AssignedTo)
	}

	return e.settle(payerID, o.rng), nil
}

func assignees(a ItemAssignment) []string {
	if a == nil {
		return nil
	}
	return a.Assignees()
}

func (e *engine) participant(id string) *participant {
	if p, ok := e.byID[id]; ok {
		return p
	}
	p := &participant{id: id, extras: make(map[ExtraKey]decimal.Decimal)}
	e.byID[id] = p
	e.order = append(e.order, p)
	return p
}

func (e *engine) warn(kind WarningKind, subject, format string, args ...any) {
	e.warnings = append(e.warnings, Warning{Kind: kind, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// splitItem computes each assignee's raw share of the item total.
func (e *engine) splitItem(item LineItem) {
	total := item.Total()
	users := dedupe(assignees(item.Assignment))
	if len(users) == 0 {
		e.warn(WarnUnassignedItem, item.ID, "item %q is not assigned to anyone; its %s is not allocated", item.Name, total)
		return
	}

	shares := make([]decimal.Decimal, len(users))
	switch a := item.Assignment.(type) {
	case EvenAssignment:
		each := money.Div(total, decimal.NewFromInt(int64(len(users))))
		for i := range users {
			shares[i] = each
		}
	case CustomAssignment:
		weights := decimal.Zero
		for _, u := range users {
			weights = weights.Add(a.Shares[u])
		}
		if weights.IsZero() {
			e.warn(WarnZeroCustomShares, item.ID, "custom shares for item %q sum to zero; its %s is not allocated", item.Name, total)
			for i := range users {
				shares[i] = decimal.Zero
			}
			break
		}
		for i, u := range users {
			shares[i] = money.Div(total.Mul(a.Shares[u]), weights)
		}
	}

	for i, u := range users {
		p := e.byID[u]
		p.items = p.items.Add(shares[i])
		if item.Taxable {
			p.taxable = p.taxable.Add(shares[i])
		}
		if item.ServiceChargeable {
			p.chargeable = p.chargeable.Add(shares[i])
		}
		p.contributed = append(p.contributed, ItemContribution{
			ItemID:        item.ID,
			ItemName:      item.Name,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			AssignedShare: shares[i],
		})
	}
}

// members resolves who an extra applies to.
func (e *engine) members(assignedTo []string) []*participant {
	if len(assignedTo) == 0 {
		return e.order
	}
	out := make([]*participant, 0, len(assignedTo))
	for _, id := range dedupe(assignedTo) {
		out = append(out, e.byID[id])
	}
	return out
}

// basis returns a participant's contribution to the subtotal a percentage
// extra of the given kind is computed against.
func basis(p *participant, kind extraKind, base PercentBase) decimal.Decimal {
	var b decimal.Decimal
	switch kind {
	case kindTax:
		return p.taxable
	case kindTip, kindFee:
		b = p.chargeable
	default:
		b = p.items
	}
	if base == PostTaxSubtotals {
		b = b.Add(p.tax)
	}
	return b
}

func (e *engine) applyExtra(key ExtraKey, kind extraKind, charge Charge, assignedTo []string) {
	members := e.members(assignedTo)
	shares := make([]decimal.Decimal, len(members))

	switch c := charge.(type) {
	case PercentCharge:
		base := c.Base
		if base == "" {
			base = e.rule.PercentBase
		}
		total := decimal.Zero
		for i, p := range members {
			b := basis(p, kind, base)
			total = total.Add(b)
			shares[i] = money.Percent(c.Value, b)
		}
		if total.IsZero() && !c.Value.IsZero() {
			e.warn(WarnZeroBasis, string(key), "%s%% of an empty basis allocates nothing", c.Value)
		}
	case AmountCharge:
		split := c.Split
		if split == "" {
			split = e.rule.AbsoluteSplit
		}
		if split == EvenAcrossAssignedPeople {
			e.splitEven(key, c.Value, members, shares)
		} else {
			e.splitProportional(key, c.Value, members, shares)
		}
	}

	for i, p := range members {
		share := shares[i]
		if kind == kindDiscount {
			share = share.Neg()
		}
		p.extras[key] = p.extras[key].Add(share)
		if kind == kindTax {
			p.tax = p.tax.Add(share)
		}
	}
}

func (e *engine) splitProportional(key ExtraKey, amount decimal.Decimal, members []*participant, shares []decimal.Decimal) {
	total := decimal.Zero
	for _, p := range members {
		total = total.Add(p.items)
	}
	if total.IsZero() {
		if !amount.IsZero() {
			e.warn(WarnZeroBasis, string(key), "%s cannot be split by an items subtotal of zero", amount)
		}
		for i := range shares {
			shares[i] = decimal.Zero
		}
		return
	}
	for i, p := range members {
		shares[i] = money.Div(amount.Mul(p.items), total)
	}
}

// splitEven shares amount equally across members. An unrestricted extra
// reaches every participant, including those without items.
func (e *engine) splitEven(key ExtraKey, amount decimal.Decimal, members []*participant, shares []decimal.Decimal) {
	if len(members) == 0 {
		if !amount.IsZero() {
			e.warn(WarnZeroBasis, string(key), "%s has nobody to be split across", amount)
		}
		return
	}
	each := money.Div(amount, decimal.NewFromInt(int64(len(members))))
	for i := range members {
		shares[i] = each
	}
}

// settle rounds every running total and reconciles the remainder.
func (e *engine) settle(payerID string, rng money.RandomSource) *Result {
	r := e.rule.Rounding
	running := make([]decimal.Decimal, len(e.order))
	candidates := make([]money.Candidate, len(e.order))
	unrounded := decimal.Zero
	roundedSum := decimal.Zero
	for i, p := range e.order {
		running[i] = p.running()
		rounded := money.Round(running[i], r.Precision, r.Mode)
		candidates[i] = money.Candidate{ID: p.id, Amount: rounded}
		unrounded = unrounded.Add(running[i])
		roundedSum = roundedSum.Add(rounded)
	}

	grand := money.Round(unrounded, r.Precision, r.Mode)
	remainder := grand.Sub(roundedSum)
	if r.DistributeRemainderTo == money.Random && rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	dist := money.Distribute(remainder, r.Precision, candidates, r.DistributeRemainderTo, payerID, rng)
	if dist.PayerMissing {
		e.warn(WarnPayerNotParticipant, payerID, "payer %q has no share; remainder went to the largest share", payerID)
	}

	res := &Result{
		Breakdowns:   make(map[string]ParticipantBreakdown, len(e.order)),
		Participants: make([]string, 0, len(e.order)),
		GrandTotal:   grand,
		Warnings:     e.warnings,
	}
	for i, p := range e.order {
		extra := dist.Adjustments[p.id]
		total := candidates[i].Amount.Add(extra)
		res.Participants = append(res.Participants, p.id)
		res.Breakdowns[p.id] = ParticipantBreakdown{
			UserID:              p.id,
			ItemsSubtotal:       p.items,
			ExtrasAllocated:     p.extras,
			RoundedAdjustment:   total.Sub(running[i]),
			RemainderAdjustment: extra,
			Total:               total,
			Items:               p.contributed,
		}
	}
	return res
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
