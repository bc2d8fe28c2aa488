package allocation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripsplit/internal/money"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func centRule() AllocationRule {
	return AllocationRule{
		PercentBase:   PreTaxItemSubtotals,
		AbsoluteSplit: ProportionalToItemsSubtotal,
		Rounding: RoundingConfig{
			Precision:             dec("0.01"),
			Mode:                  money.RoundHalfUp,
			DistributeRemainderTo: money.LargestShare,
		},
	}
}

func item(id string, price string, a ItemAssignment) LineItem {
	return LineItem{ID: id, Name: id, Quantity: decimal.NewFromInt(1), UnitPrice: dec(price), Assignment: a}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), append([]any{fmt.Sprintf("want %s, got %s", want, got)}, msgAndArgs...)...)
}

// assertConserved checks the per-participant identity and that the totals
// add up to the grand total.
func assertConserved(t *testing.T, res *Result) {
	t.Helper()
	sum := decimal.Zero
	for id, b := range res.Breakdowns {
		recomposed := b.ItemsSubtotal.Add(b.RoundedAdjustment)
		for _, v := range b.ExtrasAllocated {
			recomposed = recomposed.Add(v)
		}
		assert.True(t, recomposed.Equal(b.Total), "%s: %s != %s", id, recomposed, b.Total)
		sum = sum.Add(b.Total)
	}
	assert.True(t, sum.Equal(res.GrandTotal), "sum %s != grand total %s", sum, res.GrandTotal)
}

func TestComputeBreakdown(t *testing.T) {
	tests := []struct {
		name         string
		items        []LineItem
		extras       Extras
		rule         func(*AllocationRule)
		payer        string
		opts         []Option
		validateFunc func(t *testing.T, res *Result)
	}{
		{
			name: "custom weights on a single item",
			items: []LineItem{
				item("pizza", "12", CustomAssignment{
					Users:  []string{"alice", "bob"},
					Shares: map[string]decimal.Decimal{"alice": dec("0.66"), "bob": dec("0.34")},
				}),
			},
			validateFunc: func(t *testing.T, res *Result) {
				assertDecimal(t, "7.92", res.Breakdowns["alice"].ItemsSubtotal)
				assertDecimal(t, "4.08", res.Breakdowns["bob"].ItemsSubtotal)
				assertDecimal(t, "12", res.GrandTotal)
				require.Len(t, res.Breakdowns["alice"].Items, 1)
				assertDecimal(t, "7.92", res.Breakdowns["alice"].Items[0].AssignedShare)
			},
		},
		{
			name: "three way split hands the leftover cent to the lowest id",
			items: []LineItem{
				item("cab", "10", EvenAssignment{Users: []string{"carol", "alice", "bob"}}),
			},
			validateFunc: func(t *testing.T, res *Result) {
				assertDecimal(t, "3.34", res.Breakdowns["alice"].Total)
				assertDecimal(t, "0.01", res.Breakdowns["alice"].RemainderAdjustment)
				assertDecimal(t, "3.33", res.Breakdowns["bob"].Total)
				assertDecimal(t, "3.33", res.Breakdowns["carol"].Total)
				assertDecimal(t, "0", res.Breakdowns["carol"].RemainderAdjustment)
				assert.Equal(t, []string{"carol", "alice", "bob"}, res.Participants)
			},
		},
		{
			name: "remainder to payer",
			items: []LineItem{
				item("cab", "10", EvenAssignment{Users: []string{"carol", "alice", "bob"}}),
			},
			rule:  func(r *AllocationRule) { r.Rounding.DistributeRemainderTo = money.Payer },
			payer: "bob",
			validateFunc: func(t *testing.T, res *Result) {
				assertDecimal(t, "3.34", res.Breakdowns["bob"].Total)
				assertDecimal(t, "3.33", res.Breakdowns["alice"].Total)
				assert.Empty(t, res.Warnings)
			},
		},
		{
			name: "remainder to absent payer falls back with a warning",
			items: []LineItem{
				item("cab", "10", EvenAssignment{Users: []string{"carol", "alice", "bob"}}),
			},
			rule:  func(r *AllocationRule) { r.Rounding.DistributeRemainderTo = money.Payer },
			payer: "dave",
			validateFunc: func(t *testing.T, res *Result) {
				assertDecimal(t, "3.34", res.Breakdowns["alice"].Total)
				require.Len(t, res.Warnings, 1)
				assert.Equal(t, WarnPayerNotParticipant, res.Warnings[0].Kind)
			},
		},
		{
			name: "remainder to first listed",
			items: []LineItem{
				item("cab", "10", EvenAssignment{Users: []string{"carol", "alice", "bob"}}),
			},
			rule: func(r *AllocationRule) { r.Rounding.DistributeRemainderTo = money.FirstListed },
			validateFunc: func(t *testing.T, res *Result) {
				assertDecimal(t, "3.34", res.Breakdowns["carol"].Total)
			},
		},
		{
			name: "ceil overshoots and the remainder is taken back",
			items: []LineItem{
				item("cab", "10", EvenAssignment{Users: []string{"carol", "alice", "bob"}}),
			},
			rule: func(r *AllocationRule) { r.Rounding.Mode = money.Ceil },
			validateFunc: func(t *testing.T, res *Result) {
				assertDecimal(t, "3.33", res.Breakdowns["alice"].Total)
				assertDecimal(t, "3.33", res.Breakdowns["bob"].Total)
				assertDecimal(t, "3.34", res.Breakdowns["carol"].Total)
				assertDecimal(t, "-0.01", res.Breakdowns["alice"].RemainderAdjustment)
				assertDecimal(t, "10", res.GrandTotal)
			},
		},
		{
			name: "tax on taxable items then tip on the post-tax subtotal",
			items: []LineItem{
				{ID: "burger", Name: "Burger", Quantity: dec("1"), UnitPrice: dec("20"), Taxable: true, ServiceChargeable: true,
					Assignment: EvenAssignment{Users: []string{"alice"}}},
				{ID: "salad", Name: "Salad", Quantity: dec("1"), UnitPrice: dec("10"), Taxable: true, ServiceChargeable: true,
					Assignment: EvenAssignment{Users: []string{"bob"}}},
				{ID: "wine", Name: "Wine", Quantity: dec("2"), UnitPrice: dec("15"), ServiceChargeable: true,
					Assignment: EvenAssignment{Users: []string{"alice", "bob"}}},
			},
			extras: Extras{
				Tax: PercentCharge{Value: dec("10")},
				Tip: PercentCharge{Value: dec("20"), Base: PostTaxSubtotals},
			},
			validateFunc: func(t *testing.T, res *Result) {
				alice, bob := res.Breakdowns["alice"], res.Breakdowns["bob"]
				assertDecimal(t, "35", alice.ItemsSubtotal)
				assertDecimal(t, "2", alice.ExtrasAllocated[TaxKey])
				assertDecimal(t, "7.4", alice.ExtrasAllocated[TipKey])
				assertDecimal(t, "44.4", alice.Total)
				assertDecimal(t, "1", bob.ExtrasAllocated[TaxKey])
				assertDecimal(t, "5.2", bob.ExtrasAllocated[TipKey])
				assertDecimal(t, "31.2", bob.Total)
			},
		},
		{
			name: "fees and discounts",
			items: []LineItem{
				item("steak", "30", EvenAssignment{Users: []string{"alice"}}),
				item("soup", "10", EvenAssignment{Users: []string{"bob"}}),
			},
			extras: Extras{
				Fees: []Adjustment{
					{ID: "service", Name: "Service", Charge: AmountCharge{Value: dec("6")}},
					{ID: "delivery", Name: "Delivery", Charge: AmountCharge{Value: dec("3"), Split: EvenAcrossAssignedPeople}},
				},
				Discounts: []Adjustment{
					{ID: "promo", Name: "Promo", Charge: PercentCharge{Value: dec("10")}},
					{ID: "voucher", Name: "Voucher", Charge: AmountCharge{Value: dec("5")}, AssignedTo: []string{"bob"}},
				},
			},
			opts: []Option{WithParticipants("carol")},
			validateFunc: func(t *testing.T, res *Result) {
				alice, bob, carol := res.Breakdowns["alice"], res.Breakdowns["bob"], res.Breakdowns["carol"]
				assertDecimal(t, "4.5", alice.ExtrasAllocated[FeeKey("service")])
				assertDecimal(t, "1.5", bob.ExtrasAllocated[FeeKey("service")])
				assertDecimal(t, "1", alice.ExtrasAllocated[FeeKey("delivery")])
				assertDecimal(t, "1", carol.ExtrasAllocated[FeeKey("delivery")])
				assertDecimal(t, "-3", alice.ExtrasAllocated[DiscountKey("promo")])
				assertDecimal(t, "-5", bob.ExtrasAllocated[DiscountKey("voucher")])
				_, aliceHasVoucher := alice.ExtrasAllocated[DiscountKey("voucher")]
				assert.False(t, aliceHasVoucher)
				assertDecimal(t, "32.5", alice.Total)
				assertDecimal(t, "6.5", bob.Total)
				assertDecimal(t, "1", carol.Total)
				assertDecimal(t, "40", res.GrandTotal)
				assert.Equal(t, []string{"carol", "alice", "bob"}, res.Participants)
			},
		},
		{
			name: "unrestricted even fee reaches declared participants without items",
			items: []LineItem{
				item("pizza", "20", EvenAssignment{Users: []string{"alice", "bob"}}),
			},
			extras: Extras{
				Fees: []Adjustment{
					{ID: "booking", Name: "Booking", Charge: AmountCharge{Value: dec("9"), Split: EvenAcrossAssignedPeople}},
				},
			},
			opts: []Option{WithParticipants("alice", "bob", "carol")},
			validateFunc: func(t *testing.T, res *Result) {
				for _, id := range []string{"alice", "bob", "carol"} {
					assertDecimal(t, "3", res.Breakdowns[id].ExtrasAllocated[FeeKey("booking")])
				}
				assertDecimal(t, "13", res.Breakdowns["alice"].Total)
				assertDecimal(t, "3", res.Breakdowns["carol"].Total)
				assertDecimal(t, "29", res.GrandTotal)
			},
		},
		{
			name: "restricted even fee stays with the named people",
			items: []LineItem{
				item("pizza", "20", EvenAssignment{Users: []string{"alice", "bob"}}),
			},
			extras: Extras{
				Fees: []Adjustment{
					{ID: "parking", Name: "Parking", Charge: AmountCharge{Value: dec("4"), Split: EvenAcrossAssignedPeople},
						AssignedTo: []string{"bob", "carol"}},
				},
			},
			opts: []Option{WithParticipants("alice", "bob", "carol")},
			validateFunc: func(t *testing.T, res *Result) {
				_, aliceHasParking := res.Breakdowns["alice"].ExtrasAllocated[FeeKey("parking")]
				assert.False(t, aliceHasParking)
				assertDecimal(t, "2", res.Breakdowns["bob"].ExtrasAllocated[FeeKey("parking")])
				assertDecimal(t, "2", res.Breakdowns["carol"].ExtrasAllocated[FeeKey("parking")])
				assertDecimal(t, "24", res.GrandTotal)
			},
		},
		{
			name: "item with nobody assigned is reported, not allocated",
			items: []LineItem{
				item("orphan", "10", EvenAssignment{}),
				item("fries", "5", EvenAssignment{Users: []string{"alice"}}),
			},
			validateFunc: func(t *testing.T, res *Result) {
				assertDecimal(t, "5", res.Breakdowns["alice"].Total)
				assertDecimal(t, "5", res.GrandTotal)
				require.Len(t, res.Warnings, 1)
				assert.Equal(t, WarnUnassignedItem, res.Warnings[0].Kind)
				assert.Equal(t, "orphan", res.Warnings[0].Subject)
			},
		},
		{
			name: "all-zero custom weights allocate nothing",
			items: []LineItem{
				item("cake", "8", CustomAssignment{
					Users:  []string{"alice", "bob"},
					Shares: map[string]decimal.Decimal{"alice": decimal.Zero},
				}),
			},
			validateFunc: func(t *testing.T, res *Result) {
				assertDecimal(t, "0", res.Breakdowns["alice"].Total)
				assertDecimal(t, "0", res.Breakdowns["bob"].Total)
				require.Len(t, res.Warnings, 1)
				assert.Equal(t, WarnZeroCustomShares, res.Warnings[0].Kind)
			},
		},
		{
			name: "tax with no taxable items warns",
			items: []LineItem{
				item("water", "2", EvenAssignment{Users: []string{"alice"}}),
			},
			extras: Extras{Tax: PercentCharge{Value: dec("8")}},
			validateFunc: func(t *testing.T, res *Result) {
				assertDecimal(t, "2", res.Breakdowns["alice"].Total)
				require.Len(t, res.Warnings, 1)
				assert.Equal(t, WarnZeroBasis, res.Warnings[0].Kind)
				assert.Equal(t, string(TaxKey), res.Warnings[0].Subject)
			},
		},
		{
			name: "nickel rounding",
			items: []LineItem{
				item("coffee", "4.13", EvenAssignment{Users: []string{"alice"}}),
				item("tea", "2.21", EvenAssignment{Users: []string{"bob"}}),
			},
			rule: func(r *AllocationRule) { r.Rounding.Precision = dec("0.05") },
			validateFunc: func(t *testing.T, res *Result) {
				assertDecimal(t, "4.15", res.Breakdowns["alice"].Total)
				assertDecimal(t, "2.2", res.Breakdowns["bob"].Total)
				assertDecimal(t, "6.35", res.GrandTotal)
			},
		},
		{
			name:  "no items",
			items: nil,
			validateFunc: func(t *testing.T, res *Result) {
				assert.Empty(t, res.Breakdowns)
				assertDecimal(t, "0", res.GrandTotal)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := centRule()
			if tt.rule != nil {
				tt.rule(&rule)
			}
			res, err := ComputeBreakdown(tt.items, tt.extras, rule, tt.payer, tt.opts...)
			require.NoError(t, err)
			assertConserved(t, res)
			tt.validateFunc(t, res)
		})
	}
}

func TestComputeBreakdown_ValidationErrors(t *testing.T) {
	valid := item("a", "1", EvenAssignment{Users: []string{"alice"}})

	tests := []struct {
		name   string
		items  []LineItem
		extras Extras
		rule   func(*AllocationRule)
		field  string
	}{
		{name: "zero precision", items: []LineItem{valid}, rule: func(r *AllocationRule) { r.Rounding.Precision = decimal.Zero }, field: "rounding.precision"},
		{name: "negative precision", items: []LineItem{valid}, rule: func(r *AllocationRule) { r.Rounding.Precision = dec("-0.01") }, field: "rounding.precision"},
		{name: "precision finer than supported", items: []LineItem{valid}, rule: func(r *AllocationRule) { r.Rounding.Precision = dec("1e-19") }, field: "rounding.precision"},
		{name: "unknown mode", items: []LineItem{valid}, rule: func(r *AllocationRule) { r.Rounding.Mode = "bankers" }, field: "rounding.mode"},
		{name: "unknown remainder target", items: []LineItem{valid}, rule: func(r *AllocationRule) { r.Rounding.DistributeRemainderTo = "" }, field: "rounding.distribute_remainder_to"},
		{
			name:  "zero quantity",
			items: []LineItem{{ID: "x", Quantity: decimal.Zero, UnitPrice: dec("1"), Assignment: EvenAssignment{Users: []string{"alice"}}}},
			field: "items[0].quantity",
		},
		{
			name:  "negative quantity",
			items: []LineItem{{ID: "x", Quantity: dec("-1"), UnitPrice: dec("1"), Assignment: EvenAssignment{Users: []string{"alice"}}}},
			field: "items[0].quantity",
		},
		{
			name:  "negative unit price",
			items: []LineItem{{ID: "x", Quantity: dec("1"), UnitPrice: dec("-1"), Assignment: EvenAssignment{Users: []string{"alice"}}}},
			field: "items[0].unit_price",
		},
		{
			name: "share for someone not assigned",
			items: []LineItem{item("x", "1", CustomAssignment{
				Users:  []string{"alice"},
				Shares: map[string]decimal.Decimal{"alice": dec("1"), "bob": dec("1")},
			})},
			field: "items[0].assignment.shares",
		},
		{
			name:   "percent extra without any base",
			items:  []LineItem{valid},
			extras: Extras{Tip: PercentCharge{Value: dec("15")}},
			rule:   func(r *AllocationRule) { r.PercentBase = "" },
			field:  "extras.tip.base",
		},
		{
			name:   "fee without id",
			items:  []LineItem{valid},
			extras: Extras{Fees: []Adjustment{{Charge: AmountCharge{Value: dec("1")}}}},
			field:  "extras.fees[0].id",
		},
		{
			name:   "negative discount",
			items:  []LineItem{valid},
			extras: Extras{Discounts: []Adjustment{{ID: "d", Charge: AmountCharge{Value: dec("-1")}}}},
			field:  "extras.discounts[0].value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := centRule()
			if tt.rule != nil {
				tt.rule(&rule)
			}
			res, err := ComputeBreakdown(tt.items, tt.extras, rule, "")
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, ErrValidation))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestComputeBreakdown_PercentBaseFromRule(t *testing.T) {
	items := []LineItem{{ID: "x", Quantity: dec("1"), UnitPrice: dec("10"), ServiceChargeable: true,
		Assignment: EvenAssignment{Users: []string{"alice"}}}}
	res, err := ComputeBreakdown(items, Extras{Tip: PercentCharge{Value: dec("15")}}, centRule(), "")
	require.NoError(t, err)
	assertDecimal(t, "1.5", res.Breakdowns["alice"].ExtrasAllocated[TipKey])
}

func TestComputeBreakdown_Idempotent(t *testing.T) {
	items := []LineItem{
		item("a", "17.23", EvenAssignment{Users: []string{"x", "y", "z"}}),
		item("b", "9.99", CustomAssignment{Users: []string{"x", "z"}, Shares: map[string]decimal.Decimal{"x": dec("2"), "z": dec("1")}}),
	}
	extras := Extras{Tax: PercentCharge{Value: dec("8.875")}, Tip: AmountCharge{Value: dec("5")}}

	first, err := ComputeBreakdown(items, extras, centRule(), "x")
	require.NoError(t, err)
	second, err := ComputeBreakdown(items, extras, centRule(), "x")
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestComputeBreakdown_SeededRandomRemainder(t *testing.T) {
	rule := centRule()
	rule.Rounding.DistributeRemainderTo = money.Random
	items := []LineItem{item("cab", "10", EvenAssignment{Users: []string{"a", "b", "c"}})}

	run := func() map[string]string {
		res, err := ComputeBreakdown(items, Extras{}, rule, "", WithRandomSource(rand.New(rand.NewPCG(42, 1))))
		require.NoError(t, err)
		assertConserved(t, res)
		out := make(map[string]string)
		for id, total := range res.Totals() {
			out[id] = total.String()
		}
		return out
	}
	assert.Equal(t, run(), run())
}

// Random receipts: the rounded totals must always add up to the rounded sum
// of every assigned item, whatever the rounding mode.
func TestComputeBreakdown_ConservesRandomReceipts(t *testing.T) {
	rng := rand.New(rand.NewPCG(2024, 11))
	users := []string{"ann", "ben", "cid", "dee", "eve"}
	modes := []money.RoundingMode{money.RoundHalfUp, money.RoundHalfEven, money.Floor, money.Ceil}
	targets := []money.RemainderTarget{money.LargestShare, money.Payer, money.FirstListed}

	for round := range 200 {
		var items []LineItem
		itemsSum := decimal.Zero
		for i := range 1 + rng.IntN(12) {
			n := 1 + rng.IntN(len(users))
			assigned := users[:n]
			var a ItemAssignment = EvenAssignment{Users: assigned}
			if rng.IntN(2) == 0 {
				shares := make(map[string]decimal.Decimal, n)
				for _, u := range assigned {
					shares[u] = decimal.NewFromInt(int64(1 + rng.IntN(9)))
				}
				a = CustomAssignment{Users: assigned, Shares: shares}
			}
			li := LineItem{
				ID:         fmt.Sprintf("i%d", i),
				Quantity:   decimal.NewFromInt(int64(1 + rng.IntN(3))),
				UnitPrice:  decimal.New(int64(rng.IntN(10000)), -2),
				Assignment: a,
			}
			itemsSum = itemsSum.Add(li.Total())
			items = append(items, li)
		}

		rule := centRule()
		rule.Rounding.Mode = modes[round%len(modes)]
		rule.Rounding.DistributeRemainderTo = targets[round%len(targets)]

		res, err := ComputeBreakdown(items, Extras{}, rule, "ann")
		require.NoError(t, err)
		assertConserved(t, res)
		want := money.Round(itemsSum, rule.Rounding.Precision, rule.Rounding.Mode)
		require.True(t, res.GrandTotal.Equal(want), "round %d: grand %s want %s", round, res.GrandTotal, want)
	}
}
