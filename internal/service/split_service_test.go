package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripsplit/internal/allocation"
	"github.com/mmynk/tripsplit/internal/money"
)

func TestComputeBreakdown(t *testing.T) {
	_, client := setupTestServer(t)
	ctx := context.Background()

	req := &ComputeBreakdownRequest{
		Items: []allocation.LineItem{
			{
				ID:                "pasta",
				Name:              "Pasta",
				Quantity:          decimal.NewFromInt(1),
				UnitPrice:         dec("10.00"),
				Taxable:           true,
				ServiceChargeable: true,
				Assignment:        allocation.EvenAssignment{Users: []string{"alice", "bob", "cara"}},
			},
		},
		Extras: allocation.Extras{
			Tax: allocation.PercentCharge{Value: dec("10")},
		},
		Rule: allocation.AllocationRule{
			PercentBase:   allocation.PreTaxItemSubtotals,
			AbsoluteSplit: allocation.ProportionalToItemsSubtotal,
			Rounding: allocation.RoundingConfig{
				Precision:             dec("0.01"),
				Mode:                  money.RoundHalfUp,
				DistributeRemainderTo: money.Random,
			},
		},
		PayerID: "alice",
	}
	seed := uint64(42)
	req.Seed = &seed

	first, err := client.ComputeBreakdown(ctx, connect.NewRequest(req))
	require.NoError(t, err)
	res := first.Msg.Result
	assert.True(t, res.GrandTotal.Equal(dec("11")))
	assert.Equal(t, []string{"alice", "bob", "cara"}, res.Participants)

	sum := decimal.Zero
	for _, b := range res.Breakdowns {
		sum = sum.Add(b.Total)
	}
	assert.True(t, sum.Equal(res.GrandTotal))

	second, err := client.ComputeBreakdown(ctx, connect.NewRequest(req))
	require.NoError(t, err)
	for id, b := range res.Breakdowns {
		assert.True(t, b.Total.Equal(second.Msg.Result.Breakdowns[id].Total), id)
	}

	req.Rule.Rounding.Precision = decimal.Zero
	_, err = client.ComputeBreakdown(ctx, connect.NewRequest(req))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestComputeShares(t *testing.T) {
	_, client := setupTestServer(t)
	ctx := context.Background()

	yen := equalExpense("", "alice", "1000", "alice", "bob", "cara")
	yen.Currency = "JPY"

	resp, err := client.ComputeShares(ctx, connect.NewRequest(&ComputeSharesRequest{Expense: yen}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Shares["alice"].Equal(dec("334")))
	assert.True(t, resp.Msg.Shares["bob"].Equal(dec("333")))

	places := int32(2)
	resp, err = client.ComputeShares(ctx, connect.NewRequest(&ComputeSharesRequest{
		Expense:         yen,
		DecimalPlaces:   &places,
		RemainderTarget: money.Payer,
		RoundingMode:    money.Floor,
	}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Shares["alice"].Equal(dec("333.34")))
	assert.True(t, resp.Msg.Shares["cara"].Equal(dec("333.33")))

	for _, places := range []int32{-1, 19, 1_000_000_000} {
		_, err = client.ComputeShares(ctx, connect.NewRequest(&ComputeSharesRequest{Expense: yen, DecimalPlaces: &places}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err), "places %d", places)
	}

	yen.Currency = "ZZZ"
	_, err = client.ComputeShares(ctx, connect.NewRequest(&ComputeSharesRequest{Expense: yen}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}
