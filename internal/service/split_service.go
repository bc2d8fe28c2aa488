package service

import (
	"cmp"
	"context"
	"log/slog"
	"math/rand/v2"

	"connectrpc.com/connect"

	"github.com/mmynk/tripsplit/internal/allocation"
	"github.com/mmynk/tripsplit/internal/currency"
	"github.com/mmynk/tripsplit/internal/metrics"
	"github.com/mmynk/tripsplit/internal/money"
	"github.com/mmynk/tripsplit/internal/settlement"
)

// SplitService implements the Connect SplitService. It exposes the engines
// without touching storage.
type SplitService struct {
	currencies currency.Table
	metrics    *metrics.Collectors
	policy     Policy
}

var _ SplitServiceHandler = (*SplitService)(nil)

// NewSplitService creates a new SplitService. m may be nil.
func NewSplitService(currencies currency.Table, m *metrics.Collectors, policy Policy) *SplitService {
	return &SplitService{currencies: currencies, metrics: m, policy: policy.withDefaults()}
}

func seeded(seed *uint64) *rand.Rand {
	if seed == nil {
		return nil
	}
	return rand.New(rand.NewPCG(*seed, *seed))
}

// ComputeBreakdown handles itemized receipt allocation.
func (s *SplitService) ComputeBreakdown(ctx context.Context, req *connect.Request[ComputeBreakdownRequest]) (*connect.Response[ComputeBreakdownResponse], error) {
	msg := req.Msg
	slog.Debug("ComputeBreakdown request received",
		"items_count", len(msg.Items),
		"fees_count", len(msg.Extras.Fees),
		"discounts_count", len(msg.Extras.Discounts),
		"payer_id", msg.PayerID,
	)

	opts := []allocation.Option{allocation.WithParticipants(msg.Participants...)}
	if rng := seeded(msg.Seed); rng != nil {
		opts = append(opts, allocation.WithRandomSource(rng))
	}

	res, err := allocation.ComputeBreakdown(msg.Items, msg.Extras, msg.Rule, msg.PayerID, opts...)
	s.metrics.ObserveBreakdown(err)
	if err != nil {
		slog.Warn("ComputeBreakdown failed", "error", err)
		return nil, toConnectError(err)
	}
	s.metrics.ObserveWarnings(warningKinds(res.Warnings)...)

	for _, id := range res.Participants {
		b := res.Breakdowns[id]
		slog.Debug("Participant breakdown",
			"participant", id,
			"items_subtotal", b.ItemsSubtotal,
			"rounded_adjustment", b.RoundedAdjustment,
			"total", b.Total,
		)
	}

	return connect.NewResponse(&ComputeBreakdownResponse{Result: res}), nil
}

// ComputeShares splits one expense without storing it.
func (s *SplitService) ComputeShares(ctx context.Context, req *connect.Request[ComputeSharesRequest]) (*connect.Response[ComputeSharesResponse], error) {
	msg := req.Msg

	var places int32
	if msg.DecimalPlaces != nil {
		places = *msg.DecimalPlaces
		if places < 0 || places > money.MaxDecimalPlaces {
			return nil, invalidArgument("decimal_places", "must be between 0 and %d, got %d", money.MaxDecimalPlaces, places)
		}
	} else {
		p, err := s.currencies.DecimalPlaces(msg.Expense.Currency)
		if err != nil {
			return nil, toConnectError(err)
		}
		places = p
	}

	opts := []settlement.Option{
		settlement.WithDecimalPlaces(places),
		settlement.WithRoundingMode(cmp.Or(msg.RoundingMode, s.policy.RoundingMode)),
		settlement.WithRemainderTarget(cmp.Or(msg.RemainderTarget, s.policy.RemainderTarget)),
	}
	if rng := seeded(msg.Seed); rng != nil {
		opts = append(opts, settlement.WithRandomSource(rng))
	}

	shares, warnings, err := settlement.ComputeShares(msg.Expense, opts...)
	if err != nil {
		slog.Warn("ComputeShares failed", "expense_id", msg.Expense.ID, "error", err)
		return nil, toConnectError(err)
	}
	s.metrics.ObserveWarnings(warningKinds(warnings)...)

	return connect.NewResponse(&ComputeSharesResponse{Shares: shares, Warnings: warnings}), nil
}
