package service

import (
	"cmp"
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tripsplit/internal/currency"
	"github.com/mmynk/tripsplit/internal/metrics"
	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/settlement"
	"github.com/mmynk/tripsplit/internal/storage"
)

// TripService implements the Connect TripService: trips, their expenses
// and the transfers that settle them.
type TripService struct {
	store      storage.Store
	currencies currency.Table
	metrics    *metrics.Collectors
	policy     Policy
	now        func() time.Time
}

var _ TripServiceHandler = (*TripService)(nil)

// NewTripService creates a new TripService with the given storage backend.
// m may be nil.
func NewTripService(store storage.Store, currencies currency.Table, m *metrics.Collectors, policy Policy) *TripService {
	return &TripService{
		store:      store,
		currencies: currencies,
		metrics:    m,
		policy:     policy.withDefaults(),
		now:        time.Now,
	}
}

// CreateTrip creates a new trip.
func (s *TripService) CreateTrip(ctx context.Context, req *connect.Request[CreateTripRequest]) (*connect.Response[CreateTripResponse], error) {
	slog.Info("CreateTrip request received",
		"name", req.Msg.Name,
		"base_currency", req.Msg.BaseCurrency,
		"members_count", len(req.Msg.Members),
	)

	if _, err := s.currencies.DecimalPlaces(req.Msg.BaseCurrency); err != nil {
		return nil, toConnectError(err)
	}

	trip := &models.Trip{
		Name:         req.Msg.Name,
		BaseCurrency: req.Msg.BaseCurrency,
		Members:      req.Msg.Members,
	}
	if err := s.store.CreateTrip(ctx, trip); err != nil {
		slog.Error("CreateTrip failed", "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Trip created", "trip_id", trip.ID)

	return connect.NewResponse(&CreateTripResponse{Trip: trip}), nil
}

// GetTrip retrieves a trip by ID.
func (s *TripService) GetTrip(ctx context.Context, req *connect.Request[GetTripRequest]) (*connect.Response[GetTripResponse], error) {
	trip, err := s.store.GetTrip(ctx, req.Msg.TripID)
	if err != nil {
		slog.Error("GetTrip failed", "trip_id", req.Msg.TripID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetTripResponse{Trip: trip}), nil
}

// AddExpense validates an expense by computing its shares, stores it and
// adds every person it mentions to the trip.
func (s *TripService) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	expense := req.Msg.Expense
	slog.Info("AddExpense request received",
		"trip_id", expense.TripID,
		"payer_id", expense.PayerID,
		"split_type", expense.SplitType,
		"amount", expense.Amount,
	)

	if expense.TripID == "" {
		return nil, invalidArgument("trip_id", "required")
	}
	if expense.PayerID == "" {
		return nil, invalidArgument("payer_id", "required")
	}

	trip, err := s.store.GetTrip(ctx, expense.TripID)
	if err != nil {
		slog.Error("AddExpense: failed to get trip", "trip_id", expense.TripID, "error", err)
		return nil, toConnectError(err)
	}
	if expense.Currency == "" {
		expense.Currency = trip.BaseCurrency
	}

	places, err := s.currencies.DecimalPlaces(expense.Currency)
	if err != nil {
		return nil, toConnectError(err)
	}
	shares, warnings, err := settlement.ComputeShares(expense,
		settlement.WithDecimalPlaces(places),
		settlement.WithRoundingMode(s.policy.RoundingMode),
		settlement.WithRemainderTarget(s.policy.RemainderTarget),
	)
	if err != nil {
		slog.Warn("AddExpense: invalid expense", "trip_id", trip.ID, "error", err)
		return nil, toConnectError(err)
	}
	s.metrics.ObserveWarnings(warningKinds(warnings)...)

	if err := s.store.CreateExpense(ctx, &expense); err != nil {
		slog.Error("AddExpense failed", "error", err)
		return nil, toConnectError(err)
	}

	s.autoAddMembersToTrip(ctx, trip, expense.PayerID, slices.Collect(maps.Keys(shares)))

	slog.Info("Expense added", "trip_id", trip.ID, "expense_id", expense.ID, "warnings", len(warnings))

	return connect.NewResponse(&AddExpenseResponse{
		Expense:  &expense,
		Shares:   shares,
		Warnings: warnings,
	}), nil
}

// findNewMembers returns people that are not already in existingMembers.
func findNewMembers(people, existingMembers []string) []string {
	memberSet := make(map[string]bool, len(existingMembers))
	for _, m := range existingMembers {
		memberSet[m] = true
	}
	var newOnes []string
	for _, p := range people {
		if p != "" && !memberSet[p] {
			memberSet[p] = true
			newOnes = append(newOnes, p)
		}
	}
	slices.Sort(newOnes)
	return newOnes
}

// autoAddMembersToTrip adds the payer and sharers of an expense that are not
// yet trip members. Failures are logged; the expense is already stored.
func (s *TripService) autoAddMembersToTrip(ctx context.Context, trip *models.Trip, payerID string, sharers []string) {
	newMembers := findNewMembers(append([]string{payerID}, sharers...), trip.Members)
	if len(newMembers) == 0 {
		return
	}

	if err := s.store.AddTripMembers(ctx, trip.ID, newMembers); err != nil {
		slog.Error("autoAddMembersToTrip: failed to add members", "trip_id", trip.ID, "error", err)
		return
	}
	slog.Info("Auto-added members to trip", "trip_id", trip.ID, "new_members", newMembers)
}

// ListExpenses returns the expenses of a trip, oldest first.
func (s *TripService) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	if _, err := s.store.GetTrip(ctx, req.Msg.TripID); err != nil {
		return nil, toConnectError(err)
	}
	expenses, err := s.store.ListExpensesByTrip(ctx, req.Msg.TripID)
	if err != nil {
		slog.Error("ListExpenses failed", "trip_id", req.Msg.TripID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListExpensesResponse{Expenses: expenses}), nil
}

// DeleteExpense removes an expense by ID.
func (s *TripService) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	slog.Info("DeleteExpense request received", "expense_id", req.Msg.ExpenseID)

	if req.Msg.ExpenseID == "" {
		return nil, invalidArgument("expense_id", "required")
	}
	if err := s.store.DeleteExpense(ctx, req.Msg.ExpenseID); err != nil {
		slog.Error("DeleteExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Expense deleted", "expense_id", req.Msg.ExpenseID)

	return connect.NewResponse(&DeleteExpenseResponse{}), nil
}

// GetSettlement aggregates every expense and recorded payment of a trip
// into per-person balances and the transfers that settle what is left.
func (s *TripService) GetSettlement(ctx context.Context, req *connect.Request[GetSettlementRequest]) (*connect.Response[GetSettlementResponse], error) {
	tripID := req.Msg.TripID
	slog.Info("GetSettlement request received", "trip_id", tripID, "strategy", req.Msg.Strategy)

	if tripID == "" {
		return nil, invalidArgument("trip_id", "required")
	}
	name := cmp.Or(req.Msg.Strategy, s.policy.Strategy)
	strategy, err := settlement.StrategyFor(name)
	if err != nil {
		return nil, toConnectError(err)
	}

	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		slog.Error("GetSettlement failed - trip not found", "trip_id", tripID, "error", err)
		return nil, toConnectError(err)
	}
	places, err := s.currencies.DecimalPlaces(trip.BaseCurrency)
	if err != nil {
		return nil, toConnectError(err)
	}

	stored, err := s.store.ListExpensesByTrip(ctx, tripID)
	if err != nil {
		slog.Error("GetSettlement failed - could not list expenses", "trip_id", tripID, "error", err)
		return nil, toConnectError(err)
	}
	paid, err := s.store.ListSettledTransfers(ctx, tripID)
	if err != nil {
		slog.Error("GetSettlement failed - could not list settled transfers", "trip_id", tripID, "error", err)
		return nil, toConnectError(err)
	}

	ledger, err := settlement.BuildLedger(tripID, deref(stored),
		settlement.WithBaseCurrency(trip.BaseCurrency),
		settlement.WithDecimalPlaces(places),
		settlement.WithRoundingMode(s.policy.RoundingMode),
		settlement.WithRemainderTarget(s.policy.RemainderTarget),
		settlement.WithSettledTransfers(deref(paid)),
		settlement.WithClock(s.now),
	)
	if err != nil {
		slog.Error("GetSettlement failed - calculation error", "trip_id", tripID, "error", err)
		return nil, toConnectError(err)
	}

	transfers := strategy.Settle(ledger)
	balanced := ledger.Balanced()
	if !balanced {
		slog.Warn("Settlement balances do not add up to zero", "trip_id", tripID, "warnings_count", len(ledger.Warnings))
		s.metrics.ObserveConservationViolation()
	}
	s.metrics.ObserveWarnings(warningKinds(ledger.Warnings)...)
	s.metrics.ObserveTransfers(string(strategy.Name()), len(transfers))

	summaries := slices.SortedFunc(maps.Values(ledger.Summaries), func(a, b settlement.PersonSummary) int {
		return cmp.Compare(a.UserID, b.UserID)
	})

	slog.Info("GetSettlement successful",
		"trip_id", tripID,
		"strategy", strategy.Name(),
		"expenses_count", len(stored),
		"members_count", len(summaries),
		"transfers_count", len(transfers),
	)

	return connect.NewResponse(&GetSettlementResponse{
		Strategy:  strategy.Name(),
		Summaries: summaries,
		Transfers: transfers,
		Balanced:  balanced,
		Warnings:  ledger.Warnings,
	}), nil
}

// SettleTransfer records that FromUserID paid ToUserID. Later settlements
// count the payment, so the debt it covered is not proposed again.
func (s *TripService) SettleTransfer(ctx context.Context, req *connect.Request[SettleTransferRequest]) (*connect.Response[SettleTransferResponse], error) {
	msg := req.Msg
	slog.Info("SettleTransfer request received",
		"trip_id", msg.TripID,
		"from", msg.FromUserID,
		"to", msg.ToUserID,
		"amount", msg.Amount,
	)

	switch {
	case msg.TripID == "":
		return nil, invalidArgument("trip_id", "required")
	case strings.TrimSpace(msg.FromUserID) == "" || strings.TrimSpace(msg.ToUserID) == "":
		return nil, invalidArgument("transfer", "both from_user_id and to_user_id are required")
	case msg.FromUserID == msg.ToUserID:
		return nil, invalidArgument("transfer", "cannot settle with oneself")
	case !msg.Amount.IsPositive():
		return nil, invalidArgument("amount", "must be greater than zero, got %s", msg.Amount)
	}

	now := s.now()
	transfer := &settlement.MinimalTransfer{
		TripID:     msg.TripID,
		FromUserID: msg.FromUserID,
		ToUserID:   msg.ToUserID,
		AmountBase: msg.Amount,
		ComputedAt: now,
		SettledAt:  &now,
	}
	if err := s.store.CreateSettledTransfer(ctx, transfer); err != nil {
		slog.Error("SettleTransfer failed", "trip_id", msg.TripID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Transfer settled", "trip_id", msg.TripID, "transfer_id", transfer.ID)

	return connect.NewResponse(&SettleTransferResponse{Transfer: transfer}), nil
}

// ListSettledTransfers returns the recorded payments of a trip.
func (s *TripService) ListSettledTransfers(ctx context.Context, req *connect.Request[ListSettledTransfersRequest]) (*connect.Response[ListSettledTransfersResponse], error) {
	if _, err := s.store.GetTrip(ctx, req.Msg.TripID); err != nil {
		return nil, toConnectError(err)
	}
	transfers, err := s.store.ListSettledTransfers(ctx, req.Msg.TripID)
	if err != nil {
		slog.Error("ListSettledTransfers failed", "trip_id", req.Msg.TripID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListSettledTransfersResponse{Transfers: transfers}), nil
}

func deref[T any](ptrs []*T) []T {
	out := make([]T, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}
