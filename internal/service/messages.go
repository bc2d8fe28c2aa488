package service

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/tripsplit/internal/allocation"
	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/money"
	"github.com/mmynk/tripsplit/internal/settlement"
)

type CreateTripRequest struct {
	Name         string   `json:"name"`
	BaseCurrency string   `json:"base_currency"`
	Members      []string `json:"members"`
}

type CreateTripResponse struct {
	Trip *models.Trip `json:"trip"`
}

type GetTripRequest struct {
	TripID string `json:"trip_id"`
}

type GetTripResponse struct {
	Trip *models.Trip `json:"trip"`
}

type AddExpenseRequest struct {
	Expense settlement.Expense `json:"expense"`
}

// AddExpenseResponse echoes the stored expense with the shares it was
// validated against.
type AddExpenseResponse struct {
	Expense  *settlement.Expense        `json:"expense"`
	Shares   map[string]decimal.Decimal `json:"shares"`
	Warnings []allocation.Warning       `json:"warnings,omitempty"`
}

type ListExpensesRequest struct {
	TripID string `json:"trip_id"`
}

type ListExpensesResponse struct {
	Expenses []*settlement.Expense `json:"expenses"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type DeleteExpenseResponse struct{}

type GetSettlementRequest struct {
	TripID string `json:"trip_id"`
	// Strategy overrides the server default ("pairwise" or "greedy").
	Strategy settlement.StrategyName `json:"strategy,omitempty"`
}

type GetSettlementResponse struct {
	Strategy  settlement.StrategyName      `json:"strategy"`
	Summaries []settlement.PersonSummary   `json:"summaries"`
	Transfers []settlement.MinimalTransfer `json:"transfers"`
	// Balanced is false when the nets do not add up to zero, which points at
	// a bug rather than bad input.
	Balanced bool                 `json:"balanced"`
	Warnings []allocation.Warning `json:"warnings,omitempty"`
}

type SettleTransferRequest struct {
	TripID     string          `json:"trip_id"`
	FromUserID string          `json:"from_user_id"`
	ToUserID   string          `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type SettleTransferResponse struct {
	Transfer *settlement.MinimalTransfer `json:"transfer"`
}

type ListSettledTransfersRequest struct {
	TripID string `json:"trip_id"`
}

type ListSettledTransfersResponse struct {
	Transfers []*settlement.MinimalTransfer `json:"transfers"`
}

type ComputeBreakdownRequest struct {
	Items        []allocation.LineItem     `json:"items"`
	Extras       allocation.Extras         `json:"extras"`
	Rule         allocation.AllocationRule `json:"rule"`
	PayerID      string                    `json:"payer_id"`
	Participants []string                  `json:"participants,omitempty"`
	// Seed makes the random remainder target reproducible.
	Seed *uint64 `json:"seed,omitempty"`
}

type ComputeBreakdownResponse struct {
	Result *allocation.Result `json:"result"`
}

type ComputeSharesRequest struct {
	Expense settlement.Expense `json:"expense"`
	// DecimalPlaces overrides the places looked up from the expense currency.
	DecimalPlaces   *int32                `json:"decimal_places,omitempty"`
	RoundingMode    money.RoundingMode    `json:"rounding_mode,omitempty"`
	RemainderTarget money.RemainderTarget `json:"remainder_target,omitempty"`
	Seed            *uint64               `json:"seed,omitempty"`
}

type ComputeSharesResponse struct {
	Shares   map[string]decimal.Decimal `json:"shares"`
	Warnings []allocation.Warning       `json:"warnings,omitempty"`
}
