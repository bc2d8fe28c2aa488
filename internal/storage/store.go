// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/settlement"
)

// ErrNotFound is returned when a trip or expense does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for trip storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateTrip persists a new trip. The ID, Name and CreatedAt fields are
	// populated by the store when empty.
	CreateTrip(ctx context.Context, trip *models.Trip) error

	// GetTrip retrieves a trip with its members.
	// Returns ErrNotFound if the trip does not exist.
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)

	// AddTripMembers adds participants to a trip, ignoring existing ones.
	AddTripMembers(ctx context.Context, tripID string, members []string) error

	// CreateExpense persists an expense of an existing trip. The ID and
	// CreatedAt fields are populated by the store when empty.
	CreateExpense(ctx context.Context, expense *settlement.Expense) error

	// GetExpense retrieves an expense by its ID.
	GetExpense(ctx context.Context, expenseID string) (*settlement.Expense, error)

	// ListExpensesByTrip returns the expenses of a trip, oldest first.
	ListExpensesByTrip(ctx context.Context, tripID string) ([]*settlement.Expense, error)

	// DeleteExpense removes an expense.
	// Returns ErrNotFound if the expense does not exist.
	DeleteExpense(ctx context.Context, expenseID string) error

	// CreateSettledTransfer records a payment that settled (part of) a debt.
	CreateSettledTransfer(ctx context.Context, transfer *settlement.MinimalTransfer) error

	// ListSettledTransfers returns the recorded payments of a trip, oldest first.
	ListSettledTransfers(ctx context.Context, tripID string) ([]*settlement.MinimalTransfer, error)

	// Close releases any resources held by the store.
	Close() error
}
