package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tripsplit/internal/settlement"
	"github.com/mmynk/tripsplit/internal/storage"
)

const expenseColumns = "id, trip_id, payer_id, currency, amount, split_type, itemization, created_at"

// CreateExpense persists a new expense with its participant weights.
// The receipt of an itemized expense is stored as JSON.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *settlement.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now()
	}
	expense.CreatedAt = expense.CreatedAt.Truncate(time.Millisecond)
	expense.Currency = strings.ToUpper(expense.Currency)

	var itemization any
	if expense.Itemization != nil {
		data, err := json.Marshal(expense.Itemization)
		if err != nil {
			return fmt.Errorf("failed to encode itemization: %w", err)
		}
		itemization = string(data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tripExists(ctx, tx, expense.TripID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		expense.ID, expense.TripID, expense.PayerID, expense.Currency, expense.Amount,
		string(expense.SplitType), itemization, expense.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for _, id := range slices.Sorted(maps.Keys(expense.Participants)) {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO expense_participants (expense_id, user_id, weight) VALUES (?, ?, ?)",
			expense.ID, id, expense.Participants[id],
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetExpense retrieves an expense by ID, including its participants.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*settlement.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?",
		expenseID,
	)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadParticipants(ctx, []*settlement.Expense{expense}); err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpensesByTrip retrieves all expenses of a trip, oldest first.
func (s *SQLiteStore) ListExpensesByTrip(ctx context.Context, tripID string) ([]*settlement.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE trip_id = ? ORDER BY created_at, id",
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by trip: %w", err)
	}
	defer rows.Close()

	var expenses []*settlement.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	rows.Close()

	if err := s.loadParticipants(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

// DeleteExpense removes an expense by ID.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*settlement.Expense, error) {
	expense := &settlement.Expense{}
	var (
		splitType   string
		itemization sql.NullString
		createdAt   int64
	)
	err := row.Scan(&expense.ID, &expense.TripID, &expense.PayerID, &expense.Currency,
		&expense.Amount, &splitType, &itemization, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan expense: %w", err)
	}
	expense.SplitType = settlement.SplitType(splitType)
	expense.CreatedAt = time.UnixMilli(createdAt)

	if itemization.Valid {
		expense.Itemization = &settlement.Itemization{}
		if err := json.Unmarshal([]byte(itemization.String), expense.Itemization); err != nil {
			return nil, fmt.Errorf("failed to decode itemization of expense %s: %w", expense.ID, err)
		}
	}
	return expense, nil
}

func (s *SQLiteStore) loadParticipants(ctx context.Context, expenses []*settlement.Expense) error {
	for _, expense := range expenses {
		rows, err := s.db.QueryContext(ctx,
			"SELECT user_id, weight FROM expense_participants WHERE expense_id = ? ORDER BY user_id",
			expense.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to get expense participants: %w", err)
		}

		expense.Participants = make(map[string]decimal.Decimal)
		for rows.Next() {
			var (
				id     string
				weight decimal.Decimal
			)
			if err := rows.Scan(&id, &weight); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan expense participant: %w", err)
			}
			expense.Participants[id] = weight
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate expense participants: %w", err)
		}
	}
	return nil
}
