package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripsplit/internal/settlement"
)

// CreateSettledTransfer records a transfer that has been paid.
func (s *SQLiteStore) CreateSettledTransfer(ctx context.Context, transfer *settlement.MinimalTransfer) error {
	if transfer.ID == "" {
		transfer.ID = uuid.New().String()
	}
	now := time.Now()
	if transfer.ComputedAt.IsZero() {
		transfer.ComputedAt = now
	}
	if transfer.SettledAt == nil {
		transfer.SettledAt = &now
	}
	transfer.ComputedAt = transfer.ComputedAt.Truncate(time.Millisecond)
	settledAt := transfer.SettledAt.Truncate(time.Millisecond)
	transfer.SettledAt = &settledAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tripExists(ctx, tx, transfer.TripID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settled_transfers (id, trip_id, from_user_id, to_user_id, amount, computed_at, settled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		transfer.ID, transfer.TripID, transfer.FromUserID, transfer.ToUserID,
		transfer.AmountBase, transfer.ComputedAt.UnixMilli(), settledAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert settled transfer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListSettledTransfers retrieves the settled transfers of a trip, oldest first.
func (s *SQLiteStore) ListSettledTransfers(ctx context.Context, tripID string) ([]*settlement.MinimalTransfer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, from_user_id, to_user_id, amount, computed_at, settled_at
		 FROM settled_transfers WHERE trip_id = ? ORDER BY settled_at, id`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settled transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*settlement.MinimalTransfer
	for rows.Next() {
		t := &settlement.MinimalTransfer{}
		var computedAt, settledAt int64
		if err := rows.Scan(&t.ID, &t.TripID, &t.FromUserID, &t.ToUserID,
			&t.AmountBase, &computedAt, &settledAt); err != nil {
			return nil, fmt.Errorf("failed to scan settled transfer: %w", err)
		}
		t.ComputedAt = time.UnixMilli(computedAt)
		settled := time.UnixMilli(settledAt)
		t.SettledAt = &settled
		transfers = append(transfers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settled transfers: %w", err)
	}

	return transfers, nil
}
