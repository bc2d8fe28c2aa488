// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// PRAGMAs are per connection; a single connection keeps foreign keys on
	// and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateTrip persists a new trip with its members.
func (s *SQLiteStore) CreateTrip(ctx context.Context, trip *models.Trip) error {
	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = time.Now()
	}
	trip.CreatedAt = trip.CreatedAt.Truncate(time.Millisecond)
	trip.BaseCurrency = strings.ToUpper(trip.BaseCurrency)
	trip.Members = dedupeSorted(trip.Members)
	if trip.Name == "" {
		trip.Name = generateName(trip.Members)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO trips (id, name, base_currency, created_at) VALUES (?, ?, ?, ?)",
		trip.ID, trip.Name, trip.BaseCurrency, trip.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trip: %w", err)
	}

	if err := insertMembers(ctx, tx, trip.ID, trip.Members); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTrip retrieves a trip by ID, including its members.
func (s *SQLiteStore) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip := &models.Trip{}
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, base_currency, created_at FROM trips WHERE id = ?",
		tripID,
	).Scan(&trip.ID, &trip.Name, &trip.BaseCurrency, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	trip.CreatedAt = time.UnixMilli(createdAt)

	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM trip_members WHERE trip_id = ? ORDER BY user_id",
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan trip member: %w", err)
		}
		trip.Members = append(trip.Members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trip members: %w", err)
	}

	return trip, nil
}

// AddTripMembers adds members to an existing trip; known members are kept.
func (s *SQLiteStore) AddTripMembers(ctx context.Context, tripID string, members []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tripExists(ctx, tx, tripID); err != nil {
		return err
	}
	if err := insertMembers(ctx, tx, tripID, dedupeSorted(members)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, tripID string, members []string) error {
	for _, id := range members {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO trip_members (trip_id, user_id) VALUES (?, ?)",
			tripID, id,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trip member: %w", err)
		}
	}
	return nil
}

func tripExists(ctx context.Context, tx *sql.Tx, tripID string) error {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM trips WHERE id = ?", tripID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check trip existence: %w", err)
	}
	return nil
}

func dedupeSorted(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// generateName creates a trip name from its members.
func generateName(members []string) string {
	if len(members) == 0 {
		return fmt.Sprintf("Trip - %s", time.Now().Format("Jan 2, 2006"))
	}
	if len(members) <= 3 {
		return fmt.Sprintf("Trip with %s", strings.Join(members, ", "))
	}
	return fmt.Sprintf("Trip with %s and %d others",
		strings.Join(members[:2], ", "),
		len(members)-2,
	)
}
