package action

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Repository persists Actions.
type Repository interface {
	GetByID(ctx context.Context, id int) (*Action, error)
	List(ctx context.Context) ([]Action, error)
	ListEnabled(ctx context.Context) ([]Action, error)
	Create(ctx context.Context, a *Action) error
	Update(ctx context.Context, a *Action) error
	Delete(ctx context.Context, id int) error
}

// SQLiteRepository implements Repository against the actions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new action repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const actionColumns = "id, name, description, enabled, chain, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanAction(s scanner) (*Action, error) {
	var (
		a         Action
		enabled   int
		chainJSON string
	)
	if err := s.Scan(&a.ID, &a.Name, &a.Description, &enabled, &chainJSON, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(chainJSON), &a.Chain); err != nil {
		return nil, fmt.Errorf("action: decode chain: %w", err)
	}
	return &a, nil
}

// GetByID fetches one action by id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int) (*Action, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+actionColumns+" FROM actions WHERE id = ?", id)
	a, err := scanAction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrActionNotFound
		}
		return nil, fmt.Errorf("action: get by id: %w", err)
	}
	return a, nil
}

// List returns every action.
func (r *SQLiteRepository) List(ctx context.Context) ([]Action, error) {
	return r.query(ctx, "SELECT "+actionColumns+" FROM actions ORDER BY id")
}

// ListEnabled returns only enabled actions — the set the engine loads
// at startup and after hot-reload.
func (r *SQLiteRepository) ListEnabled(ctx context.Context) ([]Action, error) {
	return r.query(ctx, "SELECT "+actionColumns+" FROM actions WHERE enabled = 1 ORDER BY id")
}

func (r *SQLiteRepository) query(ctx context.Context, query string) ([]Action, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("action: list: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("action: scan: %w", err)
		}
		actions = append(actions, *a)
	}
	return actions, rows.Err()
}

// Create inserts a new action, assigning its ID and timestamps.
func (r *SQLiteRepository) Create(ctx context.Context, a *Action) error {
	chainJSON, err := json.Marshal(a.Chain)
	if err != nil {
		return fmt.Errorf("action: encode chain: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO actions (name, description, enabled, chain, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		a.Name, a.Description, boolToInt(a.Enabled), string(chainJSON), now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrActionExists
		}
		return fmt.Errorf("action: create: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("action: create: %w", err)
	}
	a.ID = int(id)
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// Update overwrites an existing action's mutable fields.
func (r *SQLiteRepository) Update(ctx context.Context, a *Action) error {
	chainJSON, err := json.Marshal(a.Chain)
	if err != nil {
		return fmt.Errorf("action: encode chain: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		"UPDATE actions SET name = ?, description = ?, enabled = ?, chain = ?, updated_at = ? WHERE id = ?",
		a.Name, a.Description, boolToInt(a.Enabled), string(chainJSON), now, a.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrActionExists
		}
		return fmt.Errorf("action: update: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("action: update: %w", err)
	}
	if rows == 0 {
		return ErrActionNotFound
	}
	a.UpdatedAt = now
	return nil
}

// Delete removes an action by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM actions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("action: delete: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("action: delete: %w", err)
	}
	if rows == 0 {
		return ErrActionNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
