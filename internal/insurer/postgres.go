package insurer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// PostgresRepository implements Repository using PostgreSQL. The
// normalized_name column is maintained on insert so Resolve is a plain
// index lookup.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// Insert stores a new insurer directory entry.
func (r *PostgresRepository) Insert(ctx context.Context, in *Insurer) (*Insurer, error) {
	stored := *in
	query := `
		INSERT INTO insurers (id, name, normalized_name, naic_code)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, stored.ID, stored.Name, Normalize(stored.Name), stored.NAICCode).
		Scan(&stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert insurer: %w", err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	return &stored, nil
}

// GetByID retrieves an insurer by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Insurer, error) {
	query := `SELECT id, name, COALESCE(naic_code, ''), created_at FROM insurers WHERE id = $1`
	var stored Insurer
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&stored.ID, &stored.Name, &stored.NAICCode, &stored.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInsurerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get insurer: %w", err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	return &stored, nil
}

// List retrieves all insurers sorted by name.
func (r *PostgresRepository) List(ctx context.Context) ([]*Insurer, error) {
	query := `SELECT id, name, COALESCE(naic_code, ''), created_at FROM insurers ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list insurers: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var out []*Insurer
	for rows.Next() {
		var stored Insurer
		if err := rows.Scan(&stored.ID, &stored.Name, &stored.NAICCode, &stored.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan insurer: %w", err)
		}
		stored.CreatedAt = stored.CreatedAt.UTC()
		out = append(out, &stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate insurers: %w", err)
	}
	return out, nil
}

// Resolve maps a raw carrier name to a directory entry via the
// normalized_name index.
func (r *PostgresRepository) Resolve(ctx context.Context, rawName string) (*Insurer, error) {
	key := Normalize(rawName)
	if key == "" {
		return nil, ErrInsurerNotFound
	}
	query := `SELECT id, name, COALESCE(naic_code, ''), created_at FROM insurers WHERE normalized_name = $1`
	var stored Insurer
	err := r.db.QueryRowContext(ctx, query, key).
		Scan(&stored.ID, &stored.Name, &stored.NAICCode, &stored.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInsurerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve insurer: %w", err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	return &stored, nil
}
