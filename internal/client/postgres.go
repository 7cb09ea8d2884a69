package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// PostgresRepository implements Repository using PostgreSQL.
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

const clientColumns = `id, attorney_id, first_name, last_name, COALESCE(email, ''), date_of_birth, date_of_death, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (*Client, error) {
	var c Client
	var dob, dod sql.NullTime
	err := row.Scan(&c.ID, &c.AttorneyID, &c.FirstName, &c.LastName, &c.Email, &dob, &dod, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if dob.Valid {
		t := dob.Time.UTC()
		c.DateOfBirth = &t
	}
	if dod.Valid {
		t := dod.Time.UTC()
		c.DateOfDeath = &t
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// Insert stores a new client; timestamps come from the database.
func (r *PostgresRepository) Insert(ctx context.Context, in *Client) (*Client, error) {
	stored := *in
	query := `
		INSERT INTO clients (id, attorney_id, first_name, last_name, email, date_of_birth, date_of_death)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		stored.ID, stored.AttorneyID, stored.FirstName, stored.LastName, stored.Email, stored.DateOfBirth, stored.DateOfDeath).
		Scan(&stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert client: %w", err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.UpdatedAt = stored.UpdatedAt.UTC()
	return &stored, nil
}

// Update modifies mutable contact fields.
func (r *PostgresRepository) Update(ctx context.Context, in *Client) error {
	query := `
		UPDATE clients
		SET first_name = $2, last_name = $3, email = NULLIF($4, ''), date_of_birth = $5, date_of_death = $6, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		in.ID, in.FirstName, in.LastName, in.Email, in.DateOfBirth, in.DateOfDeath)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrClientNotFound
	}
	return nil
}

// GetByID retrieves a client by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	c, err := scanClient(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

// ListByAttorney retrieves all clients for an attorney tenant.
func (r *PostgresRepository) ListByAttorney(ctx context.Context, attorneyID string) ([]*Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE attorney_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, attorneyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var out []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return out, nil
}
