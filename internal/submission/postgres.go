package submission

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

// Insert stores a new submission.
func (r *PostgresRepository) Insert(ctx context.Context, in *Submission) (*Submission, error) {
	stored := *in
	if stored.Status == "" {
		stored.Status = StatusReceived
	}
	query := `
		INSERT INTO submissions (id, client_id, kind, status, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		stored.ID, stored.ClientID, stored.Kind, stored.Status, []byte(stored.Payload)).
		Scan(&stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert submission: %w", err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.UpdatedAt = stored.UpdatedAt.UTC()
	return &stored, nil
}

// SetStatus updates the processing status of a submission.
func (r *PostgresRepository) SetStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE submissions SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update submission status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// GetByID retrieves a submission by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Submission, error) {
	query := `
		SELECT id, client_id, kind, status, payload, created_at, updated_at
		FROM submissions
		WHERE id = $1
	`
	var stored Submission
	var payload []byte
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&stored.ID, &stored.ClientID, &stored.Kind, &stored.Status, &payload, &stored.CreatedAt, &stored.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	stored.Payload = payload
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.UpdatedAt = stored.UpdatedAt.UTC()
	return &stored, nil
}

// ListByClient retrieves all submissions for a client, oldest first.
func (r *PostgresRepository) ListByClient(ctx context.Context, clientID string) ([]*Submission, error) {
	query := `
		SELECT id, client_id, kind, status, payload, created_at, updated_at
		FROM submissions
		WHERE client_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var out []*Submission
	for rows.Next() {
		var stored Submission
		var payload []byte
		if err := rows.Scan(&stored.ID, &stored.ClientID, &stored.Kind, &stored.Status, &payload, &stored.CreatedAt, &stored.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		stored.Payload = payload
		stored.CreatedAt = stored.CreatedAt.UTC()
		stored.UpdatedAt = stored.UpdatedAt.UTC()
		out = append(out, &stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return out, nil
}
