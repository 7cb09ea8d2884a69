package receipt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heirvault/heirvault/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL.
//
// created_at carries DEFAULT now() in the schema; Create reads the
// assigned value back through RETURNING so the caller hashes with the
// database clock, not its own.
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

// Create inserts a receipt row and returns it with the database-assigned
// id defaults applied and created_at populated from RETURNING.
func (r *PostgresRepository) Create(ctx context.Context, in *Receipt) (*Receipt, error) {
	stored := *in

	ctx, endSpan := tracing.StartDBSpan(ctx, "receipts", tracing.DBOperationInsert)
	query := `
		INSERT INTO receipts (id, client_id, submission_id, number)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, stored.ID, stored.ClientID, stored.SubmissionID, stored.Number).
		Scan(&stored.CreatedAt)
	endSpan(err)
	if err != nil {
		r.logger.Error("failed to insert receipt",
			slog.String("error", err.Error()),
			slog.String("client_id", stored.ClientID))
		return nil, fmt.Errorf("failed to insert receipt: %w", err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	return &stored, nil
}

// AttachDigest sets the digest column exactly once. A second attempt
// returns ErrDigestAlreadySet.
func (r *PostgresRepository) AttachDigest(ctx context.Context, id, digest string) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, "receipts", tracing.DBOperationUpdate)
	query := `
		UPDATE receipts SET digest = $2
		WHERE id = $1 AND digest IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, digest)
	endSpan(err)
	if err != nil {
		return fmt.Errorf("failed to attach digest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM receipts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check receipt existence: %w", err)
		}
		if !exists {
			return ErrReceiptNotFound
		}
		return ErrDigestAlreadySet
	}
	return nil
}

// GetByID retrieves a receipt by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Receipt, error) {
	query := `
		SELECT id, client_id, submission_id, number, COALESCE(digest, ''), created_at
		FROM receipts
		WHERE id = $1
	`
	var stored Receipt
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&stored.ID, &stored.ClientID, &stored.SubmissionID, &stored.Number, &stored.Digest, &stored.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	return &stored, nil
}

// ListByClient retrieves all receipts for a client, oldest first.
func (r *PostgresRepository) ListByClient(ctx context.Context, clientID string) ([]*Receipt, error) {
	query := `
		SELECT id, client_id, submission_id, number, COALESCE(digest, ''), created_at
		FROM receipts
		WHERE client_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var out []*Receipt
	for rows.Next() {
		var stored Receipt
		if err := rows.Scan(&stored.ID, &stored.ClientID, &stored.SubmissionID, &stored.Number, &stored.Digest, &stored.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		stored.CreatedAt = stored.CreatedAt.UTC()
		out = append(out, &stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipts: %w", err)
	}
	return out, nil
}
