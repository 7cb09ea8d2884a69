package document

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

const documentColumns = `id, attorney_id, client_id, policy_id, object_key, content_type,
	size_bytes, status, extracted_policy_number, extracted_carrier_name,
	extracted_insured_name, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.AttorneyID, &d.ClientID, &d.PolicyID, &d.ObjectKey,
		&d.ContentType, &d.SizeBytes, &d.Status,
		&d.Extracted.PolicyNumber, &d.Extracted.CarrierName, &d.Extracted.InsuredName,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}

// Insert stores a new document record; timestamps come from the database.
func (r *PostgresRepository) Insert(ctx context.Context, in *Document) (*Document, error) {
	stored := *in
	if stored.Status == "" {
		stored.Status = StatusUploaded
	}
	query := `
		INSERT INTO documents (id, attorney_id, client_id, policy_id, object_key, content_type, size_bytes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		stored.ID, stored.AttorneyID, stored.ClientID, stored.PolicyID,
		stored.ObjectKey, stored.ContentType, stored.SizeBytes, stored.Status).
		Scan(&stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.UpdatedAt = stored.UpdatedAt.UTC()
	return &stored, nil
}

// GetByID retrieves a document by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}

// ListByClient retrieves all documents for a client, oldest first.
func (r *PostgresRepository) ListByClient(ctx context.Context, clientID string) ([]*Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE client_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var out []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return out, nil
}

// SetExtraction records the OCR outcome for a document.
func (r *PostgresRepository) SetExtraction(ctx context.Context, id, status string, fields ExtractedFields) error {
	query := `
		UPDATE documents
		SET status = $2,
			extracted_policy_number = $3,
			extracted_carrier_name = $4,
			extracted_insured_name = $5,
			updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, status,
		fields.PolicyNumber, fields.CarrierName, fields.InsuredName)
	if err != nil {
		return fmt.Errorf("failed to update document extraction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
