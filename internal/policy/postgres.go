package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
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

const policyColumns = `id, client_id, insurer_id, raw_carrier_name, number, type, status, created_at, updated_at`

func scanPolicy(row interface{ Scan(...any) error }) (*Policy, error) {
	var p Policy
	var insurerID, rawCarrier sql.NullString
	err := row.Scan(&p.ID, &p.ClientID, &insurerID, &rawCarrier, &p.Number, &p.Type, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if insurerID.Valid {
		p.InsurerID = &insurerID.String
	}
	if rawCarrier.Valid {
		p.RawCarrierName = &rawCarrier.String
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// Insert stores a new policy; created_at/updated_at come from the
// database via RETURNING.
func (r *PostgresRepository) Insert(ctx context.Context, in *Policy) (*Policy, error) {
	stored := *in
	if stored.Status == "" {
		stored.Status = StatusPending
	}
	query := `
		INSERT INTO policies (id, client_id, insurer_id, raw_carrier_name, number, type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		stored.ID, stored.ClientID, stored.InsurerID, stored.RawCarrierName, stored.Number, stored.Type, stored.Status).
		Scan(&stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert policy: %w", err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.UpdatedAt = stored.UpdatedAt.UTC()
	return &stored, nil
}

// Update modifies the mutable fields of a policy. created_at is never
// written.
func (r *PostgresRepository) Update(ctx context.Context, in *Policy) error {
	query := `
		UPDATE policies
		SET insurer_id = $2, raw_carrier_name = $3, number = $4, type = $5, status = $6, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		in.ID, in.InsurerID, in.RawCarrierName, in.Number, in.Type, in.Status)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrPolicyNotFound
	}
	return nil
}

// GetByID retrieves a policy by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = $1`
	p, err := scanPolicy(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return p, nil
}

// ListByClient retrieves all policies for a client.
func (r *PostgresRepository) ListByClient(ctx context.Context, clientID string) ([]*Policy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM policies
		WHERE client_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return r.queryPolicies(ctx, query, clientID)
}

// ListByClientCreatedAtOrBefore implements the digest window query.
func (r *PostgresRepository) ListByClientCreatedAtOrBefore(ctx context.Context, clientID string, cutoff time.Time) ([]*Policy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM policies
		WHERE client_id = $1 AND created_at <= $2
		ORDER BY created_at ASC, id ASC
	`
	return r.queryPolicies(ctx, query, clientID, cutoff)
}

func (r *PostgresRepository) queryPolicies(ctx context.Context, query string, args ...any) ([]*Policy, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var out []*Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate policies: %w", err)
	}
	return out, nil
}
