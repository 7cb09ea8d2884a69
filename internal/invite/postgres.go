package invite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// PostgresRepository implements Repository using PostgreSQL. Redeem is
// a single conditional UPDATE so concurrent redemptions cannot both
// succeed.
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

// Insert stores a new invite.
func (r *PostgresRepository) Insert(ctx context.Context, in *Invite) (*Invite, error) {
	stored := *in
	query := `
		INSERT INTO invites (id, client_id, attorney_id, email, expires_at)
		VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5, '0001-01-01T00:00:00Z'::timestamptz), now() + interval '14 days'))
		RETURNING expires_at, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		stored.ID, stored.ClientID, stored.AttorneyID, stored.Email, stored.ExpiresAt).
		Scan(&stored.ExpiresAt, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invite: %w", err)
	}
	stored.ExpiresAt = stored.ExpiresAt.UTC()
	stored.CreatedAt = stored.CreatedAt.UTC()
	return &stored, nil
}

// GetByID retrieves an invite by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Invite, error) {
	query := `
		SELECT id, client_id, attorney_id, email, expires_at, redeemed_at, created_at
		FROM invites
		WHERE id = $1
	`
	var stored Invite
	var redeemed sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&stored.ID, &stored.ClientID, &stored.AttorneyID, &stored.Email, &stored.ExpiresAt, &redeemed, &stored.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	if redeemed.Valid {
		ts := redeemed.Time.UTC()
		stored.RedeemedAt = &ts
	}
	stored.ExpiresAt = stored.ExpiresAt.UTC()
	stored.CreatedAt = stored.CreatedAt.UTC()
	return &stored, nil
}

// Redeem marks the invite used if it is still open and unexpired.
func (r *PostgresRepository) Redeem(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invites SET redeemed_at = $2
		WHERE id = $1 AND redeemed_at IS NULL AND expires_at >= $2
	`, id, now)
	if err != nil {
		return fmt.Errorf("failed to redeem invite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Distinguish why the conditional update matched nothing.
	stored, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if stored.RedeemedAt != nil {
		return ErrInviteUsed
	}
	if now.After(stored.ExpiresAt) {
		return ErrInviteExpired
	}
	return fmt.Errorf("failed to redeem invite %s", id)
}
