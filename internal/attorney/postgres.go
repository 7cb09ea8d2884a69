package attorney

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const attorneyColumns = `id, email, name, password_hash, role, COALESCE(stripe_customer_id, ''), subscription_status, created_at, updated_at`

func scanAttorney(row interface{ Scan(...any) error }) (*Attorney, error) {
	var a Attorney
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role,
		&a.StripeCustomerID, &a.SubscriptionStatus, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// Insert stores a new attorney account; timestamps come from the database.
func (r *PostgresRepository) Insert(ctx context.Context, in *Attorney) (*Attorney, error) {
	stored := *in
	if stored.SubscriptionStatus == "" {
		stored.SubscriptionStatus = SubscriptionNone
	}
	query := `
		INSERT INTO attorneys (id, email, name, password_hash, role, subscription_status)
		VALUES ($1, lower($2), $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		stored.ID, stored.Email, stored.Name, stored.PasswordHash, stored.Role, stored.SubscriptionStatus).
		Scan(&stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		// 23505 is unique_violation: the email index
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert attorney: %w", err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.UpdatedAt = stored.UpdatedAt.UTC()
	return &stored, nil
}

// GetByID retrieves an attorney by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Attorney, error) {
	query := `SELECT ` + attorneyColumns + ` FROM attorneys WHERE id = $1`
	a, err := scanAttorney(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttorneyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attorney: %w", err)
	}
	return a, nil
}

// GetByEmail retrieves an attorney by email, case-insensitively.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Attorney, error) {
	query := `SELECT ` + attorneyColumns + ` FROM attorneys WHERE email = lower($1)`
	a, err := scanAttorney(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttorneyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attorney by email: %w", err)
	}
	return a, nil
}

// GetByStripeCustomerID retrieves the attorney bound to a Stripe
// customer.
func (r *PostgresRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*Attorney, error) {
	query := `SELECT ` + attorneyColumns + ` FROM attorneys WHERE stripe_customer_id = $1`
	a, err := scanAttorney(r.db.QueryRowContext(ctx, query, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttorneyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attorney by stripe customer: %w", err)
	}
	return a, nil
}

// UpdateSubscription records the Stripe customer and subscription status.
func (r *PostgresRepository) UpdateSubscription(ctx context.Context, id, stripeCustomerID, status string) error {
	query := `
		UPDATE attorneys
		SET stripe_customer_id = NULLIF($2, ''), subscription_status = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, stripeCustomerID, status)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrAttorneyNotFound
	}
	return nil
}
