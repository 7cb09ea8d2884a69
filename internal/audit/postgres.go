package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository using PostgreSQL. The
// audit_logs table carries no UPDATE or DELETE path in this codebase;
// append-only is enforced by usage, and a database-level rule can be
// layered on in deployments that require it.
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

// Append records an action.
func (r *PostgresRepository) Append(ctx context.Context, entry Entry) (*AuditLog, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	log := &AuditLog{
		ID:        uuid.New().String(),
		Action:    entry.Action,
		Message:   entry.Message,
		ActorID:   entry.ActorID,
		ClientID:  entry.ClientID,
		PolicyID:  entry.PolicyID,
		RequestID: entry.RequestID,
	}
	query := `
		INSERT INTO audit_logs (id, action, message, actor_id, client_id, policy_id, request_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''))
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		log.ID, log.Action, log.Message, log.ActorID, log.ClientID, log.PolicyID, log.RequestID).
		Scan(&log.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append audit log: %w", err)
	}
	log.CreatedAt = log.CreatedAt.UTC()
	return log, nil
}

const auditColumns = `id, action, message, COALESCE(actor_id, ''), COALESCE(client_id, ''), COALESCE(policy_id, ''), COALESCE(request_id, ''), created_at`

// QueryByClient retrieves audit logs for a client, newest first.
func (r *PostgresRepository) QueryByClient(ctx context.Context, clientID string, limit int) ([]*AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE client_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return r.query(ctx, query, limit, clientID)
}

// QueryByAction retrieves audit logs of one action kind, newest first.
func (r *PostgresRepository) QueryByAction(ctx context.Context, action Action, limit int) ([]*AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE action = $1
		ORDER BY created_at DESC, id DESC
	`
	return r.query(ctx, query, limit, string(action))
}

func (r *PostgresRepository) query(ctx context.Context, query string, limit int, arg any) ([]*AuditLog, error) {
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var out []*AuditLog
	for rows.Next() {
		var log AuditLog
		if err := rows.Scan(&log.ID, &log.Action, &log.Message, &log.ActorID, &log.ClientID, &log.PolicyID, &log.RequestID, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.CreatedAt = log.CreatedAt.UTC()
		out = append(out, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return out, nil
}
