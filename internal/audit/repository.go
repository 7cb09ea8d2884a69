package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidAction is returned when the action is empty or outside
	// the closed enumeration.
	ErrInvalidAction = errors.New("invalid audit action")

	// ErrEmptyMessage is returned when the entry message is empty.
	ErrEmptyMessage = errors.New("audit message cannot be empty")
)

// Repository defines the interface for audit log operations. Append
// and read only; there is deliberately no update or delete.
type Repository interface {
	// Append records an action. Returns the created entry.
	Append(ctx context.Context, entry Entry) (*AuditLog, error)

	// QueryByClient retrieves audit logs for a client, newest first.
	// Limit 0 means no limit.
	QueryByClient(ctx context.Context, clientID string, limit int) ([]*AuditLog, error)

	// QueryByAction retrieves audit logs of one action kind, newest
	// first. Limit 0 means no limit.
	QueryByAction(ctx context.Context, action Action, limit int) ([]*AuditLog, error)
}

func validateEntry(entry Entry) error {
	if !entry.Action.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, entry.Action)
	}
	if entry.Message == "" {
		return ErrEmptyMessage
	}
	return nil
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu   sync.RWMutex
	logs map[string]*AuditLog
	// Maintain insertion order for queries
	order []string
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		logs:  make(map[string]*AuditLog),
		order: make([]string, 0),
	}
}

// Append records an action.
func (r *InMemoryRepository) Append(_ context.Context, entry Entry) (*AuditLog, error) {
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
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.logs[log.ID] = log
	r.order = append(r.order, log.ID)
	r.mu.Unlock()

	// Return a copy to prevent external modification
	logCopy := *log
	return &logCopy, nil
}

// QueryByClient retrieves audit logs for a client, newest first.
func (r *InMemoryRepository) QueryByClient(_ context.Context, clientID string, limit int) ([]*AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*AuditLog
	for i := len(r.order) - 1; i >= 0; i-- {
		log := r.logs[r.order[i]]
		if log.ClientID == clientID {
			logCopy := *log
			results = append(results, &logCopy)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

// QueryByAction retrieves audit logs of one action kind, newest first.
func (r *InMemoryRepository) QueryByAction(_ context.Context, action Action, limit int) ([]*AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*AuditLog
	for i := len(r.order) - 1; i >= 0; i-- {
		log := r.logs[r.order[i]]
		if log.Action == action {
			logCopy := *log
			results = append(results, &logCopy)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}
