package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrEventAlreadyProcessed is returned when attempting to process a
// duplicate webhook event.
var ErrEventAlreadyProcessed = errors.New("webhook event already processed")

// Event is a processed webhook event, kept for idempotency.
type Event struct {
	ID          string
	EventID     string // Stripe event ID
	EventType   string
	ProcessedAt time.Time
}

// EventRepository tracks processed webhook events so replayed
// deliveries are ignored.
type EventRepository interface {
	// RecordEvent records a webhook event as processed. Exactly one
	// call per event id succeeds; the rest fail with
	// ErrEventAlreadyProcessed.
	RecordEvent(ctx context.Context, eventID, eventType string) error
}

// InMemoryEventRepository implements EventRepository with in-memory
// storage. Used for testing and development.
type InMemoryEventRepository struct {
	mu     sync.Mutex
	events map[string]*Event
}

// NewInMemoryEventRepository creates a new in-memory event repository.
func NewInMemoryEventRepository() *InMemoryEventRepository {
	return &InMemoryEventRepository{events: make(map[string]*Event)}
}

// RecordEvent records a webhook event as processed.
func (r *InMemoryEventRepository) RecordEvent(_ context.Context, eventID, eventType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[eventID]; exists {
		return ErrEventAlreadyProcessed
	}
	r.events[eventID] = &Event{
		ID:          uuid.New().String(),
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now().UTC(),
	}
	return nil
}

// PostgresEventRepository implements EventRepository using PostgreSQL.
// The unique index on event_id makes the insert the idempotency check.
type PostgresEventRepository struct {
	db *sql.DB
}

// NewPostgresEventRepository creates a new PostgresEventRepository.
func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

// RecordEvent records a webhook event as processed.
func (r *PostgresEventRepository) RecordEvent(ctx context.Context, eventID, eventType string) error {
	query := `
		INSERT INTO billing_events (id, event_id, event_type)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.ExecContext(ctx, query, uuid.New().String(), eventID, eventType)
	if err != nil {
		// 23505 is unique_violation: the event_id index
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEventAlreadyProcessed
		}
		return fmt.Errorf("failed to record billing event: %w", err)
	}
	return nil
}
