// Package submission records each intake or update event with a
// snapshot of the submitted payload.
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSubmissionNotFound is returned when a submission id does not
// resolve.
var ErrSubmissionNotFound = errors.New("submission not found")

// Submission statuses.
const (
	StatusReceived  = "RECEIVED"
	StatusProcessed = "PROCESSED"
	StatusFailed    = "FAILED"
)

// Submission is one intake event. Payload is the submitted body as
// received, kept verbatim for dispute review; it is never re-serialized
// after storage.
type Submission struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"client_id"`
	Kind      string          `json:"kind"` // "intake" or "update"
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Repository defines persistence for submissions.
type Repository interface {
	Insert(ctx context.Context, s *Submission) (*Submission, error)
	SetStatus(ctx context.Context, id, status string) error
	GetByID(ctx context.Context, id string) (*Submission, error)
	ListByClient(ctx context.Context, clientID string) ([]*Submission, error)
}

// InMemoryRepository implements Repository with in-memory storage.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu          sync.RWMutex
	submissions map[string]*Submission
	now         func() time.Time
}

// NewInMemoryRepository creates a new in-memory submission repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		submissions: make(map[string]*Submission),
		now:         time.Now,
	}
}

// Insert stores a new submission.
func (r *InMemoryRepository) Insert(_ context.Context, in *Submission) (*Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *in
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Status == "" {
		stored.Status = StatusReceived
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.submissions[stored.ID] = &stored

	out := stored
	return &out, nil
}

// SetStatus updates the processing status of a submission.
func (r *InMemoryRepository) SetStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.submissions[id]
	if !ok {
		return ErrSubmissionNotFound
	}
	stored.Status = status
	stored.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)
	return nil
}

// GetByID retrieves a submission by id.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.submissions[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	out := *stored
	return &out, nil
}

// ListByClient retrieves all submissions for a client, oldest first.
func (r *InMemoryRepository) ListByClient(_ context.Context, clientID string) ([]*Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Submission
	for _, stored := range r.submissions {
		if stored.ClientID == clientID {
			c := *stored
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
