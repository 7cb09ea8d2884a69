package client

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClientNotFound is returned when a client id does not resolve.
var ErrClientNotFound = errors.New("client not found")

// Repository defines persistence for clients.
type Repository interface {
	Insert(ctx context.Context, c *Client) (*Client, error)
	Update(ctx context.Context, c *Client) error
	GetByID(ctx context.Context, id string) (*Client, error)
	ListByAttorney(ctx context.Context, attorneyID string) ([]*Client, error)
}

// InMemoryRepository implements Repository with in-memory storage.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	clients map[string]*Client
	now     func() time.Time
}

// NewInMemoryRepository creates a new in-memory client repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		clients: make(map[string]*Client),
		now:     time.Now,
	}
}

// Insert stores a new client.
func (r *InMemoryRepository) Insert(_ context.Context, in *Client) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *in
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.clients[stored.ID] = &stored

	out := stored
	return &out, nil
}

// Update modifies an existing client's mutable contact fields. The id
// and created_at are immutable.
func (r *InMemoryRepository) Update(_ context.Context, in *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.clients[in.ID]
	if !ok {
		return ErrClientNotFound
	}
	updated := *in
	updated.AttorneyID = stored.AttorneyID
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)
	r.clients[in.ID] = &updated
	return nil
}

// GetByID retrieves a client by id.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	out := *stored
	return &out, nil
}

// ListByAttorney retrieves all clients for an attorney tenant, oldest
// first.
func (r *InMemoryRepository) ListByAttorney(_ context.Context, attorneyID string) ([]*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Client
	for _, stored := range r.clients {
		if stored.AttorneyID == attorneyID {
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
