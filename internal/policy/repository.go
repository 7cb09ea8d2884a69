package policy

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrPolicyNotFound is returned when a policy id does not resolve.
var ErrPolicyNotFound = errors.New("policy not found")

// Repository defines persistence for policies.
type Repository interface {
	Insert(ctx context.Context, p *Policy) (*Policy, error)
	Update(ctx context.Context, p *Policy) error
	GetByID(ctx context.Context, id string) (*Policy, error)
	ListByClient(ctx context.Context, clientID string) ([]*Policy, error)

	// ListByClientCreatedAtOrBefore returns every policy of the client
	// whose created_at is at or before cutoff, ordered created_at ASC,
	// id ASC. This is the receipt digest window query; the cutoff must
	// be a persistence-layer timestamp, never an application clock.
	ListByClientCreatedAtOrBefore(ctx context.Context, clientID string, cutoff time.Time) ([]*Policy, error)
}

// InMemoryRepository implements Repository with in-memory storage.
// Used for testing and development. Thread-safe via RWMutex.
//
// Like the Postgres implementation, created_at is assigned by the
// repository's own clock at insert, truncated to millisecond precision.
type InMemoryRepository struct {
	mu       sync.RWMutex
	policies map[string]*Policy
	now      func() time.Time
}

// NewInMemoryRepository creates a new in-memory policy repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		policies: make(map[string]*Policy),
		now:      time.Now,
	}
}

// SetClock overrides the repository clock for tests.
func (r *InMemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Insert stores a new policy and returns a copy carrying the assigned
// timestamps.
func (r *InMemoryRepository) Insert(_ context.Context, in *Policy) (*Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *in
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Status == "" {
		stored.Status = StatusPending
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.policies[stored.ID] = &stored

	out := stored
	return &out, nil
}

// Update modifies an existing policy. CreatedAt is immutable; the
// stored value is preserved regardless of the input.
func (r *InMemoryRepository) Update(_ context.Context, in *Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.policies[in.ID]
	if !ok {
		return ErrPolicyNotFound
	}
	updated := *in
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)
	r.policies[in.ID] = &updated
	return nil
}

// GetByID retrieves a policy by id.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.policies[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	out := *stored
	return &out, nil
}

// ListByClient retrieves all policies for a client, ordered created_at
// ASC, id ASC.
func (r *InMemoryRepository) ListByClient(ctx context.Context, clientID string) ([]*Policy, error) {
	return r.ListByClientCreatedAtOrBefore(ctx, clientID, time.Time{})
}

// ListByClientCreatedAtOrBefore implements the digest window query. A
// zero cutoff means no bound.
func (r *InMemoryRepository) ListByClientCreatedAtOrBefore(_ context.Context, clientID string, cutoff time.Time) ([]*Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Policy
	for _, stored := range r.policies {
		if stored.ClientID != clientID {
			continue
		}
		if !cutoff.IsZero() && stored.CreatedAt.After(cutoff) {
			continue
		}
		c := *stored
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
