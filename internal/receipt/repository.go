package receipt

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrReceiptNotFound is returned when a receipt id does not resolve
	// to a stored row. Callers must surface it distinctly from an
	// integrity mismatch.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrDigestAlreadySet is returned when AttachDigest is called on a
	// receipt that already carries a digest. Receipts are immutable once
	// fully created.
	ErrDigestAlreadySet = errors.New("receipt digest already set")
)

// Repository defines persistence for receipts.
//
// Create must return the stored row including the creation timestamp
// assigned by the persistence layer. The digest is computed from that
// returned timestamp and attached exactly once via AttachDigest within
// the same create flow.
type Repository interface {
	Create(ctx context.Context, r *Receipt) (*Receipt, error)
	AttachDigest(ctx context.Context, id, digest string) error
	GetByID(ctx context.Context, id string) (*Receipt, error)
	ListByClient(ctx context.Context, clientID string) ([]*Receipt, error)
}

// InMemoryRepository implements Repository with in-memory storage.
// Used for testing and development. Thread-safe via RWMutex.
//
// It reproduces the database contract: the caller's CreatedAt is ignored
// and the repository's own clock assigns it, truncated to millisecond
// precision to match timestamptz round-tripping.
type InMemoryRepository struct {
	mu       sync.RWMutex
	receipts map[string]*Receipt
	now      func() time.Time
}

// NewInMemoryRepository creates a new in-memory receipt repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		receipts: make(map[string]*Receipt),
		now:      time.Now,
	}
}

// SetClock overrides the repository clock. For tests that need to pin
// the store-assigned creation timestamp.
func (r *InMemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Create stores a new receipt and returns a copy carrying the
// repository-assigned creation timestamp.
func (r *InMemoryRepository) Create(_ context.Context, in *Receipt) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *in
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.CreatedAt = r.now().UTC().Truncate(time.Millisecond)

	r.receipts[stored.ID] = &stored

	out := stored
	return &out, nil
}

// AttachDigest sets the digest on a stored receipt exactly once.
func (r *InMemoryRepository) AttachDigest(_ context.Context, id, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.receipts[id]
	if !ok {
		return ErrReceiptNotFound
	}
	if stored.Digest != "" {
		return ErrDigestAlreadySet
	}
	stored.Digest = digest
	return nil
}

// GetByID retrieves a receipt by id.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.receipts[id]
	if !ok {
		return nil, ErrReceiptNotFound
	}
	out := *stored
	return &out, nil
}

// ListByClient retrieves all receipts for a client, oldest first.
func (r *InMemoryRepository) ListByClient(_ context.Context, clientID string) ([]*Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Receipt
	for _, stored := range r.receipts {
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
