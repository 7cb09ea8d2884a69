// Package invite provides intake invites: expiring, single-use grants
// that let a relative or executor submit policy details for a client
// without holding an attorney account.
//
// Invites are durable rows, not process state: redemption state must
// survive restarts and be visible across instances.
package invite

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInviteNotFound is returned when an invite id does not resolve.
	ErrInviteNotFound = errors.New("invite not found")

	// ErrInviteExpired is returned when redeeming past the expiry.
	ErrInviteExpired = errors.New("invite expired")

	// ErrInviteUsed is returned when redeeming an already-redeemed
	// invite.
	ErrInviteUsed = errors.New("invite already used")
)

// DefaultTTL is how long an invite stays redeemable.
const DefaultTTL = 14 * 24 * time.Hour

// Invite grants one intake submission for a client.
type Invite struct {
	ID         string     `json:"id"`
	ClientID   string     `json:"client_id"`
	AttorneyID string     `json:"attorney_id"`
	Email      string     `json:"email"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Repository defines persistence for invites.
type Repository interface {
	Insert(ctx context.Context, inv *Invite) (*Invite, error)
	GetByID(ctx context.Context, id string) (*Invite, error)

	// Redeem marks the invite used. Exactly one Redeem can succeed per
	// invite; expired or already-used invites fail with the matching
	// sentinel.
	Redeem(ctx context.Context, id string, now time.Time) error
}

// InMemoryRepository implements Repository with in-memory storage.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	invites map[string]*Invite
}

// NewInMemoryRepository creates a new in-memory invite repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{invites: make(map[string]*Invite)}
}

// Insert stores a new invite, applying the default TTL when none is
// set.
func (r *InMemoryRepository) Insert(_ context.Context, in *Invite) (*Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *in
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if stored.ExpiresAt.IsZero() {
		stored.ExpiresAt = stored.CreatedAt.Add(DefaultTTL)
	}
	r.invites[stored.ID] = &stored

	out := stored
	return &out, nil
}

// GetByID retrieves an invite by id.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Invite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.invites[id]
	if !ok {
		return nil, ErrInviteNotFound
	}
	out := *stored
	return &out, nil
}

// Redeem marks the invite used.
func (r *InMemoryRepository) Redeem(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.invites[id]
	if !ok {
		return ErrInviteNotFound
	}
	if stored.RedeemedAt != nil {
		return ErrInviteUsed
	}
	if now.After(stored.ExpiresAt) {
		return ErrInviteExpired
	}
	ts := now.UTC().Truncate(time.Millisecond)
	stored.RedeemedAt = &ts
	return nil
}
