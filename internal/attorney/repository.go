package attorney

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository errors.
var (
	ErrAttorneyNotFound = errors.New("attorney not found")
	ErrEmailTaken       = errors.New("email already registered")
)

// Repository defines persistence for attorney accounts.
type Repository interface {
	Insert(ctx context.Context, a *Attorney) (*Attorney, error)
	GetByID(ctx context.Context, id string) (*Attorney, error)
	GetByEmail(ctx context.Context, email string) (*Attorney, error)
	// GetByStripeCustomerID resolves the attorney a Stripe customer
	// belongs to; webhook events only carry the customer id.
	GetByStripeCustomerID(ctx context.Context, customerID string) (*Attorney, error)
	// UpdateSubscription records the Stripe customer and subscription
	// status from a webhook event.
	UpdateSubscription(ctx context.Context, id, stripeCustomerID, status string) error
}

// InMemoryRepository implements Repository with in-memory storage.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu        sync.RWMutex
	attorneys map[string]*Attorney
	byEmail   map[string]string
	now       func() time.Time
}

// NewInMemoryRepository creates a new in-memory attorney repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		attorneys: make(map[string]*Attorney),
		byEmail:   make(map[string]string),
		now:       time.Now,
	}
}

// Insert stores a new attorney account. Email uniqueness is enforced
// case-insensitively, matching the database's unique index on
// lower(email).
func (r *InMemoryRepository) Insert(_ context.Context, in *Attorney) (*Attorney, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(in.Email)
	if _, exists := r.byEmail[key]; exists {
		return nil, ErrEmailTaken
	}

	stored := *in
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.SubscriptionStatus == "" {
		stored.SubscriptionStatus = SubscriptionNone
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.attorneys[stored.ID] = &stored
	r.byEmail[key] = stored.ID

	out := stored
	return &out, nil
}

// GetByID retrieves an attorney by id.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Attorney, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.attorneys[id]
	if !ok {
		return nil, ErrAttorneyNotFound
	}
	out := *stored
	return &out, nil
}

// GetByEmail retrieves an attorney by email, case-insensitively.
func (r *InMemoryRepository) GetByEmail(_ context.Context, email string) (*Attorney, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrAttorneyNotFound
	}
	out := *r.attorneys[id]
	return &out, nil
}

// GetByStripeCustomerID retrieves the attorney bound to a Stripe
// customer.
func (r *InMemoryRepository) GetByStripeCustomerID(_ context.Context, customerID string) (*Attorney, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if customerID == "" {
		return nil, ErrAttorneyNotFound
	}
	for _, stored := range r.attorneys {
		if stored.StripeCustomerID == customerID {
			out := *stored
			return &out, nil
		}
	}
	return nil, ErrAttorneyNotFound
}

// UpdateSubscription records the Stripe customer and subscription status.
func (r *InMemoryRepository) UpdateSubscription(_ context.Context, id, stripeCustomerID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.attorneys[id]
	if !ok {
		return ErrAttorneyNotFound
	}
	stored.StripeCustomerID = stripeCustomerID
	stored.SubscriptionStatus = status
	stored.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)
	return nil
}
