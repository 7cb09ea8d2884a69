// Package insurer provides the insurer directory and raw carrier name
// resolution used at intake.
package insurer

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInsurerNotFound is returned when an insurer id or name does not
// resolve.
var ErrInsurerNotFound = errors.New("insurer not found")

// Insurer is a known life-insurance carrier.
type Insurer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NAICCode  string    `json:"naic_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository defines persistence for the insurer directory.
type Repository interface {
	Insert(ctx context.Context, i *Insurer) (*Insurer, error)
	GetByID(ctx context.Context, id string) (*Insurer, error)
	List(ctx context.Context) ([]*Insurer, error)

	// Resolve maps a raw carrier name captured at intake to a known
	// insurer, using normalized comparison. Returns ErrInsurerNotFound
	// when no directory entry matches; callers then keep the raw name
	// on the policy instead.
	Resolve(ctx context.Context, rawName string) (*Insurer, error)
}

// Normalize lowercases a carrier name and strips punctuation and the
// corporate suffixes that vary across filings, so "Acme Mutual Life
// Insurance Co." and "ACME MUTUAL LIFE" resolve to the same entry.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	for _, ch := range []string{".", ",", "'", "&"} {
		s = strings.ReplaceAll(s, ch, "")
	}
	fields := strings.Fields(s)
	suffixes := map[string]bool{
		"inc": true, "co": true, "corp": true, "company": true,
		"insurance": true, "assurance": true, "group": true, "llc": true,
	}
	for len(fields) > 1 && suffixes[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// InMemoryRepository implements Repository with in-memory storage.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu       sync.RWMutex
	insurers map[string]*Insurer
	byName   map[string]string // Normalize(name) -> id
}

// NewInMemoryRepository creates a new in-memory insurer repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		insurers: make(map[string]*Insurer),
		byName:   make(map[string]string),
	}
}

// Insert stores a new insurer directory entry.
func (r *InMemoryRepository) Insert(_ context.Context, in *Insurer) (*Insurer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *in
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	r.insurers[stored.ID] = &stored
	r.byName[Normalize(stored.Name)] = stored.ID

	out := stored
	return &out, nil
}

// GetByID retrieves an insurer by id.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Insurer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.insurers[id]
	if !ok {
		return nil, ErrInsurerNotFound
	}
	out := *stored
	return &out, nil
}

// List retrieves all insurers sorted by name.
func (r *InMemoryRepository) List(_ context.Context) ([]*Insurer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Insurer
	for _, stored := range r.insurers {
		c := *stored
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Resolve maps a raw carrier name to a directory entry.
func (r *InMemoryRepository) Resolve(_ context.Context, rawName string) (*Insurer, error) {
	key := Normalize(rawName)
	if key == "" {
		return nil, ErrInsurerNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[key]
	if !ok {
		return nil, ErrInsurerNotFound
	}
	out := *r.insurers[id]
	return &out, nil
}
