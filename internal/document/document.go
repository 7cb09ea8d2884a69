// Package document tracks uploaded policy documents and the fields
// extracted from them.
package document

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrDocumentNotFound is returned when a document id does not resolve.
var ErrDocumentNotFound = errors.New("document not found")

// Document statuses. A document starts UPLOADED once its object is
// registered; OCR moves it to PROCESSED or FAILED.
const (
	StatusUploaded  = "UPLOADED"
	StatusProcessed = "PROCESSED"
	StatusFailed    = "FAILED"
)

// ExtractedFields holds the policy fields parsed out of a document's
// OCR text. Every field is optional; a nil pointer means the parser
// found nothing for it.
type ExtractedFields struct {
	PolicyNumber *string `json:"policy_number,omitempty"`
	CarrierName  *string `json:"carrier_name,omitempty"`
	InsuredName  *string `json:"insured_name,omitempty"`
}

// Empty reports whether no field was extracted.
func (f ExtractedFields) Empty() bool {
	return f.PolicyNumber == nil && f.CarrierName == nil && f.InsuredName == nil
}

// Document is the metadata row for one uploaded object. The bytes live
// in object storage under ObjectKey; this row records ownership,
// upload details, and OCR results.
type Document struct {
	ID          string          `json:"id"`
	AttorneyID  string          `json:"attorney_id"`
	ClientID    *string         `json:"client_id,omitempty"`
	PolicyID    *string         `json:"policy_id,omitempty"`
	ObjectKey   string          `json:"object_key"`
	ContentType string          `json:"content_type"`
	SizeBytes   int64           `json:"size_bytes"`
	Status      string          `json:"status"`
	Extracted   ExtractedFields `json:"extracted"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Repository defines persistence for document metadata.
type Repository interface {
	Insert(ctx context.Context, d *Document) (*Document, error)
	GetByID(ctx context.Context, id string) (*Document, error)
	ListByClient(ctx context.Context, clientID string) ([]*Document, error)
	// SetExtraction records the OCR outcome: status plus whatever
	// fields were parsed.
	SetExtraction(ctx context.Context, id, status string, fields ExtractedFields) error
}

// InMemoryRepository implements Repository with in-memory storage.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu        sync.RWMutex
	documents map[string]*Document
	now       func() time.Time
}

// NewInMemoryRepository creates a new in-memory document repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		documents: make(map[string]*Document),
		now:       time.Now,
	}
}

// Insert stores a new document record.
func (r *InMemoryRepository) Insert(_ context.Context, in *Document) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *in
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Status == "" {
		stored.Status = StatusUploaded
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.documents[stored.ID] = &stored

	out := stored
	return &out, nil
}

// GetByID retrieves a document by id.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.documents[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	out := *stored
	return &out, nil
}

// ListByClient retrieves all documents for a client, oldest first.
func (r *InMemoryRepository) ListByClient(_ context.Context, clientID string) ([]*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Document
	for _, stored := range r.documents {
		if stored.ClientID != nil && *stored.ClientID == clientID {
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

// SetExtraction records the OCR outcome for a document.
func (r *InMemoryRepository) SetExtraction(_ context.Context, id, status string, fields ExtractedFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.documents[id]
	if !ok {
		return ErrDocumentNotFound
	}
	stored.Status = status
	stored.Extracted = fields
	stored.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)
	return nil
}
