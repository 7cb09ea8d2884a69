package document

import (
	"context"
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestInMemoryRepository_Insert(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	d, err := repo.Insert(ctx, &Document{
		AttorneyID:  "attorney-1",
		ClientID:    strPtr("client-1"),
		ObjectKey:   "documents/client-1/abc.pdf",
		ContentType: "application/pdf",
		SizeBytes:   2048,
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if d.ID == "" {
		t.Error("Insert() should assign an id")
	}
	if d.Status != StatusUploaded {
		t.Errorf("Status = %q, want UPLOADED default", d.Status)
	}
	if d.CreatedAt.IsZero() || d.UpdatedAt.IsZero() {
		t.Error("Insert() should assign timestamps")
	}
	if !d.Extracted.Empty() {
		t.Error("fresh document should have no extracted fields")
	}
}

func TestInMemoryRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	inserted, err := repo.Insert(ctx, &Document{AttorneyID: "attorney-1", ObjectKey: "documents/intake/x.pdf"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, inserted.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ObjectKey != inserted.ObjectKey {
		t.Errorf("ObjectKey = %q, want %q", got.ObjectKey, inserted.ObjectKey)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("GetByID(unknown) error = %v, want ErrDocumentNotFound", err)
	}
}

func TestInMemoryRepository_ListByClient(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	times := []time.Time{
		time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	i := 0
	repo.now = func() time.Time { t := times[i%len(times)]; i++; return t }

	first, _ := repo.Insert(ctx, &Document{AttorneyID: "a", ClientID: strPtr("client-1"), ObjectKey: "k1"})
	second, _ := repo.Insert(ctx, &Document{AttorneyID: "a", ClientID: strPtr("client-1"), ObjectKey: "k2"})
	if _, err := repo.Insert(ctx, &Document{AttorneyID: "a", ClientID: strPtr("client-2"), ObjectKey: "k3"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	// Unlinked intake document is excluded.
	if _, err := repo.Insert(ctx, &Document{AttorneyID: "a", ObjectKey: "k4"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.ListByClient(ctx, "client-1")
	if err != nil {
		t.Fatalf("ListByClient() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByClient() returned %d documents, want 2", len(got))
	}
	// second was inserted with the earlier timestamp.
	if got[0].ID != second.ID || got[1].ID != first.ID {
		t.Error("ListByClient() should order oldest first")
	}
}

func TestInMemoryRepository_SetExtraction(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	d, err := repo.Insert(ctx, &Document{AttorneyID: "attorney-1", ObjectKey: "documents/intake/x.pdf"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	fields := ExtractedFields{
		PolicyNumber: strPtr("POL-100"),
		CarrierName:  strPtr("Acme Life"),
	}
	if err := repo.SetExtraction(ctx, d.ID, StatusProcessed, fields); err != nil {
		t.Fatalf("SetExtraction() error = %v", err)
	}

	got, err := repo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusProcessed {
		t.Errorf("Status = %q, want PROCESSED", got.Status)
	}
	if got.Extracted.PolicyNumber == nil || *got.Extracted.PolicyNumber != "POL-100" {
		t.Errorf("PolicyNumber = %v, want POL-100", got.Extracted.PolicyNumber)
	}
	if got.Extracted.InsuredName != nil {
		t.Error("InsuredName should stay nil when not extracted")
	}

	if err := repo.SetExtraction(ctx, "missing", StatusFailed, ExtractedFields{}); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("SetExtraction(unknown) error = %v, want ErrDocumentNotFound", err)
	}
}

func TestExtractedFields_Empty(t *testing.T) {
	if !(ExtractedFields{}).Empty() {
		t.Error("zero value should be empty")
	}
	if (ExtractedFields{CarrierName: strPtr("Acme")}).Empty() {
		t.Error("populated fields should not be empty")
	}
}
