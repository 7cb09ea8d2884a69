package attorney

import (
	"context"
	"errors"
	"testing"

	"github.com/heirvault/heirvault/internal/auth"
)

func TestInMemoryRepository_Insert(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	a, err := repo.Insert(ctx, &Attorney{
		Email:        "jane@firm.example.com",
		Name:         "Jane Doe",
		PasswordHash: "hash",
		Role:         auth.RoleAttorney,
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if a.ID == "" {
		t.Error("Insert() should assign an id")
	}
	if a.SubscriptionStatus != SubscriptionNone {
		t.Errorf("SubscriptionStatus = %q, want NONE default", a.SubscriptionStatus)
	}
	if a.CreatedAt.IsZero() || a.UpdatedAt.IsZero() {
		t.Error("Insert() should assign timestamps")
	}
}

func TestInMemoryRepository_EmailUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	if _, err := repo.Insert(ctx, &Attorney{Email: "jane@firm.example.com", Role: auth.RoleAttorney}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	// Same address, different case.
	_, err := repo.Insert(ctx, &Attorney{Email: "Jane@Firm.Example.COM", Role: auth.RoleAttorney})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Insert(duplicate email) error = %v, want ErrEmailTaken", err)
	}
}

func TestInMemoryRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	inserted, err := repo.Insert(ctx, &Attorney{Email: "jane@firm.example.com", Role: auth.RoleAttorney})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.GetByEmail(ctx, "JANE@firm.example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != inserted.ID {
		t.Errorf("GetByEmail() id = %q, want %q", got.ID, inserted.ID)
	}

	if _, err := repo.GetByEmail(ctx, "nobody@firm.example.com"); !errors.Is(err, ErrAttorneyNotFound) {
		t.Errorf("GetByEmail(unknown) error = %v, want ErrAttorneyNotFound", err)
	}
}

func TestInMemoryRepository_UpdateSubscription(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	a, err := repo.Insert(ctx, &Attorney{Email: "jane@firm.example.com", Role: auth.RoleAttorney})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if err := repo.UpdateSubscription(ctx, a.ID, "cus_123", SubscriptionActive); err != nil {
		t.Fatalf("UpdateSubscription() error = %v", err)
	}

	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.StripeCustomerID != "cus_123" || got.SubscriptionStatus != SubscriptionActive {
		t.Errorf("subscription = %q/%q, want cus_123/ACTIVE", got.StripeCustomerID, got.SubscriptionStatus)
	}

	if err := repo.UpdateSubscription(ctx, "missing", "cus_x", SubscriptionActive); !errors.Is(err, ErrAttorneyNotFound) {
		t.Errorf("UpdateSubscription(unknown) error = %v, want ErrAttorneyNotFound", err)
	}
}
