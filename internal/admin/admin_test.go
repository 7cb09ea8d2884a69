package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/heirvault/heirvault/internal/auth"
	"github.com/heirvault/heirvault/internal/client"
	"github.com/heirvault/heirvault/internal/invite"
	"github.com/heirvault/heirvault/internal/policy"
	"github.com/heirvault/heirvault/internal/receipt"
)

// policyWindow adapts the policy repository to the receipt digest
// window query.
type policyWindow struct {
	policies policy.Repository
}

func (w policyWindow) SnapshotsCreatedAtOrBefore(ctx context.Context, clientID string, cutoff time.Time) ([]receipt.PolicySnapshot, error) {
	rows, err := w.policies.ListByClientCreatedAtOrBefore(ctx, clientID, cutoff)
	if err != nil {
		return nil, err
	}
	out := make([]receipt.PolicySnapshot, 0, len(rows))
	for _, p := range rows {
		out = append(out, receipt.PolicySnapshot{ID: p.ID, Number: p.Number, CreatedAt: p.CreatedAt})
	}
	return out, nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, Deps) {
	t.Helper()
	deps := Deps{
		Clients:  client.NewInMemoryRepository(),
		Policies: policy.NewInMemoryRepository(),
		Invites:  invite.NewInMemoryRepository(),
	}
	receipts := receipt.NewInMemoryRepository()
	deps.Verifier = receipt.NewVerifier(receipts, policyWindow{deps.Policies}, nil)

	d := NewDispatcher(nil)
	if err := RegisterBuiltins(d, deps); err != nil {
		t.Fatalf("RegisterBuiltins() error = %v", err)
	}
	return d, deps
}

func TestDispatcher_UnknownVerb(t *testing.T) {
	d, _ := newTestDispatcher(t)
	_, err := d.Dispatch(context.Background(), auth.RoleAdmin, "launch-missiles", nil)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Dispatch() error = %v, want ErrUnknownCommand", err)
	}
}

func TestDispatcher_ForbiddenRole(t *testing.T) {
	d, _ := newTestDispatcher(t)
	_, err := d.Dispatch(context.Background(), auth.RoleAttorney, "list-clients", Args{"attorney_id": "a1"})
	if !errors.Is(err, ErrForbiddenCommand) {
		t.Errorf("Dispatch() error = %v, want ErrForbiddenCommand", err)
	}
}

func TestDispatcher_MissingArgument(t *testing.T) {
	d, _ := newTestDispatcher(t)
	_, err := d.Dispatch(context.Background(), auth.RoleAdmin, "show-client", Args{})
	if !errors.Is(err, ErrMissingArgument) {
		t.Errorf("Dispatch() error = %v, want ErrMissingArgument", err)
	}
}

func TestDispatcher_DuplicateRegistration(t *testing.T) {
	d, _ := newTestDispatcher(t)
	err := d.Register(Command{Verb: "show-client", Handler: func(context.Context, Args) (*Result, error) { return nil, nil }})
	if err == nil {
		t.Error("duplicate verb registration should fail")
	}
}

func TestDispatcher_Verbs(t *testing.T) {
	d, _ := newTestDispatcher(t)
	verbs := d.Verbs()
	if len(verbs) != 5 {
		t.Fatalf("Verbs() = %v, want 5 entries", verbs)
	}
	for i := 1; i < len(verbs); i++ {
		if verbs[i-1] >= verbs[i] {
			t.Errorf("Verbs() not sorted: %v", verbs)
		}
	}
}

func TestShowClient(t *testing.T) {
	ctx := context.Background()
	d, deps := newTestDispatcher(t)

	c, err := deps.Clients.Insert(ctx, &client.Client{AttorneyID: "a1", FirstName: "John", LastName: "Doe"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := deps.Policies.Insert(ctx, &policy.Policy{ClientID: c.ID, Number: "POL-100"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	res, err := d.Dispatch(ctx, auth.RoleAdmin, "show-client", Args{"client_id": c.ID})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res.Message != "client John Doe has 1 policies" {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestSetPolicyStatus(t *testing.T) {
	ctx := context.Background()
	d, deps := newTestDispatcher(t)

	p, err := deps.Policies.Insert(ctx, &policy.Policy{ClientID: "c1", Number: "POL-100"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if _, err := d.Dispatch(ctx, auth.RoleAdmin, "set-policy-status", Args{"policy_id": p.ID, "status": "BOGUS"}); err == nil {
		t.Error("invalid status should fail")
	}

	res, err := d.Dispatch(ctx, auth.RoleAdmin, "set-policy-status", Args{"policy_id": p.ID, "status": "VERIFIED"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res == nil {
		t.Fatal("Dispatch() returned nil result")
	}
	got, err := deps.Policies.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != policy.StatusVerified {
		t.Errorf("Status = %q, want VERIFIED", got.Status)
	}
}

func TestVerifyReceiptCommand(t *testing.T) {
	ctx := context.Background()
	deps := Deps{
		Clients:  client.NewInMemoryRepository(),
		Policies: policy.NewInMemoryRepository(),
		Invites:  invite.NewInMemoryRepository(),
	}
	receipts := receipt.NewInMemoryRepository()
	window := policyWindow{deps.Policies}
	deps.Verifier = receipt.NewVerifier(receipts, window, nil)
	issuer := receipt.NewIssuer(receipts, window, nil)

	d := NewDispatcher(nil)
	if err := RegisterBuiltins(d, deps); err != nil {
		t.Fatalf("RegisterBuiltins() error = %v", err)
	}

	if _, err := deps.Policies.Insert(ctx, &policy.Policy{ClientID: "c1", Number: "POL-100"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	issued, err := issuer.Issue(ctx, "c1", "s1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	res, err := d.Dispatch(ctx, auth.RoleAdmin, "verify-receipt", Args{"receipt_id": issued.ID})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res.Message != "receipt digest verified" {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestShowInvite(t *testing.T) {
	ctx := context.Background()
	d, deps := newTestDispatcher(t)

	inv, err := deps.Invites.Insert(ctx, &invite.Invite{
		ClientID:   "c1",
		AttorneyID: "a1",
		Email:      "kin@example.com",
		ExpiresAt:  time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	res, err := d.Dispatch(ctx, auth.RoleAdmin, "show-invite", Args{"invite_id": inv.ID})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res.Message != "invite "+inv.ID+" is pending" {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantVerb string
		wantArgs Args
	}{
		{
			name:     "verify receipt",
			input:    "verify receipt 123e4567-e89b-12d3-a456-426614174000",
			wantVerb: "verify-receipt",
			wantArgs: Args{"receipt_id": "123e4567-e89b-12d3-a456-426614174000"},
		},
		{
			name:     "set policy status",
			input:    "mark policy pol-991 as verified",
			wantVerb: "set-policy-status",
			wantArgs: Args{"policy_id": "pol-991", "status": "VERIFIED"},
		},
		{
			name:     "show invite",
			input:    "what happened to invite inv-4412",
			wantVerb: "show-invite",
			wantArgs: Args{"invite_id": "inv-4412"},
		},
		{
			name:     "list clients",
			input:    "list clients for attorney 123e4567-e89b-12d3-a456-426614174000",
			wantVerb: "list-clients",
			wantArgs: Args{"attorney_id": "123e4567-e89b-12d3-a456-426614174000"},
		},
		{
			name:     "show client",
			input:    "show client c-10001",
			wantVerb: "show-client",
			wantArgs: Args{"client_id": "c-10001"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := Plan(tt.input)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if inv.Verb != tt.wantVerb {
				t.Errorf("Verb = %q, want %q", inv.Verb, tt.wantVerb)
			}
			for name, want := range tt.wantArgs {
				if inv.Args[name] != want {
					t.Errorf("Args[%q] = %q, want %q", name, inv.Args[name], want)
				}
			}
		})
	}
}

func TestPlan_Unknown(t *testing.T) {
	if _, err := Plan("make me a sandwich"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Plan() error = %v, want ErrUnknownCommand", err)
	}
}
