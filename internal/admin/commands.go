package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/heirvault/heirvault/internal/auth"
	"github.com/heirvault/heirvault/internal/client"
	"github.com/heirvault/heirvault/internal/invite"
	"github.com/heirvault/heirvault/internal/policy"
	"github.com/heirvault/heirvault/internal/receipt"
)

// Deps are the collaborators the built-in commands operate on.
type Deps struct {
	Clients  client.Repository
	Policies policy.Repository
	Invites  invite.Repository
	Verifier *receipt.Verifier
}

// RegisterBuiltins fills the dispatcher with the console's verb table.
func RegisterBuiltins(d *Dispatcher, deps Deps) error {
	commands := []Command{
		{
			Verb:         "show-client",
			Description:  "Show a client record with its policies",
			RequiredRole: auth.RoleAdmin,
			RequiredArgs: []string{"client_id"},
			Handler:      showClient(deps),
		},
		{
			Verb:         "list-clients",
			Description:  "List clients belonging to an attorney",
			RequiredRole: auth.RoleAdmin,
			RequiredArgs: []string{"attorney_id"},
			Handler:      listClients(deps),
		},
		{
			Verb:         "set-policy-status",
			Description:  "Set the verification status of a policy",
			RequiredRole: auth.RoleAdmin,
			RequiredArgs: []string{"policy_id", "status"},
			Handler:      setPolicyStatus(deps),
		},
		{
			Verb:         "verify-receipt",
			Description:  "Recompute and check a receipt digest",
			RequiredRole: auth.RoleAdmin,
			RequiredArgs: []string{"receipt_id"},
			Handler:      verifyReceipt(deps),
		},
		{
			Verb:         "show-invite",
			Description:  "Show an intake invite and its redemption state",
			RequiredRole: auth.RoleAdmin,
			RequiredArgs: []string{"invite_id"},
			Handler:      showInvite(deps),
		},
	}
	for _, cmd := range commands {
		if err := d.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func showClient(deps Deps) HandlerFunc {
	return func(ctx context.Context, args Args) (*Result, error) {
		c, err := deps.Clients.GetByID(ctx, args["client_id"])
		if err != nil {
			return nil, err
		}
		policies, err := deps.Policies.ListByClient(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		return &Result{
			Message: fmt.Sprintf("client %s has %d policies", c.FullName(), len(policies)),
			Data: map[string]any{
				"client":   c,
				"policies": policies,
			},
		}, nil
	}
}

func listClients(deps Deps) HandlerFunc {
	return func(ctx context.Context, args Args) (*Result, error) {
		clients, err := deps.Clients.ListByAttorney(ctx, args["attorney_id"])
		if err != nil {
			return nil, err
		}
		return &Result{
			Message: fmt.Sprintf("%d clients", len(clients)),
			Data:    clients,
		}, nil
	}
}

func setPolicyStatus(deps Deps) HandlerFunc {
	return func(ctx context.Context, args Args) (*Result, error) {
		status := policy.Status(args["status"])
		if !status.Valid() {
			return nil, fmt.Errorf("invalid policy status %q", args["status"])
		}
		p, err := deps.Policies.GetByID(ctx, args["policy_id"])
		if err != nil {
			return nil, err
		}
		p.Status = status
		if err := deps.Policies.Update(ctx, p); err != nil {
			return nil, err
		}
		return &Result{
			Message: fmt.Sprintf("policy %s set to %s", p.ID, status),
			Data:    p,
		}, nil
	}
}

func verifyReceipt(deps Deps) HandlerFunc {
	return func(ctx context.Context, args Args) (*Result, error) {
		result, err := deps.Verifier.Verify(ctx, args["receipt_id"])
		// A mismatch is a command outcome, not a command failure.
		if err != nil && !errors.Is(err, receipt.ErrIntegrityMismatch) {
			return nil, err
		}
		msg := "receipt digest verified"
		if result != nil && !result.Match {
			msg = "receipt digest MISMATCH"
		}
		return &Result{Message: msg, Data: result}, nil
	}
}

func showInvite(deps Deps) HandlerFunc {
	return func(ctx context.Context, args Args) (*Result, error) {
		inv, err := deps.Invites.GetByID(ctx, args["invite_id"])
		if err != nil {
			return nil, err
		}
		state := "pending"
		if inv.RedeemedAt != nil {
			state = "redeemed"
		}
		return &Result{
			Message: fmt.Sprintf("invite %s is %s", inv.ID, state),
			Data:    inv,
		}, nil
	}
}
