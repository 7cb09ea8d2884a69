package api

import (
	"net/http"
	"testing"

	"github.com/heirvault/heirvault/internal/policy"
)

func TestAdminCommand_PlansAndRuns(t *testing.T) {
	env := newTestEnv(t)
	acct, token := env.seedAttorney(t, "admin@example.com", "admin")
	c := env.seedClient(t, acct.ID)

	p, err := env.policies.Insert(t.Context(), &policy.Policy{
		ClientID: c.ID,
		Number:   "POL-5001",
		Status:   policy.StatusPending,
	})
	if err != nil {
		t.Fatalf("Insert policy: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/admin/command", token, map[string]string{
		"input": "mark policy " + p.ID + " as verified",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp commandResponse
	decode(t, rec, &resp)
	if resp.Verb != "set-policy-status" {
		t.Errorf("verb = %q, want set-policy-status", resp.Verb)
	}

	updated, err := env.policies.GetByID(t.Context(), p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != policy.StatusVerified {
		t.Errorf("status = %q, want VERIFIED", updated.Status)
	}
}

func TestAdminCommand_MutatingVerbNeedsAdminRole(t *testing.T) {
	env := newTestEnv(t)
	acct, token := env.seedAttorney(t, "esq@example.com", "attorney")
	c := env.seedClient(t, acct.ID)

	p, err := env.policies.Insert(t.Context(), &policy.Policy{
		ClientID: c.ID,
		Number:   "POL-5002",
		Status:   policy.StatusPending,
	})
	if err != nil {
		t.Fatalf("Insert policy: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/admin/commands/set-policy-status", token, map[string]any{
		"args": map[string]string{"policy_id": p.ID, "status": "VERIFIED"},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body = %s", rec.Code, rec.Body.String())
	}
}

func TestAdminCommand_UnknownInput(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedAttorney(t, "admin@example.com", "admin")

	rec := env.do(t, http.MethodPost, "/admin/command", token, map[string]string{
		"input": "make me a sandwich",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeUnknownCommand {
		t.Errorf("error code = %q, want %q", code, ErrCodeUnknownCommand)
	}
}

func TestAdminDirect_UnknownVerb(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedAttorney(t, "admin@example.com", "admin")

	rec := env.do(t, http.MethodPost, "/admin/commands/frobnicate", token, map[string]any{
		"args": map[string]string{},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAdminVerbs(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedAttorney(t, "esq@example.com", "attorney")

	rec := env.do(t, http.MethodGet, "/admin/commands", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Verbs []string `json:"verbs"`
	}
	decode(t, rec, &resp)
	if len(resp.Verbs) == 0 {
		t.Error("verbs should not be empty")
	}
}
