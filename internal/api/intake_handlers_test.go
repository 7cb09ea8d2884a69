package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/heirvault/heirvault/internal/invite"
	"github.com/heirvault/heirvault/internal/submission"
)

func TestIntakeSubmit_IssuesReceipt(t *testing.T) {
	env := newTestEnv(t)
	acct, _ := env.seedAttorney(t, "esq@example.com", "attorney")
	c := env.seedClient(t, acct.ID)
	_, token := env.mintInvite(t, acct.ID, c.ID, time.Now().Add(time.Hour))

	rec := env.do(t, http.MethodPost, "/intake", token, map[string]any{
		"submitter_name":  "John Heir",
		"submitter_email": "heir@example.com",
		"date_of_death":   "2024-11-02",
		"policies": []map[string]string{
			{"number": "POL-100", "type": "term", "carrier_name": "Acme Life"},
			{"number": "POL-200", "carrier_name": "Unknown Carrier Co"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp intakeResponse
	decode(t, rec, &resp)
	if resp.ReceiptID == "" || resp.ReceiptNumber == "" {
		t.Fatalf("response = %+v", resp)
	}
	if len(resp.Digest) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(resp.Digest))
	}
	if resp.PolicyCount != 2 {
		t.Errorf("policy_count = %d, want 2", resp.PolicyCount)
	}

	// Both policies must be stored before the receipt digest covers them.
	policies, err := env.policies.ListByClient(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("ListByClient: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("len(policies) = %d, want 2", len(policies))
	}

	// Submission payload is kept verbatim and marked processed.
	sub, err := env.submissions.GetByID(t.Context(), resp.SubmissionID)
	if err != nil {
		t.Fatalf("GetByID submission: %v", err)
	}
	if sub.Status != submission.StatusProcessed {
		t.Errorf("submission status = %q, want PROCESSED", sub.Status)
	}
	if len(sub.Payload) == 0 {
		t.Error("submission payload should be stored")
	}

	// The date of death from intake lands on the client record.
	updated, err := env.clients.GetByID(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("GetByID client: %v", err)
	}
	if updated.DateOfDeath == nil || updated.DateOfDeath.Format(dateFormat) != "2024-11-02" {
		t.Errorf("date_of_death = %v", updated.DateOfDeath)
	}
}

func TestIntakeSubmit_InviteIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	acct, _ := env.seedAttorney(t, "esq@example.com", "attorney")
	c := env.seedClient(t, acct.ID)
	_, token := env.mintInvite(t, acct.ID, c.ID, time.Now().Add(time.Hour))

	body := map[string]any{
		"policies": []map[string]string{{"number": "POL-100"}},
	}
	if rec := env.do(t, http.MethodPost, "/intake", token, body); rec.Code != http.StatusCreated {
		t.Fatalf("first submit status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodPost, "/intake", token, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second submit status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeInviteUsed {
		t.Errorf("error code = %q, want %q", code, ErrCodeInviteUsed)
	}
}

func TestIntakeSubmit_ExpiredInvite(t *testing.T) {
	env := newTestEnv(t)
	acct, _ := env.seedAttorney(t, "esq@example.com", "attorney")
	c := env.seedClient(t, acct.ID)

	// The token itself must still parse, so keep its exp in the future
	// while the stored row is already expired.
	inv, err := env.invites.Insert(t.Context(), &invite.Invite{
		ClientID:   c.ID,
		AttorneyID: acct.ID,
		Email:      "heir@example.com",
		ExpiresAt:  time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Insert invite: %v", err)
	}
	token, err := env.jwt.GenerateInviteToken(inv.ID, inv.ClientID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GenerateInviteToken() error = %v", err)
	}

	rec := env.do(t, http.MethodPost, "/intake", token, map[string]any{
		"policies": []map[string]string{{"number": "POL-100"}},
	})
	if rec.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeInviteExpired {
		t.Errorf("error code = %q, want %q", code, ErrCodeInviteExpired)
	}
}

func TestIntakeSubmit_RequiresPolicies(t *testing.T) {
	env := newTestEnv(t)
	acct, _ := env.seedAttorney(t, "esq@example.com", "attorney")
	c := env.seedClient(t, acct.ID)
	_, token := env.mintInvite(t, acct.ID, c.ID, time.Now().Add(time.Hour))

	rec := env.do(t, http.MethodPost, "/intake", token, map[string]any{
		"policies": []map[string]string{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIntakeSubmit_RejectsUnsafeDocumentURL(t *testing.T) {
	env := newTestEnv(t)
	acct, _ := env.seedAttorney(t, "esq@example.com", "attorney")
	c := env.seedClient(t, acct.ID)
	_, token := env.mintInvite(t, acct.ID, c.ID, time.Now().Add(time.Hour))

	rec := env.do(t, http.MethodPost, "/intake", token, map[string]any{
		"policies": []map[string]string{
			{"number": "POL-100", "document_url": "https://localhost/internal"},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if errorCode(t, rec) != ErrCodeValidation {
		t.Errorf("code = %q, want VALIDATION_ERROR", errorCode(t, rec))
	}
}

func TestIntakeSubmit_RejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	acct, accessToken := env.seedAttorney(t, "esq@example.com", "attorney")
	env.seedClient(t, acct.ID)

	rec := env.do(t, http.MethodPost, "/intake", accessToken, map[string]any{
		"policies": []map[string]string{{"number": "POL-100"}},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
