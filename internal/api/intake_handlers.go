package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/heirvault/heirvault/internal/audit"
	"github.com/heirvault/heirvault/internal/client"
	"github.com/heirvault/heirvault/internal/insurer"
	"github.com/heirvault/heirvault/internal/invite"
	"github.com/heirvault/heirvault/internal/mailer"
	"github.com/heirvault/heirvault/internal/metrics"
	"github.com/heirvault/heirvault/internal/middleware"
	"github.com/heirvault/heirvault/internal/policy"
	"github.com/heirvault/heirvault/internal/receipt"
	"github.com/heirvault/heirvault/internal/submission"
	"github.com/heirvault/heirvault/internal/validate"
)

// maxIntakeBodyBytes caps the intake payload; the body is stored
// verbatim on the submission row.
const maxIntakeBodyBytes = 1 << 20 // 1 MiB

// policyWindow adapts the policy repository to the snapshot source the
// receipt issuer and verifier consume.
type policyWindow struct {
	policies policy.Repository
}

// NewPolicySource exposes the policy repository as a receipt policy
// source.
func NewPolicySource(policies policy.Repository) receipt.PolicySource {
	return &policyWindow{policies: policies}
}

func (s *policyWindow) SnapshotsCreatedAtOrBefore(ctx context.Context, clientID string, cutoff time.Time) ([]receipt.PolicySnapshot, error) {
	rows, err := s.policies.ListByClientCreatedAtOrBefore(ctx, clientID, cutoff)
	if err != nil {
		return nil, err
	}
	snapshots := make([]receipt.PolicySnapshot, 0, len(rows))
	for _, p := range rows {
		snapshots = append(snapshots, receipt.PolicySnapshot{
			ID:        p.ID,
			Number:    p.Number,
			CreatedAt: p.CreatedAt,
		})
	}
	return snapshots, nil
}

// IntakeHandlers serves the heir-facing intake endpoint. The caller is
// authenticated by an invite token, not an attorney session.
type IntakeHandlers struct {
	invites     invite.Repository
	clients     client.Repository
	policies    policy.Repository
	insurers    insurer.Repository
	submissions submission.Repository
	issuer      *receipt.Issuer
	audits      audit.Repository
	mail        mailer.Mailer
	verifyBase  string
	logger      *slog.Logger
	now         func() time.Time
}

// NewIntakeHandlers creates handlers for POST /intake.
func NewIntakeHandlers(
	invites invite.Repository,
	clients client.Repository,
	policies policy.Repository,
	insurers insurer.Repository,
	submissions submission.Repository,
	issuer *receipt.Issuer,
	audits audit.Repository,
	mail mailer.Mailer,
	verifyBase string,
	logger *slog.Logger,
) *IntakeHandlers {
	return &IntakeHandlers{
		invites:     invites,
		clients:     clients,
		policies:    policies,
		insurers:    insurers,
		submissions: submissions,
		issuer:      issuer,
		audits:      audits,
		mail:        mail,
		verifyBase:  verifyBase,
		logger:      logger,
		now:         time.Now,
	}
}

type intakePolicy struct {
	Number      string `json:"number"`
	Type        string `json:"type"`
	CarrierName string `json:"carrier_name"`
	// Optional link to the policy document instead of an upload. Kept in
	// the submission payload snapshot; the server may fetch it later, so
	// it gets the strict SSRF-checked validation.
	DocumentURL string `json:"document_url,omitempty"`
}

type intakeRequest struct {
	SubmitterName  string         `json:"submitter_name"`
	SubmitterEmail string         `json:"submitter_email"`
	DateOfDeath    string         `json:"date_of_death"`
	Policies       []intakePolicy `json:"policies"`
}

type intakeResponse struct {
	SubmissionID  string `json:"submission_id"`
	ReceiptID     string `json:"receipt_id"`
	ReceiptNumber string `json:"receipt_number"`
	Digest        string `json:"digest"`
	PolicyCount   int    `json:"policy_count"`
}

// Submit handles POST /intake. The invite is redeemed first so a
// concurrent duplicate submission loses before any rows are written;
// everything after redemption is recorded on the submission row, and
// the receipt covers the policy set as stored.
func (h *IntakeHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetInviteClaims(r.Context())
	if claims == nil {
		fail(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "missing invite token")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIntakeBodyBytes+1))
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxIntakeBodyBytes {
		fail(w, r, http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge, "intake payload too large")
		return
	}

	var req intakeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if len(req.Policies) == 0 {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "at least one policy is required")
		return
	}
	for i := range req.Policies {
		number, err := validate.PolicyNumber(strings.TrimSpace(req.Policies[i].Number))
		if err != nil {
			fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid policy number")
			return
		}
		req.Policies[i].Number = number
		if req.Policies[i].DocumentURL != "" {
			if _, err := validate.DocumentSourceURL(req.Policies[i].DocumentURL); err != nil {
				fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid document_url")
				return
			}
		}
	}
	dod, err := parseDate(req.DateOfDeath)
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "date_of_death must be YYYY-MM-DD")
		return
	}

	inv, err := h.invites.GetByID(r.Context(), claims.InviteID)
	if err != nil {
		fail(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "invite not found")
		return
	}
	if inv.ClientID != claims.ClientID {
		fail(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "invite does not match client")
		return
	}

	if err := h.invites.Redeem(r.Context(), inv.ID, h.now()); err != nil {
		switch {
		case errors.Is(err, invite.ErrInviteExpired):
			fail(w, r, http.StatusGone, ErrCodeInviteExpired, "invite has expired")
		case errors.Is(err, invite.ErrInviteUsed):
			fail(w, r, http.StatusConflict, ErrCodeInviteUsed, "invite already used")
		default:
			h.logger.ErrorContext(r.Context(), "failed to redeem invite", "error", err, "invite_id", inv.ID)
			fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to process submission")
		}
		return
	}

	audit.Record(r.Context(), h.audits, h.logger, audit.Entry{
		Action:   audit.ActionAccessGranted,
		Message:  "intake invite redeemed",
		ClientID: inv.ClientID,
	})

	sub, err := h.submissions.Insert(r.Context(), &submission.Submission{
		ClientID: inv.ClientID,
		Kind:     "intake",
		Status:   submission.StatusReceived,
		Payload:  json.RawMessage(body),
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to insert submission", "error", err, "client_id", inv.ClientID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to process submission")
		return
	}

	if dod != nil {
		if c, err := h.clients.GetByID(r.Context(), inv.ClientID); err == nil && c.DateOfDeath == nil {
			c.DateOfDeath = dod
			if err := h.clients.Update(r.Context(), c); err != nil {
				h.logger.WarnContext(r.Context(), "failed to record date of death", "error", err, "client_id", inv.ClientID)
			}
		}
	}

	for _, in := range req.Policies {
		insurerID, rawCarrier := h.resolveCarrier(r.Context(), strings.TrimSpace(in.CarrierName))
		created, err := h.policies.Insert(r.Context(), &policy.Policy{
			ClientID:       inv.ClientID,
			InsurerID:      insurerID,
			RawCarrierName: rawCarrier,
			Number:         in.Number,
			Type:           strings.TrimSpace(in.Type),
			Status:         policy.StatusPending,
		})
		if err != nil {
			h.failSubmission(r.Context(), sub.ID)
			h.logger.ErrorContext(r.Context(), "failed to insert intake policy", "error", err, "client_id", inv.ClientID)
			fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to process submission")
			return
		}
		audit.Record(r.Context(), h.audits, h.logger, audit.Entry{
			Action:    audit.ActionPolicyAdded,
			Message:   "policy added via intake",
			ClientID:  inv.ClientID,
			PolicyID:  created.ID,
			RequestID: middleware.GetRequestID(r.Context()),
		})
	}

	rcpt, err := h.issuer.Issue(r.Context(), inv.ClientID, sub.ID)
	if err != nil {
		h.failSubmission(r.Context(), sub.ID)
		h.logger.ErrorContext(r.Context(), "failed to issue receipt", "error", err, "submission_id", sub.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to issue receipt")
		return
	}

	if err := h.submissions.SetStatus(r.Context(), sub.ID, submission.StatusProcessed); err != nil {
		h.logger.WarnContext(r.Context(), "failed to mark submission processed", "error", err, "submission_id", sub.ID)
	}

	metrics.IncIntakeSubmissions()
	metrics.IncReceiptsIssued()

	audit.Record(r.Context(), h.audits, h.logger, audit.Entry{
		Action:    audit.ActionReceiptIssued,
		Message:   "receipt issued for intake submission",
		ClientID:  inv.ClientID,
		RequestID: middleware.GetRequestID(r.Context()),
	})

	// Receipt email delivery must not delay or fail the submission.
	if email := firstNonEmpty(req.SubmitterEmail, inv.Email); email != "" {
		go h.sendReceiptEmail(email, rcpt)
	}

	writeJSON(w, r.Context(), http.StatusCreated, intakeResponse{
		SubmissionID:  sub.ID,
		ReceiptID:     rcpt.ID,
		ReceiptNumber: rcpt.Number,
		Digest:        rcpt.Digest,
		PolicyCount:   len(req.Policies),
	})
}

func (h *IntakeHandlers) resolveCarrier(ctx context.Context, rawName string) (insurerID, rawCarrier *string) {
	if rawName == "" {
		return nil, nil
	}
	ins, err := h.insurers.Resolve(ctx, rawName)
	if err != nil {
		return nil, &rawName
	}
	return &ins.ID, nil
}

func (h *IntakeHandlers) failSubmission(ctx context.Context, id string) {
	if err := h.submissions.SetStatus(ctx, id, submission.StatusFailed); err != nil {
		h.logger.WarnContext(ctx, "failed to mark submission failed", "error", err, "submission_id", id)
	}
}

func (h *IntakeHandlers) sendReceiptEmail(to string, rcpt *receipt.Receipt) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	verifyURL := strings.TrimRight(h.verifyBase, "/") + "/receipts/" + rcpt.ID + "/verify"
	msg := mailer.ReceiptEmail(to, rcpt.Number, rcpt.Digest, verifyURL)
	if err := h.mail.Send(ctx, msg); err != nil {
		h.logger.Warn("failed to send receipt email", "error", err, "receipt_id", rcpt.ID)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
