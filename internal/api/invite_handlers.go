package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/heirvault/heirvault/internal/attorney"
	"github.com/heirvault/heirvault/internal/audit"
	"github.com/heirvault/heirvault/internal/auth"
	"github.com/heirvault/heirvault/internal/invite"
	"github.com/heirvault/heirvault/internal/mailer"
	"github.com/heirvault/heirvault/internal/metrics"
	"github.com/heirvault/heirvault/internal/middleware"
	"github.com/heirvault/heirvault/internal/validate"
)

// InviteHandlers serves intake invites: attorneys mail an expiring,
// single-use link to a relative or executor who then submits policy
// details without an account.
type InviteHandlers struct {
	invites   invite.Repository
	attorneys attorney.Repository
	clients   *ClientHandlers
	jwt       *auth.JWTService
	audits    audit.Repository
	mail      mailer.Mailer

	// intakeBase is the public base URL the intake link points at.
	intakeBase string
	logger     *slog.Logger
	now        func() time.Time
}

// NewInviteHandlers creates handlers for the /invites endpoints.
func NewInviteHandlers(
	invites invite.Repository,
	attorneys attorney.Repository,
	clients *ClientHandlers,
	jwt *auth.JWTService,
	audits audit.Repository,
	mail mailer.Mailer,
	intakeBase string,
	logger *slog.Logger,
) *InviteHandlers {
	return &InviteHandlers{
		invites:    invites,
		attorneys:  attorneys,
		clients:    clients,
		jwt:        jwt,
		audits:     audits,
		mail:       mail,
		intakeBase: intakeBase,
		logger:     logger,
		now:        time.Now,
	}
}

type inviteCreateRequest struct {
	ClientID string `json:"client_id"`
	Email    string `json:"email"`
}

type inviteResponse struct {
	Invite    *invite.Invite `json:"invite"`
	IntakeURL string         `json:"intake_url"`
}

// Create handles POST /invites.
func (h *InviteHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req inviteCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	email, err := validate.Email(req.Email)
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid email address")
		return
	}

	c, ok := h.clients.ownedClient(w, r, req.ClientID)
	if !ok {
		return
	}

	actorID := middleware.GetActorID(r.Context())
	created, err := h.invites.Insert(r.Context(), &invite.Invite{
		ClientID:   c.ID,
		AttorneyID: actorID,
		Email:      email,
		ExpiresAt:  h.now().Add(invite.DefaultTTL),
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to insert invite", "error", err, "client_id", c.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to create invite")
		return
	}

	intakeURL, err := h.deliver(r.Context(), created, c.FullName())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue invite token", "error", err, "invite_id", created.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to create invite")
		return
	}

	metrics.IncInvitesIssued()
	audit.Record(r.Context(), h.audits, h.logger, audit.Entry{
		Action:    audit.ActionInviteSent,
		Message:   "intake invite sent",
		ActorID:   actorID,
		ClientID:  c.ID,
		RequestID: middleware.GetRequestID(r.Context()),
	})

	writeJSON(w, r.Context(), http.StatusCreated, inviteResponse{
		Invite:    created,
		IntakeURL: intakeURL,
	})
}

// Resend handles POST /invites/{id}/resend. A fresh token is minted for
// the same invite; the expiry does not move.
func (h *InviteHandlers) Resend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	inv, err := h.invites.GetByID(r.Context(), id)
	if err != nil {
		fail(w, r, http.StatusNotFound, ErrCodeNotFound, "invite not found")
		return
	}
	if inv.AttorneyID != middleware.GetActorID(r.Context()) && middleware.GetActorRole(r.Context()) != auth.RoleAdmin {
		fail(w, r, http.StatusNotFound, ErrCodeNotFound, "invite not found")
		return
	}
	if inv.RedeemedAt != nil {
		fail(w, r, http.StatusConflict, ErrCodeInviteUsed, "invite already used")
		return
	}
	if h.now().After(inv.ExpiresAt) {
		fail(w, r, http.StatusGone, ErrCodeInviteExpired, "invite has expired")
		return
	}

	c, err := h.clients.clients.GetByID(r.Context(), inv.ClientID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load client for invite", "error", err, "invite_id", inv.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to resend invite")
		return
	}

	intakeURL, err := h.deliver(r.Context(), inv, c.FullName())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue invite token", "error", err, "invite_id", inv.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to resend invite")
		return
	}

	audit.Record(r.Context(), h.audits, h.logger, audit.Entry{
		Action:    audit.ActionInviteSent,
		Message:   "intake invite resent",
		ActorID:   middleware.GetActorID(r.Context()),
		ClientID:  inv.ClientID,
		RequestID: middleware.GetRequestID(r.Context()),
	})

	writeJSON(w, r.Context(), http.StatusOK, inviteResponse{
		Invite:    inv,
		IntakeURL: intakeURL,
	})
}

// deliver mints the invite token and mails the intake link. Mail
// delivery is best-effort; the link is always returned to the attorney.
func (h *InviteHandlers) deliver(ctx context.Context, inv *invite.Invite, clientName string) (string, error) {
	token, err := h.jwt.GenerateInviteToken(inv.ID, inv.ClientID, inv.ExpiresAt)
	if err != nil {
		return "", err
	}
	intakeURL := strings.TrimRight(h.intakeBase, "/") + "/intake?token=" + url.QueryEscape(token)

	attorneyName := ""
	if acct, err := h.attorneys.GetByID(ctx, inv.AttorneyID); err == nil {
		attorneyName = acct.Name
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		msg := mailer.InviteEmail(inv.Email, clientName, attorneyName, intakeURL)
		if err := h.mail.Send(sendCtx, msg); err != nil {
			h.logger.Warn("failed to send invite email", "error", err, "invite_id", inv.ID)
		}
	}()

	return intakeURL, nil
}
