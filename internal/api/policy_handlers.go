package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/heirvault/heirvault/internal/audit"
	"github.com/heirvault/heirvault/internal/insurer"
	"github.com/heirvault/heirvault/internal/middleware"
	"github.com/heirvault/heirvault/internal/policy"
	"github.com/heirvault/heirvault/internal/validate"
)

// PolicyHandlers serves policy records under a client. Carrier names
// are resolved against the insurer directory at write time; an
// unresolved name is kept verbatim on the policy.
type PolicyHandlers struct {
	policies policy.Repository
	insurers insurer.Repository
	clients  *ClientHandlers
	audits   audit.Repository
	logger   *slog.Logger
}

// NewPolicyHandlers creates handlers for the policy endpoints.
func NewPolicyHandlers(policies policy.Repository, insurers insurer.Repository, clients *ClientHandlers, audits audit.Repository, logger *slog.Logger) *PolicyHandlers {
	return &PolicyHandlers{policies: policies, insurers: insurers, clients: clients, audits: audits, logger: logger}
}

type policyCreateRequest struct {
	Number      string `json:"number"`
	Type        string `json:"type"`
	CarrierName string `json:"carrier_name"`
}

type policyUpdateRequest struct {
	Number      *string `json:"number"`
	Type        *string `json:"type"`
	CarrierName *string `json:"carrier_name"`
	Status      *string `json:"status"`
}

// resolveCarrier maps a raw carrier name to the insurer directory.
// Exactly one of the returned pointers is set for a non-empty name.
func (h *PolicyHandlers) resolveCarrier(r *http.Request, rawName string) (insurerID, rawCarrier *string) {
	if rawName == "" {
		return nil, nil
	}
	ins, err := h.insurers.Resolve(r.Context(), rawName)
	if err != nil {
		if !errors.Is(err, insurer.ErrInsurerNotFound) {
			h.logger.WarnContext(r.Context(), "insurer resolution failed", "error", err)
		}
		return nil, &rawName
	}
	return &ins.ID, nil
}

// Create handles POST /clients/{id}/policies.
func (h *PolicyHandlers) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clients.ownedClient(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	var req policyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	number, err := validate.PolicyNumber(strings.TrimSpace(req.Number))
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid policy number")
		return
	}
	carrierName := strings.TrimSpace(req.CarrierName)
	if carrierName != "" {
		if carrierName, err = validate.CarrierName(carrierName); err != nil {
			fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid carrier name")
			return
		}
	}

	insurerID, rawCarrier := h.resolveCarrier(r, carrierName)
	created, err := h.policies.Insert(r.Context(), &policy.Policy{
		ClientID:       c.ID,
		InsurerID:      insurerID,
		RawCarrierName: rawCarrier,
		Number:         number,
		Type:           strings.TrimSpace(req.Type),
		Status:         policy.StatusPending,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to insert policy", "error", err, "client_id", c.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to create policy")
		return
	}

	audit.Record(r.Context(), h.audits, h.logger, audit.Entry{
		Action:    audit.ActionPolicyAdded,
		Message:   "policy added by attorney",
		ActorID:   middleware.GetActorID(r.Context()),
		ClientID:  c.ID,
		PolicyID:  created.ID,
		RequestID: middleware.GetRequestID(r.Context()),
	})

	writeJSON(w, r.Context(), http.StatusCreated, created)
}

// List handles GET /clients/{id}/policies.
func (h *PolicyHandlers) List(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clients.ownedClient(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	policies, err := h.policies.ListByClient(r.Context(), c.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list policies", "error", err, "client_id", c.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to list policies")
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"policies": policies})
}

// Update handles PATCH /policies/{id}. Absent fields keep their current
// values; a present carrier_name is re-resolved against the directory.
func (h *PolicyHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := h.policies.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, policy.ErrPolicyNotFound) {
			fail(w, r, http.StatusNotFound, ErrCodeNotFound, "policy not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to load policy", "error", err, "policy_id", id)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to load policy")
		return
	}

	// Ownership runs through the client the policy belongs to.
	if _, ok := h.clients.ownedClient(w, r, p.ClientID); !ok {
		return
	}

	var req policyUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if req.Number != nil {
		number, err := validate.PolicyNumber(strings.TrimSpace(*req.Number))
		if err != nil {
			fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid policy number")
			return
		}
		p.Number = number
	}
	if req.Type != nil {
		p.Type = strings.TrimSpace(*req.Type)
	}
	if req.CarrierName != nil {
		carrierName := strings.TrimSpace(*req.CarrierName)
		if carrierName != "" {
			if carrierName, err = validate.CarrierName(carrierName); err != nil {
				fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid carrier name")
				return
			}
		}
		p.InsurerID, p.RawCarrierName = h.resolveCarrier(r, carrierName)
	}
	if req.Status != nil {
		status := policy.Status(strings.ToUpper(strings.TrimSpace(*req.Status)))
		if !status.Valid() {
			fail(w, r, http.StatusBadRequest, ErrCodeValidation, "unknown policy status")
			return
		}
		p.Status = status
	}

	if err := h.policies.Update(r.Context(), p); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to update policy", "error", err, "policy_id", p.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to update policy")
		return
	}

	audit.Record(r.Context(), h.audits, h.logger, audit.Entry{
		Action:    audit.ActionPolicyUpdated,
		Message:   "policy updated by attorney",
		ActorID:   middleware.GetActorID(r.Context()),
		ClientID:  p.ClientID,
		PolicyID:  p.ID,
		RequestID: middleware.GetRequestID(r.Context()),
	})

	updated, err := h.policies.GetByID(r.Context(), p.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to reload policy", "error", err, "policy_id", p.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to update policy")
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, updated)
}
