package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/heirvault/heirvault/internal/audit"
	"github.com/heirvault/heirvault/internal/auth"
	"github.com/heirvault/heirvault/internal/client"
	"github.com/heirvault/heirvault/internal/middleware"
	"github.com/heirvault/heirvault/internal/validate"
)

// dateFormat is the wire format for dates of birth and death.
const dateFormat = "2006-01-02"

// ClientHandlers serves CRUD for deceased-client records. Every
// operation is scoped to the authenticated attorney: a client owned by
// another attorney is reported as not found, never as forbidden, so ids
// cannot be probed across tenants.
type ClientHandlers struct {
	clients client.Repository
	audits  audit.Repository
	logger  *slog.Logger
}

// NewClientHandlers creates handlers for the /clients endpoints.
func NewClientHandlers(clients client.Repository, audits audit.Repository, logger *slog.Logger) *ClientHandlers {
	return &ClientHandlers{clients: clients, audits: audits, logger: logger}
}

type clientRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	DateOfBirth string `json:"date_of_birth"`
	DateOfDeath string `json:"date_of_death"`
}

// parseDate parses an optional YYYY-MM-DD field.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *ClientHandlers) parseRequest(w http.ResponseWriter, r *http.Request) (*clientRequest, bool) {
	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return nil, false
	}

	if strings.TrimSpace(req.FirstName) == "" && strings.TrimSpace(req.LastName) == "" {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "at least one of first_name and last_name is required")
		return nil, false
	}
	if req.FirstName != "" {
		name, err := validate.PersonName(req.FirstName)
		if err != nil {
			fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid first_name")
			return nil, false
		}
		req.FirstName = name
	}
	if req.LastName != "" {
		name, err := validate.PersonName(req.LastName)
		if err != nil {
			fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid last_name")
			return nil, false
		}
		req.LastName = name
	}
	if req.Email != "" {
		email, err := validate.Email(req.Email)
		if err != nil {
			fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid email address")
			return nil, false
		}
		req.Email = email
	}
	return &req, true
}

// Create handles POST /clients.
func (h *ClientHandlers) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	dob, err := parseDate(req.DateOfBirth)
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "date_of_birth must be YYYY-MM-DD")
		return
	}
	dod, err := parseDate(req.DateOfDeath)
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "date_of_death must be YYYY-MM-DD")
		return
	}
	if dob != nil && dod != nil && dod.Before(*dob) {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "date_of_death precedes date_of_birth")
		return
	}

	actorID := middleware.GetActorID(r.Context())
	created, err := h.clients.Insert(r.Context(), &client.Client{
		AttorneyID:  actorID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		DateOfBirth: dob,
		DateOfDeath: dod,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to insert client", "error", err)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to create client")
		return
	}

	audit.Record(r.Context(), h.audits, h.logger, audit.Entry{
		Action:    audit.ActionClientCreated,
		Message:   "client record created",
		ActorID:   actorID,
		ClientID:  created.ID,
		RequestID: middleware.GetRequestID(r.Context()),
	})

	writeJSON(w, r.Context(), http.StatusCreated, created)
}

// List handles GET /clients.
func (h *ClientHandlers) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.ListByAttorney(r.Context(), middleware.GetActorID(r.Context()))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list clients", "error", err)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to list clients")
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"clients": clients})
}

// Get handles GET /clients/{id}.
func (h *ClientHandlers) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownedClient(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, c)
}

// Update handles PUT /clients/{id}.
func (h *ClientHandlers) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.ownedClient(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	dob, err := parseDate(req.DateOfBirth)
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "date_of_birth must be YYYY-MM-DD")
		return
	}
	dod, err := parseDate(req.DateOfDeath)
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "date_of_death must be YYYY-MM-DD")
		return
	}
	if dob != nil && dod != nil && dod.Before(*dob) {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "date_of_death precedes date_of_birth")
		return
	}

	existing.FirstName = req.FirstName
	existing.LastName = req.LastName
	existing.Email = req.Email
	existing.DateOfBirth = dob
	existing.DateOfDeath = dod

	if err := h.clients.Update(r.Context(), existing); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to update client", "error", err, "client_id", existing.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to update client")
		return
	}

	audit.Record(r.Context(), h.audits, h.logger, audit.Entry{
		Action:    audit.ActionClientUpdated,
		Message:   "client record updated",
		ActorID:   middleware.GetActorID(r.Context()),
		ClientID:  existing.ID,
		RequestID: middleware.GetRequestID(r.Context()),
	})

	updated, err := h.clients.GetByID(r.Context(), existing.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to reload client", "error", err, "client_id", existing.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to update client")
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, updated)
}

// ownedClient loads a client and enforces tenant scoping. Admins may
// read any client; attorneys only their own.
func (h *ClientHandlers) ownedClient(w http.ResponseWriter, r *http.Request, id string) (*client.Client, bool) {
	if id == "" {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "missing client id")
		return nil, false
	}

	c, err := h.clients.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, client.ErrClientNotFound) {
			fail(w, r, http.StatusNotFound, ErrCodeNotFound, "client not found")
			return nil, false
		}
		h.logger.ErrorContext(r.Context(), "failed to load client", "error", err, "client_id", id)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to load client")
		return nil, false
	}

	if middleware.GetActorRole(r.Context()) != auth.RoleAdmin && c.AttorneyID != middleware.GetActorID(r.Context()) {
		fail(w, r, http.StatusNotFound, ErrCodeNotFound, "client not found")
		return nil, false
	}
	return c, true
}
