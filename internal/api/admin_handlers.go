package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/heirvault/heirvault/internal/admin"
	"github.com/heirvault/heirvault/internal/audit"
	"github.com/heirvault/heirvault/internal/middleware"
	"github.com/heirvault/heirvault/internal/validate"
)

// AdminHandlers serves the operator command surface: a free-text
// endpoint that plans an invocation from the input, and a direct
// endpoint addressing a verb by name.
type AdminHandlers struct {
	dispatcher *admin.Dispatcher
	audits     audit.Repository
	logger     *slog.Logger
}

// NewAdminHandlers creates handlers for the /admin endpoints.
func NewAdminHandlers(dispatcher *admin.Dispatcher, audits audit.Repository, logger *slog.Logger) *AdminHandlers {
	return &AdminHandlers{dispatcher: dispatcher, audits: audits, logger: logger}
}

type commandRequest struct {
	Input string `json:"input"`
}

type commandResponse struct {
	Verb   string        `json:"verb"`
	Result *admin.Result `json:"result"`
}

type directCommandRequest struct {
	Args admin.Args `json:"args"`
}

// Command handles POST /admin/command. The input is matched against the
// registered verbs; an input that matches nothing is rejected rather
// than guessed at.
func (h *AdminHandlers) Command(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	input, err := validate.CommandInput(req.Input)
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid command input")
		return
	}

	inv, err := admin.Plan(input)
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeUnknownCommand, "could not match input to a known command")
		return
	}

	h.run(w, r, inv.Verb, inv.Args)
}

// Direct handles POST /admin/commands/{verb}.
func (h *AdminHandlers) Direct(w http.ResponseWriter, r *http.Request) {
	var req directCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.run(w, r, r.PathValue("verb"), req.Args)
}

// Verbs handles GET /admin/commands.
func (h *AdminHandlers) Verbs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"verbs": h.dispatcher.Verbs()})
}

func (h *AdminHandlers) run(w http.ResponseWriter, r *http.Request, verb string, args admin.Args) {
	actorID := middleware.GetActorID(r.Context())
	result, err := h.dispatcher.Dispatch(r.Context(), middleware.GetActorRole(r.Context()), verb, args)
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrUnknownCommand):
			fail(w, r, http.StatusNotFound, ErrCodeUnknownCommand, "unknown command verb")
		case errors.Is(err, admin.ErrForbiddenCommand):
			fail(w, r, http.StatusForbidden, ErrCodeForbidden, "command requires the admin role")
		case errors.Is(err, admin.ErrMissingArgument):
			fail(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			h.logger.ErrorContext(r.Context(), "admin command failed", "error", err, "verb", verb)
			fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "command failed")
		}
		return
	}

	audit.Record(r.Context(), h.audits, h.logger, audit.Entry{
		Action:    audit.ActionAdminCommand,
		Message:   "admin command executed: " + verb,
		ActorID:   actorID,
		RequestID: middleware.GetRequestID(r.Context()),
	})

	writeJSON(w, r.Context(), http.StatusOK, commandResponse{Verb: verb, Result: result})
}
