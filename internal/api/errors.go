// Package api provides the HTTP handlers and standardized error
// handling for the HeirVault API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/heirvault/heirvault/internal/middleware"
)

// Common error codes used throughout the API. The authentication
// middleware emits UNAUTHORIZED, FORBIDDEN and INVITE_INVALID in the
// same envelope.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeAuthFailed indicates a bad email/password pair or an
	// unusable refresh token.
	ErrCodeAuthFailed = "AUTH_FAILED"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "INTERNAL_ERROR"

	// ErrCodeForbidden indicates the actor may not touch the resource.
	ErrCodeForbidden = "FORBIDDEN"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "CONFLICT"

	// ErrCodeBadRequest indicates a malformed request body.
	ErrCodeBadRequest = "BAD_REQUEST"

	// ErrCodeInviteExpired indicates the intake invite is past expiry.
	ErrCodeInviteExpired = "INVITE_EXPIRED"

	// ErrCodeInviteUsed indicates the intake invite was already redeemed.
	ErrCodeInviteUsed = "INVITE_USED"

	// ErrCodeUnsupportedType indicates an unsupported upload content
	// type.
	ErrCodeUnsupportedType = "UNSUPPORTED_TYPE"

	// ErrCodeFileTooLarge indicates the upload exceeds the size limit.
	ErrCodeFileTooLarge = "FILE_TOO_LARGE"

	// ErrCodeUnknownCommand indicates an unrecognized admin verb.
	ErrCodeUnknownCommand = "UNKNOWN_COMMAND"

	// ErrCodeEmailTaken indicates the email is already registered.
	ErrCodeEmailTaken = "EMAIL_TAKEN"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure:
// {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response.
//
// The error_code is surfaced to the logging middleware when the caller
// sets it on the context and passes the updated context:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "receipt not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// fail sets the error code on the request context and writes the error
// envelope. Shorthand for the SetErrorCode + WriteError pair.
func fail(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, status, code, message)
}
