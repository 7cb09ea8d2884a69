package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/heirvault/heirvault/internal/auth"
)

// inviteKey is the context key for validated invite token claims.
type inviteKey struct{}

// InviteClaims carries what the intake handler needs from an invite token.
type InviteClaims struct {
	InviteID string
	ClientID string
}

// GetInviteClaims retrieves invite token claims from context.
// Returns nil if the request was not invite-authenticated.
func GetInviteClaims(ctx context.Context) *InviteClaims {
	if c, ok := ctx.Value(inviteKey{}).(*InviteClaims); ok {
		return c
	}
	return nil
}

// TokenValidator validates a bearer token and returns its claims.
// Satisfied by auth.JWTService.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

// writeAuthError writes the standard error envelope without depending on
// the api package (which imports this one).
func writeAuthError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

// Authenticate requires a valid access token and stores the actor's ID
// and role in the request context. Refresh and invite tokens are
// rejected here; they are only accepted by their dedicated endpoints.
func Authenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeAuthError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil || claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}

			ctx := SetActorID(r.Context(), claims.Subject)
			ctx = SetActorRole(ctx, claims.Role)
			// Hand the actor back to the logging middleware above us.
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose actor role is not in
// the allowed set. Must be placed after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed[GetActorRole(r.Context())] {
				writeAuthError(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthenticateInvite requires a valid invite token. Used by the intake
// endpoint, where the caller is an heir following a mailed link rather
// than a logged-in attorney. The invite and client IDs from the token
// are stored in the context; single-use and redemption checks are the
// handler's job since they need the invite repository.
func AuthenticateInvite(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				// Intake links may also carry the token as a query
				// parameter for clients that cannot set headers.
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				writeAuthError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing invite token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil || claims.Type != auth.TokenTypeInvite {
				writeAuthError(w, r, http.StatusUnauthorized, "INVITE_INVALID", "invalid or expired invite token")
				return
			}

			ctx := context.WithValue(r.Context(), inviteKey{}, &InviteClaims{
				InviteID: claims.Subject,
				ClientID: claims.ClientID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
