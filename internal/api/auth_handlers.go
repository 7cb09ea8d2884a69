package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/heirvault/heirvault/internal/attorney"
	"github.com/heirvault/heirvault/internal/auth"
	"github.com/heirvault/heirvault/internal/validate"
)

// AuthHandlers serves registration, login and token refresh.
type AuthHandlers struct {
	attorneys attorney.Repository
	jwt       *auth.JWTService
	logger    *slog.Logger
}

// NewAuthHandlers creates handlers for the /auth endpoints.
func NewAuthHandlers(attorneys attorney.Repository, jwt *auth.JWTService, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{attorneys: attorneys, jwt: jwt, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type registerResponse struct {
	Attorney *attorney.Attorney `json:"attorney"`
	tokenResponse
}

// Register handles POST /auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	email, err := validate.Email(req.Email)
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid email address")
		return
	}
	name, err := validate.PersonName(strings.TrimSpace(req.Name))
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid name")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			fail(w, r, http.StatusBadRequest, ErrCodeValidation, "password must be at least 8 characters")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to hash password", "error", err)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to create account")
		return
	}

	created, err := h.attorneys.Insert(r.Context(), &attorney.Attorney{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         auth.RoleAttorney,
	})
	if err != nil {
		if errors.Is(err, attorney.ErrEmailTaken) {
			fail(w, r, http.StatusConflict, ErrCodeEmailTaken, "email already registered")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to insert attorney", "error", err)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to create account")
		return
	}

	tokens, err := h.issueTokens(created)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue tokens", "error", err)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to create account")
		return
	}

	writeJSON(w, r.Context(), http.StatusCreated, registerResponse{
		Attorney:      created,
		tokenResponse: *tokens,
	})
}

// Login handles POST /auth/login. A bad email and a bad password return
// the same error so the endpoint cannot be used to probe for accounts.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	acct, err := h.attorneys.GetByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		fail(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "invalid email or password")
		return
	}
	if err := auth.CheckPassword(acct.PasswordHash, req.Password); err != nil {
		fail(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "invalid email or password")
		return
	}

	tokens, err := h.issueTokens(acct)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue tokens", "error", err)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to log in")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, tokens)
}

// Refresh handles POST /auth/refresh. Only refresh tokens are accepted;
// presenting an access token here fails even when it is otherwise valid.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	claims, err := h.jwt.ValidateToken(req.RefreshToken)
	if err != nil || claims.Type != auth.TokenTypeRefresh {
		fail(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "invalid or expired refresh token")
		return
	}

	// Re-read the account so a role change or deletion takes effect at
	// the next refresh rather than at token expiry.
	acct, err := h.attorneys.GetByID(r.Context(), claims.Subject)
	if err != nil {
		fail(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "account no longer exists")
		return
	}

	tokens, err := h.issueTokens(acct)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue tokens", "error", err)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to refresh tokens")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, tokens)
}

func (h *AuthHandlers) issueTokens(acct *attorney.Attorney) (*tokenResponse, error) {
	access, err := h.jwt.GenerateAccessToken(acct.ID, acct.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := h.jwt.GenerateRefreshToken(acct.ID)
	if err != nil {
		return nil, err
	}
	return &tokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}, nil
}
