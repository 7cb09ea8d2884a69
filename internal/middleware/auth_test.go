package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/heirvault/heirvault/internal/auth"
)

func newTestJWT() *auth.JWTService {
	return auth.NewJWTService("middleware-test-secret")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("error response is not the standard envelope: %v", err)
	}
	return body.Error.Code
}

func TestAuthenticate_ValidToken(t *testing.T) {
	svc := newTestJWT()
	token, err := svc.GenerateAccessToken("attorney-1", auth.RoleAttorney)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	var actorID, role string
	handler := Authenticate(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID = GetActorID(r.Context())
		role = GetActorRole(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if actorID != "attorney-1" {
		t.Errorf("actor ID = %q, want attorney-1", actorID)
	}
	if role != auth.RoleAttorney {
		t.Errorf("role = %q, want %q", role, auth.RoleAttorney)
	}
}

func TestAuthenticate_MissingToken(t *testing.T) {
	handler := Authenticate(newTestJWT())(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "UNAUTHORIZED" {
		t.Errorf("error code = %q, want UNAUTHORIZED", code)
	}
}

func TestAuthenticate_RejectsNonAccessTokens(t *testing.T) {
	svc := newTestJWT()

	refresh, err := svc.GenerateRefreshToken("attorney-1")
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	invite, err := svc.GenerateInviteToken("invite-1", "client-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GenerateInviteToken() error = %v", err)
	}

	handler := Authenticate(svc)(okHandler())

	for name, token := range map[string]string{"refresh": refresh, "invite": invite} {
		req := httptest.NewRequest(http.MethodGet, "/clients", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s token: status = %d, want 401", name, rec.Code)
		}
	}
}

func TestRequireRole(t *testing.T) {
	svc := newTestJWT()
	attorneyToken, err := svc.GenerateAccessToken("attorney-1", auth.RoleAttorney)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	adminToken, err := svc.GenerateAccessToken("admin-1", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	handler := Authenticate(svc)(RequireRole(auth.RoleAdmin)(okHandler()))

	req := httptest.NewRequest(http.MethodPost, "/admin/command", nil)
	req.Header.Set("Authorization", "Bearer "+attorneyToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("attorney on admin route: status = %d, want 403", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "FORBIDDEN" {
		t.Errorf("error code = %q, want FORBIDDEN", code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/command", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin on admin route: status = %d, want 200", rec.Code)
	}
}

func TestAuthenticateInvite(t *testing.T) {
	svc := newTestJWT()
	token, err := svc.GenerateInviteToken("invite-1", "client-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GenerateInviteToken() error = %v", err)
	}

	var claims *InviteClaims
	handler := AuthenticateInvite(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims = GetInviteClaims(r.Context())
	}))

	// Token in Authorization header.
	req := httptest.NewRequest(http.MethodPost, "/intake", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if claims == nil || claims.InviteID != "invite-1" || claims.ClientID != "client-1" {
		t.Errorf("invite claims = %+v, want invite-1/client-1", claims)
	}

	// Token in query parameter.
	claims = nil
	req = httptest.NewRequest(http.MethodPost, "/intake?token="+token, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || claims == nil {
		t.Errorf("query token: status = %d, claims = %+v", rec.Code, claims)
	}
}

func TestAuthenticateInvite_RejectsAccessToken(t *testing.T) {
	svc := newTestJWT()
	token, err := svc.GenerateAccessToken("attorney-1", auth.RoleAttorney)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	handler := AuthenticateInvite(svc)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/intake", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "INVITE_INVALID" {
		t.Errorf("error code = %q, want INVITE_INVALID", code)
	}
}
