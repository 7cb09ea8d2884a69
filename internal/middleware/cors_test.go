package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsHandler(origins ...string) http.Handler {
	return CORS(DefaultCORSConfig(origins))(okHandler())
}

func TestCORS_AllowedOrigin(t *testing.T) {
	handler := corsHandler("https://app.heirvault.example")

	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	req.Header.Set("Origin", "https://app.heirvault.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.heirvault.example" {
		t.Errorf("Allow-Origin = %q, want the request origin", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	handler := corsHandler("https://app.heirvault.example")

	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	handler := corsHandler("https://app.heirvault.example")

	req := httptest.NewRequest(http.MethodOptions, "/clients", nil)
	req.Header.Set("Origin", "https://app.heirvault.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("preflight should advertise allowed methods")
	}
	if rec.Header().Get("Access-Control-Max-Age") != "300" {
		t.Errorf("Max-Age = %q, want 300", rec.Header().Get("Access-Control-Max-Age"))
	}
}

func TestCORS_NoOriginsDisablesProcessing(t *testing.T) {
	handler := corsHandler()

	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when CORS disabled", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disabled CORS should not set headers")
	}
}

func TestCORS_SameOriginRequest(t *testing.T) {
	handler := corsHandler("https://app.heirvault.example")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for same-origin request", rec.Code)
	}
}
