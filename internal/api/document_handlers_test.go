package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/heirvault/heirvault/internal/document"
	"github.com/heirvault/heirvault/internal/middleware"
	"github.com/heirvault/heirvault/internal/ocr"
	"github.com/heirvault/heirvault/internal/storage"
)

// newStorageService builds a real storage service; presigning is done
// locally, so no bucket needs to exist.
func newStorageService(t *testing.T) *storage.Service {
	t.Helper()
	svc, err := storage.NewService(storage.ServiceConfig{
		BucketName:      "heirvault-test",
		Region:          "us-east-1",
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestDocumentPresign(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedAttorney(t, "esq@example.com", "attorney")

	logger := newTestLogger()
	clients := NewClientHandlers(env.clients, env.audits, logger)
	handlers := NewDocumentHandlers(env.documents, newStorageService(t), nil, clients, env.audits, logger)

	mux := http.NewServeMux()
	mux.Handle("POST /documents/presign", middleware.Authenticate(env.jwt)(http.HandlerFunc(handlers.Presign)))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/documents/presign",
		strings.NewReader(`{"content_type":"application/pdf","size_bytes":2048}`))
	req.Header.Set("Authorization", "Bearer "+token)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp storage.SignedURLResponse
	decode(t, rec, &resp)
	if !strings.Contains(resp.URL, "X-Amz-Signature") {
		t.Errorf("URL %q should be presigned", resp.URL)
	}
	if !strings.HasPrefix(resp.Key, "documents/intake/") || !strings.HasSuffix(resp.Key, ".pdf") {
		t.Errorf("key = %q", resp.Key)
	}
}

func TestDocumentRegister_RunsExtraction(t *testing.T) {
	env := newTestEnv(t)
	acct, _ := env.seedAttorney(t, "esq@example.com", "attorney")

	ocrSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Acme Life Insurance Company\nPolicy Number: POL-777\nInsured: Jane Doe"}`))
	}))
	defer ocrSrv.Close()

	logger := newTestLogger()
	clients := NewClientHandlers(env.clients, env.audits, logger)
	handlers := NewDocumentHandlers(env.documents, newStorageService(t), ocr.NewClient(ocrSrv.URL), clients, env.audits, logger)

	mux := http.NewServeMux()
	mux.Handle("POST /documents", middleware.Authenticate(env.jwt)(http.HandlerFunc(handlers.Register)))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/documents",
		strings.NewReader(`{"object_key":"documents/intake/doc.pdf","content_type":"application/pdf","size_bytes":2048}`))
	token, err := env.jwt.GenerateAccessToken(acct.ID, acct.Role)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created document.Document
	decode(t, rec, &created)
	if created.Status != document.StatusUploaded {
		t.Errorf("status = %q, want UPLOADED", created.Status)
	}

	// Extraction runs in the background; wait for it to land.
	deadline := time.Now().Add(5 * time.Second)
	for {
		doc, err := env.documents.GetByID(t.Context(), created.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if doc.Status == document.StatusProcessed {
			if doc.Extracted.PolicyNumber == nil || *doc.Extracted.PolicyNumber != "POL-777" {
				t.Errorf("extracted policy number = %v", doc.Extracted.PolicyNumber)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("extraction did not finish, status = %q", doc.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDocuments_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedAttorney(t, "esq@example.com", "attorney")

	rec := env.do(t, http.MethodPost, "/documents/presign", token, map[string]any{
		"content_type": "application/pdf",
		"size_bytes":   1024,
	})
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("presign status = %d, want 501 without storage", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/documents", token, map[string]any{
		"object_key":   "documents/intake/abc.pdf",
		"content_type": "application/pdf",
		"size_bytes":   1024,
	})
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("register status = %d, want 501 without storage", rec.Code)
	}
}

func TestDocuments_RequireAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/documents/presign", "", map[string]any{
		"content_type": "application/pdf",
		"size_bytes":   1024,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
