package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/heirvault/heirvault/internal/audit"
	"github.com/heirvault/heirvault/internal/auth"
	"github.com/heirvault/heirvault/internal/document"
	"github.com/heirvault/heirvault/internal/metrics"
	"github.com/heirvault/heirvault/internal/middleware"
	"github.com/heirvault/heirvault/internal/ocr"
	"github.com/heirvault/heirvault/internal/storage"
)

// DocumentHandlers serves direct-to-bucket uploads: the client asks for
// a presigned PUT URL, uploads the file itself, then registers the
// object. Registration kicks off text extraction in the background.
type DocumentHandlers struct {
	documents document.Repository
	store     *storage.Service
	extractor *ocr.Client
	clients   *ClientHandlers
	audits    audit.Repository
	logger    *slog.Logger
}

// NewDocumentHandlers creates handlers for the /documents endpoints.
// store may be nil when object storage is not configured; the endpoints
// then report 501.
func NewDocumentHandlers(
	documents document.Repository,
	store *storage.Service,
	extractor *ocr.Client,
	clients *ClientHandlers,
	audits audit.Repository,
	logger *slog.Logger,
) *DocumentHandlers {
	return &DocumentHandlers{
		documents: documents,
		store:     store,
		extractor: extractor,
		clients:   clients,
		audits:    audits,
		logger:    logger,
	}
}

type presignRequest struct {
	ContentType string  `json:"content_type"`
	SizeBytes   int64   `json:"size_bytes"`
	ClientID    *string `json:"client_id,omitempty"`
}

type documentRegisterRequest struct {
	ObjectKey   string  `json:"object_key"`
	ContentType string  `json:"content_type"`
	SizeBytes   int64   `json:"size_bytes"`
	ClientID    *string `json:"client_id,omitempty"`
	PolicyID    *string `json:"policy_id,omitempty"`
}

// Presign handles POST /documents/presign.
func (h *DocumentHandlers) Presign(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		fail(w, r, http.StatusNotImplemented, ErrCodeInternal, "object storage is not configured")
		return
	}

	var req presignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if req.ClientID != nil {
		if _, ok := h.clients.ownedClient(w, r, *req.ClientID); !ok {
			return
		}
	}

	resp, err := h.store.GenerateSignedURL(r.Context(), storage.SignedURLRequest{
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		ClientID:    req.ClientID,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedType):
			fail(w, r, http.StatusUnsupportedMediaType, ErrCodeUnsupportedType, "unsupported content type")
		case errors.Is(err, storage.ErrFileTooLarge):
			fail(w, r, http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge, "file exceeds the maximum upload size")
		case errors.Is(err, storage.ErrInvalidClientID):
			fail(w, r, http.StatusBadRequest, ErrCodeValidation, "invalid client id")
		default:
			h.logger.ErrorContext(r.Context(), "failed to presign upload", "error", err)
			fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to presign upload")
		}
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, resp)
}

// Register handles POST /documents. The object must already be in the
// bucket; registration records it and starts extraction.
func (h *DocumentHandlers) Register(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		fail(w, r, http.StatusNotImplemented, ErrCodeInternal, "object storage is not configured")
		return
	}

	var req documentRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.ObjectKey == "" {
		fail(w, r, http.StatusBadRequest, ErrCodeValidation, "object_key is required")
		return
	}
	if err := storage.ValidateContentType(req.ContentType); err != nil {
		fail(w, r, http.StatusUnsupportedMediaType, ErrCodeUnsupportedType, "unsupported content type")
		return
	}

	var clientID *string
	if req.ClientID != nil {
		c, ok := h.clients.ownedClient(w, r, *req.ClientID)
		if !ok {
			return
		}
		clientID = &c.ID
	}

	actorID := middleware.GetActorID(r.Context())
	created, err := h.documents.Insert(r.Context(), &document.Document{
		AttorneyID:  actorID,
		ClientID:    clientID,
		PolicyID:    req.PolicyID,
		ObjectKey:   req.ObjectKey,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		Status:      document.StatusUploaded,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to insert document", "error", err)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to register document")
		return
	}

	metrics.IncDocumentsRegistered()
	audit.Record(r.Context(), h.audits, h.logger, audit.Entry{
		Action:    audit.ActionDocumentUploaded,
		Message:   "document registered",
		ActorID:   actorID,
		ClientID:  derefOrEmpty(clientID),
		RequestID: middleware.GetRequestID(r.Context()),
	})

	if h.extractor != nil && h.extractor.Configured() {
		go h.extract(created)
	}

	writeJSON(w, r.Context(), http.StatusCreated, created)
}

// Get handles GET /documents/{id}.
func (h *DocumentHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := h.documents.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, document.ErrDocumentNotFound) {
			fail(w, r, http.StatusNotFound, ErrCodeNotFound, "document not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to load document", "error", err, "document_id", id)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to load document")
		return
	}
	if doc.AttorneyID != middleware.GetActorID(r.Context()) && middleware.GetActorRole(r.Context()) != auth.RoleAdmin {
		fail(w, r, http.StatusNotFound, ErrCodeNotFound, "document not found")
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, doc)
}

// extract runs text extraction for a registered document and stores
// whatever fields could be parsed. Failures mark the document FAILED
// but never surface to the uploader.
func (h *DocumentHandlers) extract(doc *document.Document) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	signed, err := h.store.GenerateDownloadURL(ctx, doc.ObjectKey)
	if err != nil {
		h.logger.Warn("failed to presign document for extraction", "error", err, "document_id", doc.ID)
		h.markExtraction(ctx, doc.ID, document.StatusFailed, document.ExtractedFields{})
		return
	}

	text, err := h.extractor.Extract(ctx, ocr.ExtractRequest{
		SourceURL:   signed.URL,
		ContentType: doc.ContentType,
	})
	if err != nil {
		h.logger.Warn("document extraction failed", "error", err, "document_id", doc.ID)
		h.markExtraction(ctx, doc.ID, document.StatusFailed, document.ExtractedFields{})
		return
	}

	fields := ocr.ParseFields(text)
	h.markExtraction(ctx, doc.ID, document.StatusProcessed, fields)
}

func (h *DocumentHandlers) markExtraction(ctx context.Context, id, status string, fields document.ExtractedFields) {
	if err := h.documents.SetExtraction(ctx, id, status, fields); err != nil {
		h.logger.Warn("failed to record extraction result", "error", err, "document_id", id)
	}
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
