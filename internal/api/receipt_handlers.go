package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/heirvault/heirvault/internal/audit"
	"github.com/heirvault/heirvault/internal/insurer"
	"github.com/heirvault/heirvault/internal/metrics"
	"github.com/heirvault/heirvault/internal/middleware"
	"github.com/heirvault/heirvault/internal/pdf"
	"github.com/heirvault/heirvault/internal/policy"
	"github.com/heirvault/heirvault/internal/receipt"
)

// ReceiptHandlers serves receipt retrieval, public verification, and
// the printable PDF.
type ReceiptHandlers struct {
	receipts receipt.Repository
	verifier *receipt.Verifier
	clients  *ClientHandlers
	policies policy.Repository
	insurers insurer.Repository
	renderer *pdf.Renderer
	audits   audit.Repository

	// verifyBase is the public base URL embedded in PDFs and QR codes.
	verifyBase string
	logger     *slog.Logger
}

// NewReceiptHandlers creates handlers for the /receipts endpoints.
func NewReceiptHandlers(
	receipts receipt.Repository,
	verifier *receipt.Verifier,
	clients *ClientHandlers,
	policies policy.Repository,
	insurers insurer.Repository,
	renderer *pdf.Renderer,
	audits audit.Repository,
	verifyBase string,
	logger *slog.Logger,
) *ReceiptHandlers {
	return &ReceiptHandlers{
		receipts:   receipts,
		verifier:   verifier,
		clients:    clients,
		policies:   policies,
		insurers:   insurers,
		renderer:   renderer,
		audits:     audits,
		verifyBase: verifyBase,
		logger:     logger,
	}
}

// Get handles GET /receipts/{id}. Scoped through the owning client.
func (h *ReceiptHandlers) Get(w http.ResponseWriter, r *http.Request) {
	rcpt, ok := h.ownedReceipt(w, r)
	if !ok {
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, rcpt)
}

// ListByClient handles GET /clients/{id}/receipts.
func (h *ReceiptHandlers) ListByClient(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clients.ownedClient(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	receipts, err := h.receipts.ListByClient(r.Context(), c.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list receipts", "error", err, "client_id", c.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to list receipts")
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"receipts": receipts})
}

// Verify handles GET /receipts/{id}/verify. The endpoint is public: an
// heir holding a receipt number must be able to check it without an
// account. A digest mismatch is a successful verification with
// match=false, not an error status.
func (h *ReceiptHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	result, err := h.verifier.Verify(r.Context(), id)
	switch {
	case err == nil:
		metrics.IncVerification(metrics.VerifyOutcomeMatch)

	case errors.Is(err, receipt.ErrIntegrityMismatch):
		metrics.IncVerification(metrics.VerifyOutcomeMismatch)
		audit.Record(r.Context(), h.audits, h.logger, audit.Entry{
			Action:    audit.ActionReceiptVerifyFailed,
			Message:   "receipt digest mismatch on public verification",
			RequestID: middleware.GetRequestID(r.Context()),
		})

	case errors.Is(err, receipt.ErrReceiptNotFound), errors.Is(err, receipt.ErrMalformedInput):
		metrics.IncVerification(metrics.VerifyOutcomeNotFound)
		fail(w, r, http.StatusNotFound, ErrCodeNotFound, "receipt not found")
		return

	default:
		metrics.IncVerification(metrics.VerifyOutcomeError)
		h.logger.ErrorContext(r.Context(), "receipt verification failed", "error", err, "receipt_id", id)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to verify receipt")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, result)
}

// PDF handles GET /receipts/{id}/pdf. Scoped through the owning client.
func (h *ReceiptHandlers) PDF(w http.ResponseWriter, r *http.Request) {
	rcpt, ok := h.ownedReceipt(w, r)
	if !ok {
		return
	}
	if h.renderer == nil {
		fail(w, r, http.StatusNotImplemented, ErrCodeInternal, "PDF rendering is not configured")
		return
	}

	c, err := h.clients.clients.GetByID(r.Context(), rcpt.ClientID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load client for receipt PDF", "error", err, "receipt_id", rcpt.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to render receipt")
		return
	}

	lines, err := h.policyLines(r, rcpt)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load policies for receipt PDF", "error", err, "receipt_id", rcpt.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to render receipt")
		return
	}

	data, err := h.renderer.Render(r.Context(), pdf.ReceiptData{
		ReceiptID:  rcpt.ID,
		Number:     rcpt.Number,
		ClientName: c.FullName(),
		Digest:     rcpt.Digest,
		IssuedAt:   rcpt.CreatedAt,
		VerifyURL:  h.verifyURL(rcpt.ID),
		Policies:   lines,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render receipt PDF", "error", err, "receipt_id", rcpt.ID)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to render receipt")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "receipt-"+rcpt.Number+".pdf"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write receipt PDF", "error", err, "receipt_id", rcpt.ID)
	}
}

// policyLines assembles the PDF policy table from the receipt's policy
// window, with carriers resolved for display.
func (h *ReceiptHandlers) policyLines(r *http.Request, rcpt *receipt.Receipt) ([]pdf.PolicyLine, error) {
	rows, err := h.policies.ListByClientCreatedAtOrBefore(r.Context(), rcpt.ClientID, rcpt.CreatedAt)
	if err != nil {
		return nil, err
	}

	lines := make([]pdf.PolicyLine, 0, len(rows))
	for _, p := range rows {
		var insurerName string
		if p.InsurerID != nil {
			if ins, err := h.insurers.GetByID(r.Context(), *p.InsurerID); err == nil {
				insurerName = ins.Name
			}
		}
		lines = append(lines, pdf.PolicyLine{
			Number:  p.Number,
			Carrier: p.CarrierLabel(insurerName),
			Status:  string(p.Status),
		})
	}
	return lines, nil
}

func (h *ReceiptHandlers) verifyURL(receiptID string) string {
	return strings.TrimRight(h.verifyBase, "/") + "/receipts/" + receiptID + "/verify"
}

// ownedReceipt loads a receipt and enforces tenant scoping through the
// owning client.
func (h *ReceiptHandlers) ownedReceipt(w http.ResponseWriter, r *http.Request) (*receipt.Receipt, bool) {
	id := r.PathValue("id")
	rcpt, err := h.receipts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, receipt.ErrReceiptNotFound) {
			fail(w, r, http.StatusNotFound, ErrCodeNotFound, "receipt not found")
			return nil, false
		}
		h.logger.ErrorContext(r.Context(), "failed to load receipt", "error", err, "receipt_id", id)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to load receipt")
		return nil, false
	}

	if _, ok := h.clients.ownedClient(w, r, rcpt.ClientID); !ok {
		return nil, false
	}
	return rcpt, true
}
