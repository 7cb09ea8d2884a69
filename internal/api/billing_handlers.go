package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/heirvault/heirvault/internal/billing"
	"github.com/heirvault/heirvault/internal/middleware"
)

// maxWebhookBodyBytes caps the webhook payload we will read.
const maxWebhookBodyBytes = 65536

// BillingHandlers serves subscription checkout and the Stripe webhook.
type BillingHandlers struct {
	service       *billing.Service
	webhookSecret string
	logger        *slog.Logger
}

// NewBillingHandlers creates handlers for the /billing endpoints.
// service may be nil when Stripe is not configured; the endpoints then
// report 501.
func NewBillingHandlers(service *billing.Service, webhookSecret string, logger *slog.Logger) *BillingHandlers {
	return &BillingHandlers{service: service, webhookSecret: webhookSecret, logger: logger}
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

// Checkout handles POST /billing/checkout. The attorney is sent to a
// hosted Stripe payment page; the subscription lands via webhook.
func (h *BillingHandlers) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		fail(w, r, http.StatusNotImplemented, ErrCodeInternal, "billing is not configured")
		return
	}

	url, err := h.service.CreateCheckout(r.Context(), middleware.GetActorID(r.Context()))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create checkout session", "error", err)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to start checkout")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, checkoutResponse{CheckoutURL: url})
}

// Webhook handles POST /billing/webhook. The signature is verified
// before anything else; a processed event always returns 200 so Stripe
// stops retrying, including replays.
func (h *BillingHandlers) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		fail(w, r, http.StatusNotImplemented, ErrCodeInternal, "billing is not configured")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "failed to read webhook payload")
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid webhook signature")
		return
	}

	if err := h.service.HandleEvent(r.Context(), event); err != nil {
		// A 5xx makes Stripe retry, which is what we want for
		// transient failures.
		h.logger.ErrorContext(r.Context(), "failed to handle webhook event",
			"error", err, "event_id", event.ID, "event_type", event.Type)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to process event")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]string{"status": "received"})
}
