// Package metrics exposes Prometheus collectors for domain events:
// receipts issued, verification outcomes, intake submissions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verification outcome label values.
const (
	VerifyOutcomeMatch    = "match"
	VerifyOutcomeMismatch = "mismatch"
	VerifyOutcomeNotFound = "not_found"
	VerifyOutcomeError    = "error"
)

var (
	receiptsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heirvault_receipts_issued_total",
		Help: "Number of submission receipts issued.",
	})

	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heirvault_receipt_verifications_total",
		Help: "Number of receipt verification requests by outcome.",
	}, []string{"outcome"})

	intakeSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heirvault_intake_submissions_total",
		Help: "Number of accepted intake submissions.",
	})

	invitesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heirvault_invites_issued_total",
		Help: "Number of intake invites issued.",
	})

	documentsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heirvault_documents_registered_total",
		Help: "Number of uploaded documents registered.",
	})
)

// IncReceiptsIssued counts one issued receipt.
func IncReceiptsIssued() { receiptsIssued.Inc() }

// IncVerification counts one verification request by outcome.
func IncVerification(outcome string) { verifications.WithLabelValues(outcome).Inc() }

// IncIntakeSubmissions counts one accepted intake submission.
func IncIntakeSubmissions() { intakeSubmissions.Inc() }

// IncInvitesIssued counts one issued invite.
func IncInvitesIssued() { invitesIssued.Inc() }

// IncDocumentsRegistered counts one registered document.
func IncDocumentsRegistered() { documentsRegistered.Inc() }
