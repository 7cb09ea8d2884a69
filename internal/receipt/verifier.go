package receipt

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heirvault/heirvault/internal/tracing"
)

// ErrIntegrityMismatch is returned when a receipt exists but its
// recomputed digest differs from the stored one. This is a tamper
// signal and must be surfaced distinctly from a not-found condition.
var ErrIntegrityMismatch = errors.New("receipt digest mismatch")

// VerificationResult carries both digests so callers can distinguish a
// clean match from tampering or data drift.
type VerificationResult struct {
	ReceiptID      string `json:"receipt_id"`
	Number         string `json:"number"`
	Match          bool   `json:"match"`
	StoredDigest   string `json:"stored_digest"`
	ComputedDigest string `json:"computed_digest"`
}

// Verifier recomputes receipt digests from stored state.
type Verifier struct {
	receipts Repository
	policies PolicySource
	logger   *slog.Logger
}

// NewVerifier creates a new Verifier.
func NewVerifier(receipts Repository, policies PolicySource, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{receipts: receipts, policies: policies, logger: logger}
}

// Verify loads the receipt, reconstructs the exact inputs used at
// generation time, and recomputes the digest.
//
// The stored created_at is authoritative: it is never re-derived. The
// policy window is re-queried bounded by it, in the same order contract
// as generation.
//
// Returns ErrReceiptNotFound when the id does not resolve. On a digest
// mismatch it returns the result alongside ErrIntegrityMismatch so the
// caller can both report the digests and treat the condition as a
// tamper signal.
func (v *Verifier) Verify(ctx context.Context, receiptID string) (retRes *VerificationResult, retErr error) {
	ctx, endSpan := tracing.StartSpan(ctx, "verify_receipt")
	defer func() { endSpan(retErr) }()

	if receiptID == "" {
		return nil, fmt.Errorf("%w: receipt id is empty", ErrMalformedInput)
	}

	stored, err := v.receipts.GetByID(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	window, err := v.policies.SnapshotsCreatedAtOrBefore(ctx, stored.ClientID, stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy window: %w", err)
	}

	computed, err := ComputeDigest(stored.ID, stored.ClientID, stored.CreatedAt, window)
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{
		ReceiptID:      stored.ID,
		Number:         stored.Number,
		StoredDigest:   stored.Digest,
		ComputedDigest: computed,
	}
	result.Match = subtle.ConstantTimeCompare([]byte(stored.Digest), []byte(computed)) == 1

	if !result.Match {
		v.logger.Warn("receipt digest mismatch",
			slog.String("receipt_id", stored.ID),
			slog.String("client_id", stored.ClientID))
		return result, ErrIntegrityMismatch
	}
	return result, nil
}
