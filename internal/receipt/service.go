package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heirvault/heirvault/internal/tracing"
)

// PolicySource supplies the policy window for digest computation:
// every policy of the client whose created_at is at or before the
// cutoff. Row order does not matter; ComputeDigest sorts.
type PolicySource interface {
	SnapshotsCreatedAtOrBefore(ctx context.Context, clientID string, cutoff time.Time) ([]PolicySnapshot, error)
}

// Issuer creates receipts and their digests.
type Issuer struct {
	receipts Repository
	policies PolicySource
	logger   *slog.Logger
}

// NewIssuer creates a new Issuer.
func NewIssuer(receipts Repository, policies PolicySource, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{receipts: receipts, policies: policies, logger: logger}
}

// Issue creates a receipt for a submission and attaches its digest.
//
// The sequence is load-bearing and must not be reordered: the receipt
// row is inserted first, the persisted created_at comes back from the
// repository, the policy window is bounded by that persisted value, and
// only then is the digest computed and attached. Hashing with a
// timestamp computed before the insert would break reproducibility under
// clock skew (see package doc).
func (s *Issuer) Issue(ctx context.Context, clientID, submissionID string) (retRcpt *Receipt, retErr error) {
	ctx, endSpan := tracing.StartSpan(ctx, "issue_receipt")
	defer func() { endSpan(retErr) }()

	if clientID == "" {
		return nil, fmt.Errorf("%w: client id is empty", ErrMalformedInput)
	}
	if submissionID == "" {
		return nil, fmt.Errorf("%w: submission id is empty", ErrMalformedInput)
	}

	number, err := NewNumber(time.Now())
	if err != nil {
		return nil, err
	}

	stored, err := s.receipts.Create(ctx, &Receipt{
		ID:           uuid.New().String(),
		ClientID:     clientID,
		SubmissionID: submissionID,
		Number:       number,
	})
	if err != nil {
		return nil, err
	}

	window, err := s.policies.SnapshotsCreatedAtOrBefore(ctx, stored.ClientID, stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy window: %w", err)
	}

	digest, err := ComputeDigest(stored.ID, stored.ClientID, stored.CreatedAt, window)
	if err != nil {
		return nil, err
	}

	if err := s.receipts.AttachDigest(ctx, stored.ID, digest); err != nil {
		return nil, err
	}
	stored.Digest = digest

	s.logger.Info("receipt issued",
		slog.String("receipt_id", stored.ID),
		slog.String("client_id", stored.ClientID),
		slog.String("number", stored.Number))
	return stored, nil
}
