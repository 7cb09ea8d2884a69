package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(receiptsIssued)
	IncReceiptsIssued()
	if got := testutil.ToFloat64(receiptsIssued); got != before+1 {
		t.Errorf("receiptsIssued = %v, want %v", got, before+1)
	}

	beforeMatch := testutil.ToFloat64(verifications.WithLabelValues(VerifyOutcomeMatch))
	IncVerification(VerifyOutcomeMatch)
	IncVerification(VerifyOutcomeMismatch)
	if got := testutil.ToFloat64(verifications.WithLabelValues(VerifyOutcomeMatch)); got != beforeMatch+1 {
		t.Errorf("verifications{match} = %v, want %v", got, beforeMatch+1)
	}
	if got := testutil.ToFloat64(verifications.WithLabelValues(VerifyOutcomeMismatch)); got < 1 {
		t.Errorf("verifications{mismatch} = %v, want >= 1", got)
	}
}
