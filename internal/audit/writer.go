package audit

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/heirvault/heirvault/internal/middleware"
)

// writeFailures counts audit appends that could not be persisted. The
// entries are lost; the counter is the signal that compliance review
// has a gap.
var writeFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "heirvault_audit_write_failures_total",
	Help: "Number of audit log entries that failed to persist.",
})

// Record appends an audit entry without failing the caller.
//
// Audit writes accompany a primary operation (intake, receipt issuance,
// admin command) and must never roll it back: failures are logged and
// counted, not returned. Callers that need fail-closed auditing use
// Repository.Append directly.
func Record(ctx context.Context, repo Repository, logger *slog.Logger, entry Entry) {
	if logger == nil {
		logger = slog.Default()
	}
	if repo == nil {
		writeFailures.Inc()
		logger.ErrorContext(ctx, "audit repository is nil, entry dropped",
			slog.String("action", string(entry.Action)))
		return
	}

	if entry.RequestID == "" {
		entry.RequestID = middleware.GetRequestID(ctx)
	}
	if entry.ActorID == "" {
		entry.ActorID = middleware.GetActorID(ctx)
	}

	if _, err := repo.Append(ctx, entry); err != nil {
		writeFailures.Inc()
		logger.ErrorContext(ctx, "failed to append audit log",
			slog.String("action", string(entry.Action)),
			slog.String("error", err.Error()))
	}
}
