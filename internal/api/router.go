package api

import (
	"net/http"

	"github.com/heirvault/heirvault/internal/middleware"
)

// RouterConfig collects the handlers and cross-cutting dependencies the
// router wires together.
type RouterConfig struct {
	Auth      *AuthHandlers
	Clients   *ClientHandlers
	Policies  *PolicyHandlers
	Intake    *IntakeHandlers
	Receipts  *ReceiptHandlers
	Invites   *InviteHandlers
	Documents *DocumentHandlers
	Admin     *AdminHandlers
	Billing   *BillingHandlers
	Health    *HealthHandlers

	TokenValidator middleware.TokenValidator
	RateLimits     middleware.RateLimitStore
}

// chain applies middlewares right to left, so the first listed runs
// first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// NewRouter builds the route table. Outer middleware (request IDs,
// logging, metrics, CORS) is applied by the caller around the returned
// handler; this keeps per-route concerns here and process-wide concerns
// in main.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	authn := middleware.Authenticate(cfg.TokenValidator)
	inviteAuthn := middleware.AuthenticateInvite(cfg.TokenValidator)

	authLimit := middleware.RateLimiter(cfg.RateLimits, middleware.DefaultAuthLimit(), middleware.IPKeyFunc())
	intakeLimit := middleware.RateLimiter(cfg.RateLimits, middleware.DefaultIntakeLimit(), middleware.IPKeyFunc())
	verifyLimit := middleware.RateLimiter(cfg.RateLimits, middleware.DefaultVerifyLimit(), middleware.IPKeyFunc())
	actorLimit := middleware.RateLimiter(cfg.RateLimits, middleware.DefaultGlobalLimit(), middleware.ActorKeyFunc())

	handle := func(pattern string, h http.HandlerFunc, mws ...func(http.Handler) http.Handler) {
		mux.Handle(pattern, chain(h, mws...))
	}

	// Credential endpoints are limited by IP: they run before any
	// actor exists and are the brute-force target.
	handle("POST /auth/register", cfg.Auth.Register, authLimit)
	handle("POST /auth/login", cfg.Auth.Login, authLimit)
	handle("POST /auth/refresh", cfg.Auth.Refresh, authLimit)

	handle("POST /clients", cfg.Clients.Create, authn, actorLimit)
	handle("GET /clients", cfg.Clients.List, authn, actorLimit)
	handle("GET /clients/{id}", cfg.Clients.Get, authn, actorLimit)
	handle("PUT /clients/{id}", cfg.Clients.Update, authn, actorLimit)

	handle("POST /clients/{id}/policies", cfg.Policies.Create, authn, actorLimit)
	handle("GET /clients/{id}/policies", cfg.Policies.List, authn, actorLimit)
	handle("PATCH /policies/{id}", cfg.Policies.Update, authn, actorLimit)

	// Heir-facing intake: authenticated by invite token, not a session.
	handle("POST /intake", cfg.Intake.Submit, inviteAuthn, intakeLimit)

	handle("GET /receipts/{id}", cfg.Receipts.Get, authn, actorLimit)
	handle("GET /receipts/{id}/pdf", cfg.Receipts.PDF, authn, actorLimit)
	handle("GET /clients/{id}/receipts", cfg.Receipts.ListByClient, authn, actorLimit)

	// Public verification: anyone holding a receipt can check it.
	handle("GET /receipts/{id}/verify", cfg.Receipts.Verify, verifyLimit)

	handle("POST /invites", cfg.Invites.Create, authn, actorLimit)
	handle("POST /invites/{id}/resend", cfg.Invites.Resend, authn, actorLimit)

	handle("POST /documents/presign", cfg.Documents.Presign, authn, actorLimit)
	handle("POST /documents", cfg.Documents.Register, authn, actorLimit)
	handle("GET /documents/{id}", cfg.Documents.Get, authn, actorLimit)

	// Role checks for admin verbs live in the dispatcher: read-only
	// verbs are open to attorneys, mutating ones require admin.
	handle("POST /admin/command", cfg.Admin.Command, authn, actorLimit)
	handle("GET /admin/commands", cfg.Admin.Verbs, authn, actorLimit)
	handle("POST /admin/commands/{verb}", cfg.Admin.Direct, authn, actorLimit)

	handle("POST /billing/checkout", cfg.Billing.Checkout, authn, actorLimit)
	// Stripe authenticates with its signature header, not a bearer
	// token.
	handle("POST /billing/webhook", cfg.Billing.Webhook)

	handle("GET /health/live", cfg.Health.Live)
	handle("GET /health/ready", cfg.Health.Ready)

	return mux
}
