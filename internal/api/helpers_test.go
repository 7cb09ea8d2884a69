package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/heirvault/heirvault/internal/admin"
	"github.com/heirvault/heirvault/internal/attorney"
	"github.com/heirvault/heirvault/internal/audit"
	"github.com/heirvault/heirvault/internal/auth"
	"github.com/heirvault/heirvault/internal/billing"
	"github.com/heirvault/heirvault/internal/client"
	"github.com/heirvault/heirvault/internal/document"
	"github.com/heirvault/heirvault/internal/insurer"
	"github.com/heirvault/heirvault/internal/invite"
	"github.com/heirvault/heirvault/internal/mailer"
	"github.com/heirvault/heirvault/internal/middleware"
	"github.com/heirvault/heirvault/internal/policy"
	"github.com/heirvault/heirvault/internal/receipt"
	"github.com/heirvault/heirvault/internal/submission"
)

// testEnv wires the full route table over in-memory repositories.
type testEnv struct {
	handler http.Handler
	jwt     *auth.JWTService

	attorneys   *attorney.InMemoryRepository
	clients     *client.InMemoryRepository
	policies    *policy.InMemoryRepository
	insurers    *insurer.InMemoryRepository
	invites     *invite.InMemoryRepository
	submissions *submission.InMemoryRepository
	receipts    *receipt.InMemoryRepository
	documents   *document.InMemoryRepository
	audits      *audit.InMemoryRepository
}

type stubStripeClient struct {
	url string
	err error
}

func (s *stubStripeClient) CreateCheckoutSession(_ *billing.CheckoutParams) (*stripe.CheckoutSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.CheckoutSession{URL: s.url}, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := newTestLogger()

	env := &testEnv{
		jwt:         auth.NewJWTService("test-secret"),
		attorneys:   attorney.NewInMemoryRepository(),
		clients:     client.NewInMemoryRepository(),
		policies:    policy.NewInMemoryRepository(),
		insurers:    insurer.NewInMemoryRepository(),
		invites:     invite.NewInMemoryRepository(),
		submissions: submission.NewInMemoryRepository(),
		receipts:    receipt.NewInMemoryRepository(),
		documents:   document.NewInMemoryRepository(),
		audits:      audit.NewInMemoryRepository(),
	}

	source := NewPolicySource(env.policies)
	issuer := receipt.NewIssuer(env.receipts, source, logger)
	verifier := receipt.NewVerifier(env.receipts, source, logger)

	clients := NewClientHandlers(env.clients, env.audits, logger)
	policies := NewPolicyHandlers(env.policies, env.insurers, clients, env.audits, logger)
	intake := NewIntakeHandlers(env.invites, env.clients, env.policies, env.insurers,
		env.submissions, issuer, env.audits, mailer.NoopMailer{}, "https://verify.example.com", logger)
	receipts := NewReceiptHandlers(env.receipts, verifier, clients, env.policies, env.insurers,
		nil, env.audits, "https://verify.example.com", logger)
	invites := NewInviteHandlers(env.invites, env.attorneys, clients, env.jwt, env.audits,
		mailer.NoopMailer{}, "https://app.example.com", logger)
	documents := NewDocumentHandlers(env.documents, nil, nil, clients, env.audits, logger)

	dispatcher := admin.NewDispatcher(logger)
	if err := admin.RegisterBuiltins(dispatcher, admin.Deps{
		Clients:  env.clients,
		Policies: env.policies,
		Invites:  env.invites,
		Verifier: verifier,
	}); err != nil {
		t.Fatalf("RegisterBuiltins() error = %v", err)
	}

	billingSvc := billing.NewService(&stubStripeClient{url: "https://checkout.stripe.com/test"},
		billing.NewInMemoryEventRepository(), env.attorneys,
		billing.ServiceConfig{PriceID: "price_test"}, logger)

	mux := NewRouter(RouterConfig{
		Auth:      NewAuthHandlers(env.attorneys, env.jwt, logger),
		Clients:   clients,
		Policies:  policies,
		Intake:    intake,
		Receipts:  receipts,
		Invites:   invites,
		Documents: documents,
		Admin:     NewAdminHandlers(dispatcher, env.audits, logger),
		Billing:   NewBillingHandlers(billingSvc, "whsec_test", logger),
		Health:    NewHealthHandlers(nil, nil, logger),

		TokenValidator: env.jwt,
		RateLimits:     middleware.NewInMemoryRateLimitStore(),
	})
	env.handler = middleware.RequestID(middleware.Logging(logger)(mux))
	return env
}

// seedAttorney creates an account directly and returns it with a valid
// access token.
func (env *testEnv) seedAttorney(t *testing.T, email, role string) (*attorney.Attorney, string) {
	t.Helper()
	hash, err := auth.HashPassword("hunter2-secret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	acct, err := env.attorneys.Insert(t.Context(), &attorney.Attorney{
		Email:        email,
		Name:         "Test Attorney",
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		t.Fatalf("Insert attorney: %v", err)
	}
	token, err := env.jwt.GenerateAccessToken(acct.ID, acct.Role)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return acct, token
}

func (env *testEnv) seedClient(t *testing.T, attorneyID string) *client.Client {
	t.Helper()
	c, err := env.clients.Insert(t.Context(), &client.Client{
		AttorneyID: attorneyID,
		FirstName:  "Jane",
		LastName:   "Doe",
	})
	if err != nil {
		t.Fatalf("Insert client: %v", err)
	}
	return c
}

// do issues a request against the route table and returns the recorder.
func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a recorded JSON body into out.
func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
	}
}

// errorCode extracts the code from the error envelope.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, rec, &resp)
	return resp.Error.Code
}

// mintInvite seeds an invite row and returns it with a matching token.
func (env *testEnv) mintInvite(t *testing.T, attorneyID, clientID string, expiresAt time.Time) (*invite.Invite, string) {
	t.Helper()
	inv, err := env.invites.Insert(t.Context(), &invite.Invite{
		ClientID:   clientID,
		AttorneyID: attorneyID,
		Email:      "heir@example.com",
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		t.Fatalf("Insert invite: %v", err)
	}
	token, err := env.jwt.GenerateInviteToken(inv.ID, inv.ClientID, inv.ExpiresAt)
	if err != nil {
		t.Fatalf("GenerateInviteToken() error = %v", err)
	}
	return inv, token
}
