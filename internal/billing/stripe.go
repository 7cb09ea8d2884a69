// Package billing handles attorney subscription billing through Stripe
// Checkout and webhook ingestion.
package billing

import (
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
)

// CheckoutParams are the inputs for creating a subscription Checkout
// Session for an attorney.
type CheckoutParams struct {
	AttorneyID    string
	AttorneyEmail string
	PriceID       string
	SuccessURL    string
	CancelURL     string
}

// Client is an interface for Stripe operations to enable testing with
// mocks.
type Client interface {
	CreateCheckoutSession(params *CheckoutParams) (*stripe.CheckoutSession, error)
}

// StripeClient implements the Client interface using the real Stripe SDK.
type StripeClient struct{}

// NewStripeClient creates a new Stripe client with the given API key.
func NewStripeClient(apiKey string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{}
}

// CreateCheckoutSession creates a subscription-mode Checkout Session.
// The attorney id rides along as the client reference so the webhook
// can tie the completed session back to the account.
func (c *StripeClient) CreateCheckoutSession(params *CheckoutParams) (*stripe.CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(params.SuccessURL),
		CancelURL:         stripe.String(params.CancelURL),
		CustomerEmail:     stripe.String(params.AttorneyEmail),
		ClientReferenceID: stripe.String(params.AttorneyID),
	}
	return session.New(sessionParams)
}
