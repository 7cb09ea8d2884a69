// Package attorney manages attorney accounts, the tenants of the system.
// Every client, policy, and receipt hangs off an attorney.
package attorney

import "time"

// Subscription statuses, driven by Stripe webhook events.
const (
	SubscriptionNone     = "NONE"
	SubscriptionActive   = "ACTIVE"
	SubscriptionPastDue  = "PAST_DUE"
	SubscriptionCanceled = "CANCELED"
)

// Attorney is an account holder.
type Attorney struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	PasswordHash       string    `json:"-"`
	Role               string    `json:"role"`
	StripeCustomerID   string    `json:"-"`
	SubscriptionStatus string    `json:"subscription_status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
