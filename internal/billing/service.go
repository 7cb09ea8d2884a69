package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v81"

	"github.com/heirvault/heirvault/internal/attorney"
	"github.com/heirvault/heirvault/internal/audit"
)

// ServiceConfig holds the Checkout settings.
type ServiceConfig struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Service creates Checkout Sessions and applies webhook events to
// attorney subscription state.
type Service struct {
	stripe    Client
	events    EventRepository
	attorneys attorney.Repository
	audits    audit.Repository
	cfg       ServiceConfig
	logger    *slog.Logger
}

// NewService creates a billing service.
func NewService(client Client, events EventRepository, attorneys attorney.Repository, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		stripe:    client,
		events:    events,
		attorneys: attorneys,
		cfg:       cfg,
		logger:    logger,
	}
}

// WithAudits attaches an audit sink for subscription state changes.
func (s *Service) WithAudits(repo audit.Repository) *Service {
	s.audits = repo
	return s
}

// CreateCheckout creates a subscription Checkout Session for the
// attorney and returns the hosted payment page URL.
func (s *Service) CreateCheckout(ctx context.Context, attorneyID string) (string, error) {
	a, err := s.attorneys.GetByID(ctx, attorneyID)
	if err != nil {
		return "", err
	}

	sess, err := s.stripe.CreateCheckoutSession(&CheckoutParams{
		AttorneyID:    a.ID,
		AttorneyEmail: a.Email,
		PriceID:       s.cfg.PriceID,
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess.URL, nil
}

// HandleEvent applies one verified webhook event. Replayed deliveries
// are acknowledged without side effects. Unknown event types are
// logged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	if err := s.events.RecordEvent(ctx, event.ID, string(event.Type)); err != nil {
		if errors.Is(err, ErrEventAlreadyProcessed) {
			s.logger.Info("webhook event already processed, ignoring",
				slog.String("event_id", event.ID))
			return nil
		}
		return err
	}

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "invoice.payment_failed":
		return s.handlePaymentFailed(ctx, event)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		s.logger.Info("ignoring unhandled webhook event type",
			slog.String("event_type", string(event.Type)),
			slog.String("event_id", event.ID))
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}
	if sess.ClientReferenceID == "" {
		s.logger.Warn("checkout session without client reference",
			slog.String("session_id", sess.ID))
		return nil
	}
	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	if err := s.attorneys.UpdateSubscription(ctx, sess.ClientReferenceID, customerID, attorney.SubscriptionActive); err != nil {
		return fmt.Errorf("failed to activate subscription: %w", err)
	}
	s.logger.Info("subscription activated",
		slog.String("attorney_id", sess.ClientReferenceID),
		slog.String("stripe_customer_id", customerID))
	s.recordSubscriptionChange(ctx, sess.ClientReferenceID, attorney.SubscriptionActive)
	return nil
}

func (s *Service) handlePaymentFailed(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return fmt.Errorf("failed to parse invoice: %w", err)
	}
	if inv.Customer == nil {
		return nil
	}
	return s.setStatusByCustomer(ctx, inv.Customer.ID, attorney.SubscriptionPastDue)
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}
	if sub.Customer == nil {
		return nil
	}
	return s.setStatusByCustomer(ctx, sub.Customer.ID, mapSubscriptionStatus(sub.Status))
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}
	if sub.Customer == nil {
		return nil
	}
	return s.setStatusByCustomer(ctx, sub.Customer.ID, attorney.SubscriptionCanceled)
}

func (s *Service) setStatusByCustomer(ctx context.Context, customerID, status string) error {
	a, err := s.attorneys.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, attorney.ErrAttorneyNotFound) {
			// Events can arrive for customers created outside this
			// system (test mode, manual dashboard actions).
			s.logger.Warn("webhook for unknown stripe customer",
				slog.String("stripe_customer_id", customerID))
			return nil
		}
		return err
	}
	if err := s.attorneys.UpdateSubscription(ctx, a.ID, customerID, status); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	s.logger.Info("subscription status updated",
		slog.String("attorney_id", a.ID),
		slog.String("status", status))
	s.recordSubscriptionChange(ctx, a.ID, status)
	return nil
}

func (s *Service) recordSubscriptionChange(ctx context.Context, attorneyID, status string) {
	if s.audits == nil {
		return
	}
	audit.Record(ctx, s.audits, s.logger, audit.Entry{
		Action:  audit.ActionSubscriptionUpdated,
		Message: "subscription status set to " + status,
		ActorID: attorneyID,
	})
}

// mapSubscriptionStatus translates a Stripe subscription status into
// the account-level status.
func mapSubscriptionStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return attorney.SubscriptionActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return attorney.SubscriptionPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return attorney.SubscriptionCanceled
	default:
		return attorney.SubscriptionPastDue
	}
}
