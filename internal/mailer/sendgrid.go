package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridMailer sends email through the SendGrid v3 API.
type SendGridMailer struct {
	client   *sendgrid.Client
	fromName string
	fromMail string
}

// NewSendGridMailer creates a SendGrid mailer.
func NewSendGridMailer(apiKey, fromName, fromMail string) (*SendGridMailer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if fromMail == "" {
		return nil, fmt.Errorf("sendgrid from address is required")
	}
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromMail: fromMail,
	}, nil
}

// Send delivers the email via the SendGrid API.
func (m *SendGridMailer) Send(ctx context.Context, e Email) error {
	if len(e.To) == 0 {
		return ErrNoRecipients
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(m.fromName, m.fromMail))
	message.Subject = e.Subject

	p := mail.NewPersonalization()
	for _, addr := range e.To {
		p.AddTos(mail.NewEmail("", addr))
	}
	message.AddPersonalizations(p)

	if e.Text != "" {
		message.AddContent(mail.NewContent("text/plain", e.Text))
	}
	if e.HTML != "" {
		message.AddContent(mail.NewContent("text/html", e.HTML))
	}

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid api error: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
