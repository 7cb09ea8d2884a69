// Package mailer sends transactional email. Sends are fire-and-forget
// from the caller's point of view: failures are logged, never fatal to
// the operation that triggered them.
package mailer

import (
	"context"
	"errors"
)

// ErrNoRecipients is returned when an email has no To addresses.
var ErrNoRecipients = errors.New("email has no recipients")

// Email is one outbound message. HTML takes precedence over Text when
// both are set.
type Email struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// NoopMailer discards all email. Used when no mail transport is
// configured.
type NoopMailer struct{}

// Send discards the email.
func (NoopMailer) Send(_ context.Context, _ Email) error { return nil }
