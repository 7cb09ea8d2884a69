package mailer

import (
	"fmt"
	"html"
)

// InviteEmail builds the intake invitation sent to a client's relative
// or executor. intakeURL already carries the signed invite token.
func InviteEmail(to, clientName, attorneyName, intakeURL string) Email {
	subject := "Policy information request"
	text := fmt.Sprintf(
		"%s has asked you to submit life-insurance policy details for the estate of %s.\n\n"+
			"Use this link to submit the information:\n%s\n\n"+
			"The link is personal to you and expires. If you were not expecting this request, you can ignore this email.\n",
		attorneyName, clientName, intakeURL)
	htmlBody := fmt.Sprintf(
		`<p>%s has asked you to submit life-insurance policy details for the estate of %s.</p>`+
			`<p><a href="%s">Submit policy information</a></p>`+
			`<p>The link is personal to you and expires. If you were not expecting this request, you can ignore this email.</p>`,
		html.EscapeString(attorneyName), html.EscapeString(clientName), html.EscapeString(intakeURL))
	return Email{To: []string{to}, Subject: subject, Text: text, HTML: htmlBody}
}

// ReceiptEmail confirms a submission and carries the receipt number,
// digest, and public verification link.
func ReceiptEmail(to, receiptNumber, digest, verifyURL string) Email {
	subject := fmt.Sprintf("Submission receipt %s", receiptNumber)
	text := fmt.Sprintf(
		"Your submission was recorded.\n\n"+
			"Receipt number: %s\n"+
			"Integrity digest: %s\n\n"+
			"Anyone can verify this receipt at:\n%s\n",
		receiptNumber, digest, verifyURL)
	htmlBody := fmt.Sprintf(
		`<p>Your submission was recorded.</p>`+
			`<p>Receipt number: <strong>%s</strong><br/>`+
			`Integrity digest: <code>%s</code></p>`+
			`<p><a href="%s">Verify this receipt</a></p>`,
		html.EscapeString(receiptNumber), html.EscapeString(digest), html.EscapeString(verifyURL))
	return Email{To: []string{to}, Subject: subject, Text: text, HTML: htmlBody}
}
