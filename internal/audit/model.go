// Package audit provides append-only audit logging of state-changing
// actions for compliance review. Entries are created once and never
// mutated or deleted.
package audit

import "time"

// Action is a kind of audited action. The set is closed: writers must
// use one of the declared constants.
type Action string

// Audited actions.
const (
	ActionClientCreated       Action = "CLIENT_CREATED"
	ActionClientUpdated       Action = "CLIENT_UPDATED"
	ActionPolicyAdded         Action = "POLICY_ADDED"
	ActionPolicyUpdated       Action = "POLICY_UPDATED"
	ActionDocumentUploaded    Action = "DOCUMENT_UPLOADED"
	ActionReceiptIssued       Action = "RECEIPT_ISSUED"
	ActionReceiptVerifyFailed Action = "RECEIPT_VERIFY_FAILED"
	ActionAccessGranted       Action = "ACCESS_GRANTED"
	ActionInviteSent          Action = "INVITE_SENT"
	ActionAdminCommand        Action = "ADMIN_COMMAND"
	ActionSubscriptionUpdated Action = "SUBSCRIPTION_UPDATED"
)

// Valid reports whether a is a known action kind.
func (a Action) Valid() bool {
	switch a {
	case ActionClientCreated, ActionClientUpdated, ActionPolicyAdded,
		ActionPolicyUpdated, ActionDocumentUploaded, ActionReceiptIssued,
		ActionReceiptVerifyFailed, ActionAccessGranted, ActionInviteSent,
		ActionAdminCommand, ActionSubscriptionUpdated:
		return true
	}
	return false
}

// AuditLog is a single audit event.
type AuditLog struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Message   string    `json:"message"`
	ActorID   string    `json:"actor_id,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	PolicyID  string    `json:"policy_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is the input for creating an audit log entry.
type Entry struct {
	Action    Action
	Message   string
	ActorID   string
	ClientID  string
	PolicyID  string
	RequestID string
}
