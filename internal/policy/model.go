// Package policy provides models and repositories for life-insurance
// policy records attached to a client.
package policy

import "time"

// Status is the verification status of a policy record.
type Status string

// Verification statuses. A policy enters PENDING at intake and moves to
// a terminal status once an attorney or admin reviews it.
const (
	StatusPending     Status = "PENDING"
	StatusVerified    Status = "VERIFIED"
	StatusDiscrepancy Status = "DISCREPANCY"
	StatusIncomplete  Status = "INCOMPLETE"
	StatusRejected    Status = "REJECTED"
)

// Valid reports whether s is a known verification status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusDiscrepancy, StatusIncomplete, StatusRejected:
		return true
	}
	return false
}

// Policy is a life-insurance policy associated with a client. At most
// one of InsurerID and RawCarrierName is meaningful for display: the
// raw carrier name is kept when intake could not resolve the carrier to
// a known insurer, and cleared once it is resolved.
type Policy struct {
	ID             string    `json:"id"`
	ClientID       string    `json:"client_id"`
	InsurerID      *string   `json:"insurer_id,omitempty"`
	RawCarrierName *string   `json:"raw_carrier_name,omitempty"`
	Number         string    `json:"number"`
	Type           string    `json:"type,omitempty"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CarrierLabel returns the display name for the policy's carrier:
// the resolved insurer name when known, otherwise the raw carrier
// string captured at intake, otherwise empty.
func (p *Policy) CarrierLabel(insurerName string) string {
	if p.InsurerID != nil && insurerName != "" {
		return insurerName
	}
	if p.RawCarrierName != nil {
		return *p.RawCarrierName
	}
	return ""
}
