package receipt

import "time"

// Receipt is an immutable proof-of-submission record. CreatedAt is
// assigned by the persistence layer, not the application clock; the
// digest is attached once during the same create flow and never changes
// afterwards.
type Receipt struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	SubmissionID string    `json:"submission_id"`
	Number       string    `json:"number"`
	Digest       string    `json:"digest,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PolicySnapshot is the slice of a policy row that participates in the
// digest preimage.
type PolicySnapshot struct {
	ID        string
	Number    string
	CreatedAt time.Time
}
