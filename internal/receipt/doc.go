// Package receipt implements proof-of-submission receipts and the
// tamper-evident digest that binds a receipt to the set of policies a
// client had when the receipt was created.
//
// The digest is a SHA-256 over a canonical serialization of the receipt
// id, client id, the receipt's creation timestamp, and every policy row
// belonging to the client whose created_at is at or before that
// timestamp, ordered by created_at then id.
//
// Known fragility: the creation timestamp used for the policy window is
// the one assigned by the database (created_at DEFAULT now()), read back
// via RETURNING immediately after the insert. Using an application clock
// instead would let clock skew between the API and the database select
// different policy sets at generation and verification time, silently
// breaking digest reproducibility. Callers must always hash with the
// persisted timestamp, never a locally computed one.
package receipt
