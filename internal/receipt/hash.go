package receipt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Framing bytes for the canonical serialization. Control characters are
// combined with a decimal length prefix per field so that no field
// content, including one that happens to contain a separator, can
// produce the same preimage as a different field layout.
const (
	fieldSep  = '\x1f'
	recordSep = '\x1e'
)

// timestampLayout is ISO-8601 UTC with millisecond precision. The digest
// is sensitive to the millisecond, so the layout must never change.
const timestampLayout = "2006-01-02T15:04:05.000Z"

var (
	// ErrMalformedInput is returned when a required hash input is missing
	// or empty. Inputs are rejected before hashing rather than coerced.
	ErrMalformedInput = errors.New("malformed hash input")
)

// appendField appends a length-prefixed field to the builder.
func appendField(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(fieldSep)
	b.WriteString(s)
}

// ComputeDigest returns the lowercase hex SHA-256 digest binding a
// receipt to the exact policy set that existed for its client at
// creation time.
//
// createdAt must be the timestamp persisted for the receipt by the
// database, and policies must contain every policy of the client whose
// own created_at is at or before it. The input order of policies does
// not matter: they are sorted by created_at ascending (id ascending on
// ties) before serialization, so the digest is stable regardless of the
// order rows came back from a query.
//
// A nil or empty policy number serializes as an explicit empty field so
// that omitting a field can never collide with a different policy set.
// The function is pure: identical inputs produce the identical digest on
// every call.
func ComputeDigest(receiptID, clientID string, createdAt time.Time, policies []PolicySnapshot) (string, error) {
	if receiptID == "" {
		return "", fmt.Errorf("%w: receipt id is empty", ErrMalformedInput)
	}
	if clientID == "" {
		return "", fmt.Errorf("%w: client id is empty", ErrMalformedInput)
	}
	if createdAt.IsZero() {
		return "", fmt.Errorf("%w: created_at is zero", ErrMalformedInput)
	}
	for i, p := range policies {
		if p.ID == "" {
			return "", fmt.Errorf("%w: policy at index %d has empty id", ErrMalformedInput, i)
		}
	}

	sorted := make([]PolicySnapshot, len(policies))
	copy(sorted, policies)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var b strings.Builder
	appendField(&b, receiptID)
	appendField(&b, clientID)
	appendField(&b, createdAt.UTC().Format(timestampLayout))
	for _, p := range sorted {
		b.WriteByte(recordSep)
		appendField(&b, p.ID)
		appendField(&b, p.Number)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}
