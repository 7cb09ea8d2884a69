package receipt

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NumberPrefix is the human-readable receipt number prefix.
const NumberPrefix = "HV"

// NewNumber generates a human-readable receipt number of the form
// HV-2024-1A2B3C4D. The random suffix is not a security token; the
// digest, not the number, is what binds the receipt to its contents.
func NewNumber(now time.Time) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate receipt number: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", NumberPrefix, now.UTC().Year(), hex.EncodeToString(buf)), nil
}
