package admin

import (
	"regexp"
	"strings"
)

// Invocation is a planned command: a verb plus the arguments recovered
// from the text.
type Invocation struct {
	Verb string `json:"verb"`
	Args Args   `json:"args"`
}

var (
	uuidRe  = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	tokenRe = regexp.MustCompile(`[A-Za-z0-9_-]+`)
)

var statusWords = map[string]string{
	"verified":    "VERIFIED",
	"rejected":    "REJECTED",
	"discrepancy": "DISCREPANCY",
	"incomplete":  "INCOMPLETE",
	"pending":     "PENDING",
}

// Plan maps free text onto a command invocation by keyword matching.
// It never executes anything; the result goes through Dispatch, which
// enforces the role and argument checks.
func Plan(input string) (*Invocation, error) {
	lower := strings.ToLower(input)
	id := extractID(input)

	switch {
	case strings.Contains(lower, "receipt") &&
		(strings.Contains(lower, "verify") || strings.Contains(lower, "check")):
		return &Invocation{Verb: "verify-receipt", Args: Args{"receipt_id": id}}, nil

	case strings.Contains(lower, "policy") && hasStatusWord(lower):
		return &Invocation{Verb: "set-policy-status", Args: Args{
			"policy_id": id,
			"status":    firstStatusWord(lower),
		}}, nil

	case strings.Contains(lower, "invite"):
		return &Invocation{Verb: "show-invite", Args: Args{"invite_id": id}}, nil

	case strings.Contains(lower, "clients"):
		return &Invocation{Verb: "list-clients", Args: Args{"attorney_id": id}}, nil

	case strings.Contains(lower, "client"):
		return &Invocation{Verb: "show-client", Args: Args{"client_id": id}}, nil
	}
	return nil, ErrUnknownCommand
}

// extractID picks the most identifier-looking token: a UUID if one is
// present, otherwise the first token with a digit long enough not to
// be a word.
func extractID(input string) string {
	if m := uuidRe.FindString(input); m != "" {
		return m
	}
	for _, tok := range tokenRe.FindAllString(input, -1) {
		if len(tok) >= 4 && strings.ContainsAny(tok, "0123456789") {
			return tok
		}
	}
	return ""
}

func hasStatusWord(lower string) bool {
	return firstStatusWord(lower) != ""
}

func firstStatusWord(lower string) string {
	for word, status := range statusWords {
		if strings.Contains(lower, word) {
			return status
		}
	}
	return ""
}
