// Package validate provides centralized input validation and sanitization
// utilities for the HeirVault API. It includes protection against SQL
// injection, XSS, SSRF, and other common web vulnerabilities.
package validate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrSQLKeyword        = errors.New("string contains SQL keywords")
	ErrEmpty             = errors.New("string is empty")
)

// Common SQL keywords to detect potential SQL injection attempts
// This is a basic defense layer; parameterized queries are the primary defense
var sqlKeywords = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"TRUNCATE", "EXEC", "EXECUTE", "UNION", "JOIN", "WHERE", "FROM",
	"--", "/*", "*/", ";--", "xp_", "sp_",
}

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength        int            // Minimum length (0 = no minimum)
	MaxLength        int            // Maximum length (0 = no maximum)
	AllowedPattern   *regexp.Regexp // Optional regex pattern for allowed characters
	DisallowedWords  []string       // Optional list of disallowed words (case-insensitive)
	CheckSQLKeywords bool           // Whether to check for SQL keywords
	AllowEmpty       bool           // Whether empty strings are allowed
	TrimSpace        bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Character count, not byte count
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}

	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	if constraints.CheckSQLKeywords {
		if err := checkSQLKeywords(s); err != nil {
			return "", err
		}
	}

	if len(constraints.DisallowedWords) > 0 {
		upper := strings.ToUpper(s)
		for _, word := range constraints.DisallowedWords {
			if strings.Contains(upper, strings.ToUpper(word)) {
				return "", fmt.Errorf("string contains disallowed word: %q", word)
			}
		}
	}

	return s, nil
}

// checkSQLKeywords checks if the string contains common SQL keywords.
// This is a basic heuristic check; parameterized queries are the real defense.
func checkSQLKeywords(s string) error {
	upper := strings.ToUpper(s)
	for _, keyword := range sqlKeywords {
		if strings.Contains(upper, keyword) {
			return fmt.Errorf("%w: contains %q", ErrSQLKeyword, keyword)
		}
	}
	return nil
}

// SanitizeHTML escapes HTML special characters to prevent XSS attacks.
// This should be called on all user-generated text that will be displayed in HTML.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// SanitizeString performs both validation and HTML sanitization.
// Returns the sanitized string and an error if validation fails.
func SanitizeString(s string, constraints StringConstraints) (string, error) {
	validated, err := String(s, constraints)
	if err != nil {
		return "", err
	}
	return SanitizeHTML(validated), nil
}

// personNamePattern allows letters (any script), spaces, apostrophes,
// hyphens and periods, covering names like O'Brien or Smith-Jones Jr.
var personNamePattern = regexp.MustCompile(`^[\p{L}][\p{L} '\-\.]*$`)

// PersonName validates a client or insured person name:
// - 1-100 characters
// - Letters, spaces, apostrophe, dash, period only
func PersonName(name string) (string, error) {
	return String(name, StringConstraints{
		MinLength:      1,
		MaxLength:      100,
		AllowedPattern: personNamePattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}

// policyNumberPattern allows the character set carriers actually use:
// alphanumerics plus dash, slash and space.
var policyNumberPattern = regexp.MustCompile(`^[A-Za-z0-9 \-/]+$`)

// PolicyNumber validates a policy number:
// - 1-64 characters
// - Alphanumerics, space, dash, slash
func PolicyNumber(number string) (string, error) {
	return String(number, StringConstraints{
		MinLength:      1,
		MaxLength:      64,
		AllowedPattern: policyNumberPattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}

// CarrierName validates a raw carrier name as typed by an heir:
// - 1-200 characters
// - No SQL keywords
// The value is sanitized because it is rendered back in receipts and
// the dashboard.
func CarrierName(name string) (string, error) {
	return SanitizeString(name, StringConstraints{
		MinLength:        1,
		MaxLength:        200,
		CheckSQLKeywords: true,
		AllowEmpty:       false,
		TrimSpace:        true,
	})
}

// CommandInput validates free-form admin command text:
// - Required (not empty)
// - Max 1000 characters
func CommandInput(input string) (string, error) {
	return String(input, StringConstraints{
		MinLength:  1,
		MaxLength:  1000,
		AllowEmpty: false,
		TrimSpace:  true,
	})
}
