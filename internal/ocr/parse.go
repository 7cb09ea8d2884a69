package ocr

import (
	"regexp"
	"strings"

	"github.com/heirvault/heirvault/internal/document"
)

// Parsing heuristics for scanned policy documents. OCR output is noisy,
// so each field is matched independently and missing fields stay nil.

var (
	// Label is case-insensitive; the value itself must look like a real
	// policy number (uppercase or digits), which filters OCR noise.
	policyNumberRe = regexp.MustCompile(`(?i:policy\s*(?:no\.?|number|#)\s*[:.]?\s*)([A-Z0-9][A-Z0-9\-/]{2,31})`)
	insuredNameRe  = regexp.MustCompile(`(?i)(?:name\s+of\s+)?insured(?:\s+name)?\s*[:.]?\s*([\p{L}][\p{L} '\-.]{1,99})`)
	carrierLineRe  = regexp.MustCompile(`(?i)^([\p{L}0-9][\p{L}0-9 &'\-.,]{2,120}?(?:life|insurance|assurance|mutual)(?:[\p{L}0-9 &'\-.,]{0,40})?)$`)
)

// ParseFields scans raw OCR text for policy number, carrier name, and
// insured name.
func ParseFields(text string) document.ExtractedFields {
	var fields document.ExtractedFields

	if m := policyNumberRe.FindStringSubmatch(text); m != nil {
		v := strings.TrimSpace(m[1])
		fields.PolicyNumber = &v
	}

	if m := insuredNameRe.FindStringSubmatch(text); m != nil {
		v := trimName(m[1])
		if v != "" {
			fields.InsuredName = &v
		}
	}

	// Carrier names usually appear as a standalone letterhead line
	// containing an insurance keyword. Take the first such line.
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if m := carrierLineRe.FindStringSubmatch(line); m != nil {
			v := strings.TrimSpace(strings.Trim(m[1], ".,"))
			fields.CarrierName = &v
			break
		}
	}

	return fields
}

// trimName cuts a matched name at the first OCR artifact: runs of
// spaces or a trailing label that bled into the capture.
func trimName(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "  "); i >= 0 {
		s = s[:i]
	}
	// Field labels on the same line ("Insured: Jane Doe Date of Birth")
	// bleed into the capture; cut at common label starts.
	lower := strings.ToLower(s)
	for _, label := range []string{" date of", " policy", " address", " ssn"} {
		if i := strings.Index(lower, label); i >= 0 {
			s = s[:i]
			break
		}
	}
	return strings.TrimSpace(s)
}
