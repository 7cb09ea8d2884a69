package validate

import (
	"errors"
	"net"
	"strings"
	"testing"
)

func parseIP(t *testing.T, s string) net.IP {
	t.Helper()
	ip := net.ParseIP(s)
	if ip == nil {
		t.Fatalf("net.ParseIP(%q) failed", s)
	}
	return ip
}

func TestEmail(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"valid", "attorney@firm.example.com", "attorney@firm.example.com", nil},
		{"uppercase normalized", "Attorney@Firm.COM", "attorney@firm.com", nil},
		{"whitespace trimmed", "  a@b.co  ", "a@b.co", nil},
		{"empty", "", "", ErrEmpty},
		{"missing at", "attorney.firm.com", "", ErrInvalidEmail},
		{"missing domain dot", "a@localhost", "", ErrInvalidEmail},
		{"too long", strings.Repeat("a", 250) + "@b.co", "", ErrStringTooLong},
		{"local part too long", strings.Repeat("a", 65) + "@firm.com", "", ErrStringTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Email(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Email(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPersonName(t *testing.T) {
	valid := []string{"Jane Doe", "O'Brien", "Smith-Jones Jr.", "Søren Ærø"}
	for _, name := range valid {
		if _, err := PersonName(name); err != nil {
			t.Errorf("PersonName(%q) error = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "  ", "Jane<script>", "123", strings.Repeat("a", 101)}
	for _, name := range invalid {
		if _, err := PersonName(name); err == nil {
			t.Errorf("PersonName(%q) should fail", name)
		}
	}
}

func TestPolicyNumber(t *testing.T) {
	valid := []string{"POL-100", "ABC 123/456", "x"}
	for _, number := range valid {
		if _, err := PolicyNumber(number); err != nil {
			t.Errorf("PolicyNumber(%q) error = %v, want nil", number, err)
		}
	}

	invalid := []string{"", "POL_100", "POL;DROP", strings.Repeat("9", 65)}
	for _, number := range invalid {
		if _, err := PolicyNumber(number); err == nil {
			t.Errorf("PolicyNumber(%q) should fail", number)
		}
	}
}

func TestCarrierName(t *testing.T) {
	got, err := CarrierName("Acme Life & Casualty")
	if err != nil {
		t.Fatalf("CarrierName() error = %v", err)
	}
	if got != "Acme Life &amp; Casualty" {
		t.Errorf("CarrierName() = %q, want HTML-escaped value", got)
	}

	if _, err := CarrierName("Acme; DROP TABLE policies"); !errors.Is(err, ErrSQLKeyword) {
		t.Errorf("CarrierName(SQL) error = %v, want ErrSQLKeyword", err)
	}
}

func TestString_Constraints(t *testing.T) {
	constraints := StringConstraints{MinLength: 2, MaxLength: 5, TrimSpace: true}

	if _, err := String("a", constraints); !errors.Is(err, ErrStringTooShort) {
		t.Errorf("short string error = %v, want ErrStringTooShort", err)
	}
	if _, err := String("abcdef", constraints); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("long string error = %v, want ErrStringTooLong", err)
	}
	if got, err := String("  abc  ", constraints); err != nil || got != "abc" {
		t.Errorf("String() = %q, %v; want trimmed abc", got, err)
	}

	// Rune count, not byte count
	if _, err := String("日本語", constraints); err != nil {
		t.Errorf("multibyte string error = %v, want nil", err)
	}
}

func TestDocumentFile(t *testing.T) {
	if _, err := DocumentFile("application/pdf", 1024); err != nil {
		t.Errorf("pdf upload error = %v, want nil", err)
	}
	if got, err := DocumentFile("  IMAGE/JPEG ", 1024); err != nil || got != "image/jpeg" {
		t.Errorf("DocumentFile() = %q, %v; want normalized image/jpeg", got, err)
	}
	if _, err := DocumentFile("video/mp4", 1024); !errors.Is(err, ErrInvalidMIMEType) {
		t.Errorf("video upload error = %v, want ErrInvalidMIMEType", err)
	}
	if _, err := DocumentFile("application/pdf", MaxDocumentSizeBytes+1); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("oversized upload error = %v, want ErrFileTooLarge", err)
	}
	if _, err := DocumentFile("application/pdf", 0); err == nil {
		t.Error("zero-size upload should fail")
	}
}

func TestURL(t *testing.T) {
	if _, err := DocumentSourceURL("https://carrier.example.com/policy.pdf"); err != nil {
		t.Errorf("public https URL error = %v, want nil", err)
	}
	if _, err := DocumentSourceURL("http://carrier.example.com/policy.pdf"); !errors.Is(err, ErrDisallowedScheme) {
		t.Errorf("http URL error = %v, want ErrDisallowedScheme", err)
	}
	if _, err := DocumentSourceURL("https://localhost/x"); !errors.Is(err, ErrSSRFRisk) {
		t.Errorf("localhost URL error = %v, want ErrSSRFRisk", err)
	}
	if _, err := DocumentSourceURL(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty URL error = %v, want ErrEmpty", err)
	}
	if _, err := DocumentSourceURL("https://"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("hostless URL error = %v, want ErrInvalidURL", err)
	}

	// Internal endpoints may be http and private.
	if _, err := ServiceURL("http://ocr.svc.cluster.local:8080"); err != nil {
		t.Errorf("internal service URL error = %v, want nil", err)
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{"10.1.2.3", "172.16.0.1", "192.168.1.1", "169.254.0.5", "127.0.0.1"}
	for _, addr := range private {
		if !isPrivateIP(parseIP(t, addr)) {
			t.Errorf("isPrivateIP(%s) = false, want true", addr)
		}
	}
	public := []string{"8.8.8.8", "93.184.216.34"}
	for _, addr := range public {
		if isPrivateIP(parseIP(t, addr)) {
			t.Errorf("isPrivateIP(%s) = true, want false", addr)
		}
	}
}

func TestCommandInput(t *testing.T) {
	if _, err := CommandInput("resend invite for client c1"); err != nil {
		t.Errorf("CommandInput() error = %v, want nil", err)
	}
	if _, err := CommandInput(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("CommandInput(empty) error = %v, want ErrEmpty", err)
	}
	if _, err := CommandInput(strings.Repeat("x", 1001)); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("CommandInput(long) error = %v, want ErrStringTooLong", err)
	}
}
