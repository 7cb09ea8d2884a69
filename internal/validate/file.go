package validate

import (
	"errors"
	"fmt"
	"strings"
)

// File validation errors
var (
	ErrInvalidMIMEType = errors.New("invalid MIME type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileTooSmall    = errors.New("file too small")
)

// MIME types accepted for policy document uploads.
const (
	MIMEApplicationPDF = "application/pdf"
	MIMEImageJPEG      = "image/jpeg"
	MIMEImagePNG       = "image/png"
	MIMEImageTIFF      = "image/tiff"
)

// AllowedDocumentTypes defines MIME types the OCR pipeline can process.
// Policy documents arrive as PDFs or phone-camera scans.
var AllowedDocumentTypes = []string{
	MIMEApplicationPDF,
	MIMEImageJPEG,
	MIMEImagePNG,
	MIMEImageTIFF,
}

// MaxDocumentSizeBytes caps document uploads at 25MB. Scanned policy
// packets run large; anything above this is almost never a single document.
const MaxDocumentSizeBytes = 25 * 1024 * 1024

// FileConstraints defines validation constraints for file uploads.
type FileConstraints struct {
	AllowedTypes []string // Allowed MIME types
	MaxSizeBytes int64    // Maximum file size in bytes
	MinSizeBytes int64    // Minimum file size in bytes (0 = no minimum)
}

// MIMEType validates a MIME type against allowed types.
// Returns the normalized MIME type (lowercased) and an error if invalid.
func MIMEType(mimeType string, allowedTypes []string) (string, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	if mimeType == "" {
		return "", ErrEmpty
	}

	for _, allowed := range allowedTypes {
		if mimeType == strings.ToLower(allowed) {
			return mimeType, nil
		}
	}

	return "", fmt.Errorf("%w: %q not in allowed types", ErrInvalidMIMEType, mimeType)
}

// FileSize validates a file size against constraints.
func FileSize(sizeBytes int64, constraints FileConstraints) error {
	if sizeBytes <= 0 {
		return errors.New("file size must be positive")
	}

	if constraints.MinSizeBytes > 0 && sizeBytes < constraints.MinSizeBytes {
		return fmt.Errorf("%w: got %d bytes, minimum is %d", ErrFileTooSmall, sizeBytes, constraints.MinSizeBytes)
	}

	if constraints.MaxSizeBytes > 0 && sizeBytes > constraints.MaxSizeBytes {
		return fmt.Errorf("%w: got %d bytes, maximum is %d", ErrFileTooLarge, sizeBytes, constraints.MaxSizeBytes)
	}

	return nil
}

// File validates both MIME type and file size.
func File(mimeType string, sizeBytes int64, constraints FileConstraints) (string, error) {
	validatedType, err := MIMEType(mimeType, constraints.AllowedTypes)
	if err != nil {
		return "", err
	}

	if err := FileSize(sizeBytes, constraints); err != nil {
		return "", err
	}

	return validatedType, nil
}

// DocumentFile validates a policy document upload.
func DocumentFile(mimeType string, sizeBytes int64) (string, error) {
	return File(mimeType, sizeBytes, FileConstraints{
		AllowedTypes: AllowedDocumentTypes,
		MaxSizeBytes: MaxDocumentSizeBytes,
		MinSizeBytes: 0,
	})
}
