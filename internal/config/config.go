// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/heirvault/heirvault/internal/validate"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// JWT Authentication. The previous secret is set during rotation so
	// tokens signed before the rotation stay valid until expiry.
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Public base URL of the verification page, embedded in receipt
	// PDFs and QR codes.
	VerifyBaseURL string `koanf:"verify_base_url"`

	// CORS
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Stripe (attorney subscriptions)
	StripeAPIKey          string `koanf:"stripe_api_key"`
	StripeWebhookSecret   string `koanf:"stripe_webhook_secret"`
	StripePriceID         string `koanf:"stripe_price_id"`
	StripeCheckoutSuccess string `koanf:"stripe_checkout_success_url"`
	StripeCheckoutCancel  string `koanf:"stripe_checkout_cancel_url"`

	// S3-compatible object storage for policy documents
	S3BucketName      string `koanf:"s3_bucket_name"`
	S3Region          string `koanf:"s3_region"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`
	S3Endpoint        string `koanf:"s3_endpoint"` // Optional: set for MinIO/R2
	S3MaxUploadSizeMB int    `koanf:"s3_max_upload_size_mb"`

	// OCR service
	OCREndpoint string `koanf:"ocr_endpoint"`

	// Mail delivery. SendGrid is used when the API key is set,
	// otherwise SMTP.
	SendGridAPIKey string `koanf:"sendgrid_api_key"`
	SMTPHost       string `koanf:"smtp_host"`
	SMTPPort       int    `koanf:"smtp_port"`
	SMTPUsername   string `koanf:"smtp_username"`
	SMTPPassword   string `koanf:"smtp_password"`
	MailFrom       string `koanf:"mail_from"`

	// PDF rendering
	ChromiumPath string `koanf:"chromium_path"` // Optional: custom headless Chromium binary

	// Redis (distributed rate limiting). Optional: in-memory buckets
	// are used when unset.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`

	// OpenTelemetry. Tracing is disabled when the endpoint is unset.
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL         = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret           = errors.New("JWT_SECRET is required")
	ErrMissingStripeWebhookSecret = errors.New("STRIPE_WEBHOOK_SECRET is required when Stripe is configured")
	ErrMissingStripePriceID       = errors.New("STRIPE_PRICE_ID is required when Stripe is configured")
	ErrMissingS3BucketName        = errors.New("S3_BUCKET_NAME is required when S3 is configured")
	ErrMissingS3AccessKeyID       = errors.New("S3_ACCESS_KEY_ID is required when S3 is configured")
	ErrMissingS3SecretAccessKey   = errors.New("S3_SECRET_ACCESS_KEY is required when S3 is configured")
	ErrMissingSMTPHost            = errors.New("SMTP_HOST or SENDGRID_API_KEY is required when mail is configured")
	ErrMissingMailFrom            = errors.New("MAIL_FROM is required when mail delivery is configured")
	ErrInvalidPort                = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultS3MaxUploadSizeMB = 25
	DefaultSMTPPort          = 587
	DefaultVerifyBaseURL     = "http://localhost:8080"
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try HEIRVAULT_PORT first, then PORT
	port, portErr := getEnvIntOrDefaultMulti([]string{"HEIRVAULT_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	maxUploadSize, uploadSizeErr := getEnvIntOrDefault("S3_MAX_UPLOAD_SIZE_MB", k.Int("s3_max_upload_size_mb"), DefaultS3MaxUploadSizeMB)
	if uploadSizeErr != nil {
		loadErrs = append(loadErrs, uploadSizeErr)
	}

	smtpPort, smtpPortErr := getEnvIntOrDefault("SMTP_PORT", k.Int("smtp_port"), DefaultSMTPPort)
	if smtpPortErr != nil {
		loadErrs = append(loadErrs, smtpPortErr)
	}

	// CORS origins: comma-separated env var overrides a YAML list.
	corsOrigins := k.Strings("cors_allowed_origins")
	if val := os.Getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		corsOrigins = nil
		for _, origin := range strings.Split(val, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				corsOrigins = append(corsOrigins, origin)
			}
		}
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:               port,
		Env:                getEnvOrDefaultMulti([]string{"HEIRVAULT_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:        getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		JWTSecret:          getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:  getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		VerifyBaseURL:      getEnvOrDefault("VERIFY_BASE_URL", k.String("verify_base_url"), DefaultVerifyBaseURL),
		CORSAllowedOrigins: corsOrigins,

		StripeAPIKey:          getEnvOrKoanf("STRIPE_API_KEY", k, "stripe_api_key"),
		StripeWebhookSecret:   getEnvOrKoanf("STRIPE_WEBHOOK_SECRET", k, "stripe_webhook_secret"),
		StripePriceID:         getEnvOrKoanf("STRIPE_PRICE_ID", k, "stripe_price_id"),
		StripeCheckoutSuccess: getEnvOrKoanf("STRIPE_CHECKOUT_SUCCESS_URL", k, "stripe_checkout_success_url"),
		StripeCheckoutCancel:  getEnvOrKoanf("STRIPE_CHECKOUT_CANCEL_URL", k, "stripe_checkout_cancel_url"),

		S3BucketName:      getEnvOrKoanf("S3_BUCKET_NAME", k, "s3_bucket_name"),
		S3Region:          getEnvOrDefault("S3_REGION", k.String("s3_region"), "us-east-1"),
		S3AccessKeyID:     getEnvOrKoanf("S3_ACCESS_KEY_ID", k, "s3_access_key_id"),
		S3SecretAccessKey: getEnvOrKoanf("S3_SECRET_ACCESS_KEY", k, "s3_secret_access_key"),
		S3Endpoint:        getEnvOrKoanf("S3_ENDPOINT", k, "s3_endpoint"),
		S3MaxUploadSizeMB: maxUploadSize,

		OCREndpoint: getEnvOrKoanf("OCR_ENDPOINT", k, "ocr_endpoint"),

		SendGridAPIKey: getEnvOrKoanf("SENDGRID_API_KEY", k, "sendgrid_api_key"),
		SMTPHost:       getEnvOrKoanf("SMTP_HOST", k, "smtp_host"),
		SMTPPort:       smtpPort,
		SMTPUsername:   getEnvOrKoanf("SMTP_USERNAME", k, "smtp_username"),
		SMTPPassword:   getEnvOrKoanf("SMTP_PASSWORD", k, "smtp_password"),
		MailFrom:       getEnvOrKoanf("MAIL_FROM", k, "mail_from"),

		ChromiumPath: getEnvOrKoanf("CHROMIUM_PATH", k, "chromium_path"),

		RedisAddr:     getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		RedisPassword: getEnvOrKoanf("REDIS_PASSWORD", k, "redis_password"),

		OTLPEndpoint: getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
//
// Stripe, S3 and mail are optional subsystems: each is validated only
// when partially configured, so a half-configured group fails fast
// instead of failing at first use.
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}

	if c.StripeAPIKey != "" {
		if c.StripeWebhookSecret == "" {
			errs = append(errs, ErrMissingStripeWebhookSecret)
		}
		if c.StripePriceID == "" {
			errs = append(errs, ErrMissingStripePriceID)
		}
	}

	if c.S3BucketName != "" || c.S3AccessKeyID != "" || c.S3SecretAccessKey != "" {
		if c.S3BucketName == "" {
			errs = append(errs, ErrMissingS3BucketName)
		}
		if c.S3AccessKeyID == "" {
			errs = append(errs, ErrMissingS3AccessKeyID)
		}
		if c.S3SecretAccessKey == "" {
			errs = append(errs, ErrMissingS3SecretAccessKey)
		}
	}

	mailConfigured := c.SendGridAPIKey != "" || c.SMTPHost != "" || c.SMTPUsername != ""
	if mailConfigured {
		if c.SendGridAPIKey == "" && c.SMTPHost == "" {
			errs = append(errs, ErrMissingSMTPHost)
		}
		if c.MailFrom == "" {
			errs = append(errs, ErrMissingMailFrom)
		}
	}

	if c.VerifyBaseURL != "" {
		if _, err := validate.ServiceURL(c.VerifyBaseURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid VERIFY_BASE_URL: %w", err))
		}
	}
	if c.OCREndpoint != "" {
		if _, err := validate.ServiceURL(c.OCREndpoint); err != nil {
			errs = append(errs, fmt.Errorf("invalid OCR_ENDPOINT: %w", err))
		}
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"database_url":          maskDatabaseURL(c.DatabaseURL),
		"jwt_secret":            maskSecret(c.JWTSecret),
		"jwt_previous_secret":   maskSecret(c.JWTPreviousSecret),
		"verify_base_url":       c.VerifyBaseURL,
		"cors_allowed_origins":  strings.Join(c.CORSAllowedOrigins, ","),
		"stripe_api_key":        maskStripeKey(c.StripeAPIKey),
		"stripe_webhook_secret": maskSecret(c.StripeWebhookSecret),
		"stripe_price_id":       c.StripePriceID,
		"s3_bucket_name":        c.S3BucketName,
		"s3_region":             c.S3Region,
		"s3_access_key_id":      maskSecret(c.S3AccessKeyID),
		"s3_secret_access_key":  maskSecret(c.S3SecretAccessKey),
		"s3_endpoint":           c.S3Endpoint,
		"s3_max_upload_size_mb": fmt.Sprintf("%d", c.S3MaxUploadSizeMB),
		"ocr_endpoint":          c.OCREndpoint,
		"sendgrid_api_key":      maskSecret(c.SendGridAPIKey),
		"smtp_host":             c.SMTPHost,
		"smtp_port":             fmt.Sprintf("%d", c.SMTPPort),
		"smtp_username":         maskSecret(c.SMTPUsername),
		"smtp_password":         maskSecret(c.SMTPPassword),
		"mail_from":             c.MailFrom,
		"chromium_path":         c.ChromiumPath,
		"redis_addr":            c.RedisAddr,
		"redis_password":        maskSecret(c.RedisPassword),
		"otlp_endpoint":         c.OTLPEndpoint,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskStripeKey masks a Stripe API key, preserving the prefix (sk_live_, sk_test_, etc.)
func maskStripeKey(s string) string {
	if s == "" {
		return "<not set>"
	}

	parts := strings.SplitN(s, "_", 3)
	if len(parts) == 3 {
		return parts[0] + "_" + parts[1] + "_****"
	}

	return maskSecret(s)
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
