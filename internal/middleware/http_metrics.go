// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics. This maps paths like /clients/123 to /clients/{id}.
func normalizePath(path string) string {
	// Exact matches for static routes (no normalization needed)
	staticRoutes := map[string]bool{
		"/":                  true,
		"/auth/login":        true,
		"/auth/refresh":      true,
		"/clients":           true,
		"/intake":            true,
		"/invites":           true,
		"/documents":         true,
		"/documents/presign": true,
		"/admin/command":     true,
		"/billing/checkout":  true,
		"/billing/webhook":   true,
		"/health/live":       true,
		"/health/ready":      true,
		"/metrics":           true,
	}

	if staticRoutes[path] {
		return path
	}

	// Pattern-based normalization for dynamic routes
	// Handle specific known patterns first for accuracy

	// /clients/{id} and /clients/{id}/policies
	if strings.HasPrefix(path, "/clients/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] == "policies" {
			return "/clients/{id}/policies"
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/clients/{id}"
		}
	}

	// /policies/{id}
	if strings.HasPrefix(path, "/policies/") {
		parts := strings.Split(path, "/")
		if len(parts) == 3 && parts[2] != "" {
			return "/policies/{id}"
		}
	}

	// /receipts/{id}, /receipts/{id}/verify, /receipts/{id}/pdf
	if strings.HasPrefix(path, "/receipts/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && (parts[3] == "verify" || parts[3] == "pdf") {
			return "/receipts/{id}/" + parts[3]
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/receipts/{id}"
		}
	}

	// /invites/{id}/resend
	if strings.HasPrefix(path, "/invites/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] == "resend" {
			return "/invites/{id}/resend"
		}
	}

	// /admin/commands/{verb} keeps the verb: the verb table is closed,
	// so cardinality is bounded and per-verb metrics are useful.
	if strings.HasPrefix(path, "/admin/commands/") {
		return path
	}

	// Fallback: return as-is for unknown patterns
	// This ensures we don't accidentally break metrics for new routes
	return path
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap exposes the underlying writer so other wrappers can walk the chain.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints are excluded from metrics to avoid cardinality issues.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Exclude health check endpoints from metrics
			if strings.HasPrefix(r.URL.Path, "/health/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			mrw := newMetricsResponseWriter(w)

			// Get request size from Content-Length header
			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			duration := time.Since(start).Seconds()

			// Normalize path to prevent cardinality explosion
			normalizedPath := normalizePath(r.URL.Path)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizedPath,
				strconv.Itoa(mrw.statusCode),
				duration,
				requestSize,
				mrw.size,
			)
		})
	}
}
