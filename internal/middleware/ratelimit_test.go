package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  RateLimitConfig
		wantErr bool
	}{
		{"valid", RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}, false},
		{"zero requests", RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Minute}, true},
		{"negative requests", RateLimitConfig{RequestsPerWindow: -1, WindowDuration: time.Minute}, true},
		{"zero window", RateLimitConfig{RequestsPerWindow: 10, WindowDuration: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultLimits_Valid(t *testing.T) {
	for name, cfg := range map[string]RateLimitConfig{
		"global": DefaultGlobalLimit(),
		"auth":   DefaultAuthLimit(),
		"intake": DefaultIntakeLimit(),
		"verify": DefaultVerifyLimit(),
	} {
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s default limit invalid: %v", name, err)
		}
	}
}

func TestInMemoryRateLimitStore_Allow(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _ := store.Allow(ctx, "key1", config)
		if !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter := store.Allow(ctx, "key1", config)
	if allowed {
		t.Error("4th request should be blocked")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want between 1 and 60", retryAfter)
	}

	// Independent key is unaffected.
	if allowed, _ := store.Allow(ctx, "key2", config); !allowed {
		t.Error("different key should be allowed")
	}
}

func TestInMemoryRateLimitStore_WindowReset(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 10 * time.Millisecond}
	ctx := context.Background()

	if allowed, _ := store.Allow(ctx, "key", config); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _ := store.Allow(ctx, "key", config); allowed {
		t.Fatal("second request in window should be blocked")
	}

	time.Sleep(15 * time.Millisecond)

	if allowed, _ := store.Allow(ctx, "key", config); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

func TestInMemoryRateLimitStore_Cleanup(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Millisecond}
	ctx := context.Background()

	store.Allow(ctx, "stale", config)
	time.Sleep(5 * time.Millisecond)
	store.Cleanup()

	store.mu.RLock()
	_, exists := store.buckets["stale"]
	store.mu.RUnlock()
	if exists {
		t.Error("Cleanup() should remove expired buckets")
	}
}

func TestIPKeyFunc(t *testing.T) {
	keyFunc := IPKeyFunc()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := keyFunc(req); got != "10.0.0.1" {
		t.Errorf("RemoteAddr key = %q, want 10.0.0.1", got)
	}

	req.Header.Set("X-Real-IP", "10.0.0.2")
	if got := keyFunc(req); got != "10.0.0.2" {
		t.Errorf("X-Real-IP key = %q, want 10.0.0.2", got)
	}

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	if got := keyFunc(req); got != "10.0.0.3" {
		t.Errorf("X-Forwarded-For key = %q, want first hop", got)
	}
}

func TestActorKeyFunc(t *testing.T) {
	keyFunc := ActorKeyFunc()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := keyFunc(req); got != "ip:10.0.0.1" {
		t.Errorf("unauthenticated key = %q, want ip fallback", got)
	}

	req = req.WithContext(SetActorID(req.Context(), "attorney-1"))
	if got := keyFunc(req); got != "actor:attorney-1" {
		t.Errorf("authenticated key = %q, want actor:attorney-1", got)
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	handler := RateLimiter(store, config, IPKeyFunc())(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/receipts/r1/verify", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/receipts/r1/verify", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should set Retry-After")
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("429 response should set X-RateLimit-Reset")
	}
}
