// Package main contains integration tests for the API server's
// lifecycle: startup, graceful shutdown, and signal handling.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

// freeAddr reserves a listenable address for a test server.
func freeAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()
	return addr
}

// startServer serves mux on addr and returns a channel closed when the
// server loop exits.
func startServer(t *testing.T, server *http.Server) <-chan struct{} {
	t.Helper()
	started := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		ln, err := net.Listen("tcp", server.Addr)
		if err != nil {
			t.Errorf("failed to listen: %v", err)
			close(started)
			close(stopped)
			return
		}
		close(started)
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			t.Errorf("server error: %v", err)
		}
		close(stopped)
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("server failed to start in time")
	}
	time.Sleep(50 * time.Millisecond)
	return stopped
}

// TestGracefulShutdown_LogOrder verifies the lifecycle log lines come
// out in order: starting, shutting down, stopped.
func TestGracefulShutdown_LogOrder(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{
		Addr:         freeAddr(t),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("starting server", "addr", server.Addr)
	stopped := startServer(t, server)

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("server shutdown error: %v", err)
	}
	logger.Info("server stopped")

	select {
	case <-stopped:
	case <-time.After(15 * time.Second):
		t.Fatal("server failed to stop in time")
	}

	logs := logBuf.String()
	startIdx := strings.Index(logs, "starting server")
	shutdownIdx := strings.Index(logs, "shutting down server")
	stoppedIdx := strings.Index(logs, "server stopped")
	if startIdx == -1 || shutdownIdx == -1 || stoppedIdx == -1 {
		t.Fatalf("missing lifecycle log lines: %s", logs)
	}
	if startIdx > shutdownIdx || shutdownIdx > stoppedIdx {
		t.Errorf("lifecycle log lines out of order: %s", logs)
	}
}

// TestGracefulShutdown_InFlightRequests verifies a request already in a
// handler completes before Shutdown returns.
func TestGracefulShutdown_InFlightRequests(t *testing.T) {
	addr := freeAddr(t)

	var mu sync.Mutex
	var requestCompleted bool
	handlerStarted := make(chan struct{})
	handlerCanContinue := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /receipts/slow/verify", func(w http.ResponseWriter, r *http.Request) {
		close(handlerStarted)
		<-handlerCanContinue

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"match":true}`))

		mu.Lock()
		requestCompleted = true
		mu.Unlock()
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	startServer(t, server)

	requestDone := make(chan struct{})
	var response *http.Response
	go func() {
		resp, err := http.Get("http://" + addr + "/receipts/slow/verify")
		if err != nil {
			t.Errorf("request error: %v", err)
		}
		response = resp
		close(requestDone)
	}()

	select {
	case <-handlerStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("handler failed to start in time")
	}

	shutdownDone := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			t.Errorf("shutdown error: %v", err)
		}
		close(shutdownDone)
	}()

	// Let shutdown begin before releasing the handler.
	time.Sleep(50 * time.Millisecond)
	close(handlerCanContinue)

	select {
	case <-requestDone:
	case <-time.After(5 * time.Second):
		t.Fatal("request failed to complete in time")
	}
	select {
	case <-shutdownDone:
	case <-time.After(15 * time.Second):
		t.Fatal("shutdown failed to complete in time")
	}

	mu.Lock()
	if !requestCompleted {
		t.Error("in-flight request should complete before shutdown")
	}
	mu.Unlock()

	if response == nil {
		t.Fatal("no response recorded")
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", response.StatusCode)
	}
	body, _ := io.ReadAll(response.Body)
	var result map[string]bool
	if err := json.Unmarshal(body, &result); err != nil {
		t.Errorf("failed to parse response: %v", err)
	}
	if !result["match"] {
		t.Errorf("body = %s", body)
	}
}

// TestSignalNotify verifies both termination signals are caught.
func TestSignalNotify(t *testing.T) {
	for _, sig := range []syscall.Signal{syscall.SIGINT, syscall.SIGTERM} {
		t.Run(sig.String(), func(t *testing.T) {
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			go func() {
				time.Sleep(50 * time.Millisecond)
				_ = syscall.Kill(syscall.Getpid(), sig)
			}()

			select {
			case got := <-quit:
				if got != sig {
					t.Errorf("signal = %v, want %v", got, sig)
				}
			case <-time.After(2 * time.Second):
				t.Errorf("did not receive %v in time", sig)
			}
		})
	}
}
