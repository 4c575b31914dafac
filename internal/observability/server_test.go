// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package observability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiskeytracker/whiskeytracker/pkg/errutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer(ServerOptions{Addr: "127.0.0.1:0", Ready: ready, Version: "1.2.3", Logger: discardLogger()})
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	require.NotEmpty(t, server.Addr())
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, func() bool { return true })

	status, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `whiskeytracker_build_info{version="1.2.3"} 1`)

	server.Metrics().ObserveRequest(http.MethodPost, "/api/auth/token", http.StatusOK, 20*time.Millisecond)
	server.Metrics().ObserveRequest(http.MethodPost, "/api/auth/token", http.StatusOK, 30*time.Millisecond)
	server.Metrics().ObserveRequest(http.MethodGet, "/api/users/me", http.StatusUnauthorized, time.Millisecond)

	_, body = get(t, server, "/metrics")
	assert.Contains(t, body, `whiskeytracker_http_requests_total{method="POST",route="/api/auth/token",status="200"} 2`)
	assert.Contains(t, body, `whiskeytracker_http_requests_total{method="GET",route="/api/users/me",status="401"} 1`)
	assert.Contains(t, body, "whiskeytracker_http_request_duration_seconds_bucket")
}

func TestServer_RegistryAcceptsCollectors(t *testing.T) {
	server := startServer(t, nil)

	swept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whiskeytracker_test_swept_total",
		Help: "test counter",
	})
	server.Registry().MustRegister(swept)
	swept.Add(3)

	_, body := get(t, server, "/metrics")
	assert.Contains(t, body, "whiskeytracker_test_swept_total 3")
}

func TestServer_Probes(t *testing.T) {
	tests := []struct {
		name       string
		ready      ReadinessChecker
		path       string
		wantStatus int
		wantBody   string
	}{
		{"liveness", nil, "/healthz/liveness", http.StatusOK, `{"status":"ok"}`},
		{"liveness ignores readiness", func() bool { return false }, "/healthz/liveness", http.StatusOK, `{"status":"ok"}`},
		{"ready", func() bool { return true }, "/healthz/readiness", http.StatusOK, `{"status":"ok"}`},
		{"not ready", func() bool { return false }, "/healthz/readiness", http.StatusServiceUnavailable, `{"status":"not ready"}`},
		{"nil checker is ready", nil, "/healthz/readiness", http.StatusOK, `{"status":"ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer(ServerOptions{Addr: "127.0.0.1:0", Ready: tt.ready, Logger: discardLogger()})
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(rec.Body.String()))
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)

	_, err := server.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_ALREADY_RUNNING")
}

func TestServer_StartInvalidAddr(t *testing.T) {
	server := NewServer(ServerOptions{Addr: "not-an-address", Logger: discardLogger()})

	_, err := server.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_LISTEN_FAILED")

	// The failed start must not leave the server marked as running.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx))
}

func TestServer_StopIdempotent(t *testing.T) {
	server := NewServer(ServerOptions{Addr: "127.0.0.1:0", Logger: discardLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx))
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer(ServerOptions{Addr: "127.0.0.1:0", Logger: discardLogger()})

	errCh, err := server.Start()
	require.NoError(t, err)

	// Closing the listener underneath Serve simulates an unexpected failure.
	require.NotNil(t, server.listener)
	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error on error channel")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Stop(ctx)
}

func TestServer_ErrorChannelClosesOnNormalShutdown(t *testing.T) {
	server := NewServer(ServerOptions{Addr: "127.0.0.1:0", Logger: discardLogger()})

	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error channel to close")
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
}

func TestServer_ProbesRejectOtherMethods(t *testing.T) {
	server := NewServer(ServerOptions{Addr: "127.0.0.1:0", Logger: discardLogger()})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz/liveness", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
