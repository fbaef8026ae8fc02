package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"stripefacility/internal/config"
)

// mockMetricsCollector implements MetricsCollector for testing.
type mockMetricsCollector struct {
	mu    sync.Mutex
	calls []metricsCall
}

type metricsCall struct {
	method, endpoint, status string
	duration                 time.Duration
}

func (m *mockMetricsCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, metricsCall{method, endpoint, status, duration})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewServer_Success(t *testing.T) {
	cfg := &config.Config{Environment: "local"}
	logger := discardLogger()

	srv, err := NewServer(cfg, logger)
	if err != nil {
		t.Fatalf("NewServer returned unexpected error: %v", err)
	}
	if srv.Config != cfg {
		t.Error("Config field not set correctly")
	}
	if srv.Logger != logger {
		t.Error("Logger field not set correctly")
	}
	if srv.Router() == nil || srv.Handler() == nil {
		t.Error("router not initialised")
	}
}

func TestNewServer_NilDependencies(t *testing.T) {
	if _, err := NewServer(nil, discardLogger()); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewServer(&config.Config{}, nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestShutdown_RunsClosersInOrder(t *testing.T) {
	srv, _ := NewServer(&config.Config{}, discardLogger())

	var order []string
	srv.OnShutdown(func(context.Context) error { order = append(order, "ledger"); return nil })
	srv.OnShutdown(func(context.Context) error { order = append(order, "queue"); return nil })

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if strings.Join(order, ",") != "ledger,queue" {
		t.Errorf("closers ran in order %v", order)
	}
}

func TestShutdown_JoinsErrors(t *testing.T) {
	srv, _ := NewServer(&config.Config{}, discardLogger())

	errA := errors.New("pool close failed")
	ran := false
	srv.OnShutdown(func(context.Context) error { return errA })
	srv.OnShutdown(func(context.Context) error { ran = true; return nil })

	err := srv.Shutdown(context.Background())
	if !errors.Is(err, errA) {
		t.Errorf("expected joined error to wrap %v, got %v", errA, err)
	}
	if !ran {
		t.Error("a failing closer must not stop later closers")
	}
}
