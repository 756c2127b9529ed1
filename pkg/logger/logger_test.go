package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withObserver(t *testing.T) *observer.ObservedLogs {
	t.Helper()

	core, recorded := observer.New(zapcore.DebugLevel)
	original := log
	log = zap.New(core)
	t.Cleanup(func() { log = original })
	return recorded
}

func TestContextWithCorrelationID(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "test-id")
	if got := CorrelationIDFromContext(ctx); got != "test-id" {
		t.Fatalf("expected correlation ID %q, got %q", "test-id", got)
	}
}

func TestCorrelationIDFromNilContext(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	if got := CorrelationIDFromContext(nil); got != "" {
		t.Fatalf("expected empty correlation ID, got %q", got)
	}
}

func TestWithContextAddsCorrelationAndUserFields(t *testing.T) {
	recorded := withObserver(t)

	ctx := ContextWithCorrelationID(context.Background(), "context-id")
	ctx = ContextWithUserID(ctx, "rider-7")

	InfoContext(ctx, "route fetched")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["correlation_id"] != "context-id" {
		t.Fatalf("expected correlation_id %q, got %v", "context-id", fields["correlation_id"])
	}
	if fields["user_id"] != "rider-7" {
		t.Fatalf("expected user_id %q, got %v", "rider-7", fields["user_id"])
	}
}

func TestWithContextWithoutValues(t *testing.T) {
	recorded := withObserver(t)

	WarnContext(context.Background(), "plain")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if len(entries[0].ContextMap()) != 0 {
		t.Fatalf("expected no context fields, got %v", entries[0].ContextMap())
	}
}
