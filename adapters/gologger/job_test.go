package gologger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestJobLoggerWritesThroughNamedZapLogger(t *testing.T) {
	zcore, logs := observer.New(zapcore.DebugLevel)
	provider := NewZapProvider(NewZapLoggerFrom(zap.New(zcore)))

	JobLogger(provider, "webhooks.worker").Warn("webhook job retrying", "delivery_id", "dlv_1")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "webhooks.worker" {
		t.Fatalf("expected named logger, got %q", entries[0].LoggerName)
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %s", entries[0].Level)
	}
	if entries[0].ContextMap()["delivery_id"] != "dlv_1" {
		t.Fatalf("expected delivery id field, got %#v", entries[0].ContextMap())
	}
}

func TestJobLoggerWithoutProviderIsNop(t *testing.T) {
	logger := JobLogger(nil, "webhooks.worker")
	if logger == nil {
		t.Fatalf("expected nop logger")
	}
	logger.Info("dropped")
}
