package gologger

import (
	"context"
	"testing"

	"github.com/goliatone/go-community/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerWritesKeyValueFields(t *testing.T) {
	zcore, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLoggerFrom(zap.New(zcore))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	logger.WithContext(ctx).Info("application submitted", "application_id", "app_1")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" {
		t.Fatalf("expected request id field, got %#v", fields)
	}
	if fields["application_id"] != "app_1" {
		t.Fatalf("expected application id field, got %#v", fields)
	}
}

func TestZapLoggerWithFieldsAndProvider(t *testing.T) {
	zcore, logs := observer.New(zapcore.InfoLevel)
	provider := NewZapProvider(NewZapLoggerFrom(zap.New(zcore)))

	named := provider.GetLogger("webhooks").(*ZapLogger)
	named.WithFields(map[string]any{"delivery_id": "dlv_1"}).Warn("delivery retrying")
	named.Debug("filtered out")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected debug entry to be filtered, got %d entries", len(entries))
	}
	if entries[0].LoggerName != "webhooks" {
		t.Fatalf("expected named logger, got %q", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["delivery_id"] != "dlv_1" {
		t.Fatalf("expected delivery id field")
	}
}

func TestNewZapLoggerValidatesConfig(t *testing.T) {
	if _, err := NewZapLogger(core.LoggingConfig{Level: "loud", Format: "json"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if _, err := NewZapLogger(core.LoggingConfig{Level: "info", Format: "xml"}); err == nil {
		t.Fatalf("expected invalid format error")
	}
	logger, err := NewZapLogger(core.LoggingConfig{Level: "debug", Format: "console"})
	if err != nil {
		t.Fatalf("console logger: %v", err)
	}
	if logger == nil {
		t.Fatalf("expected logger")
	}
}
