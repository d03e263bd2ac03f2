package gologger

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-community/core"
	glog "github.com/goliatone/go-logger/glog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap sugared logger to glog.Logger. Args are key/value
// pairs, the same convention core uses when flattening fields.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds the process logger from the logging config.
func NewZapLogger(cfg core.LoggingConfig) (*ZapLogger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(strings.ToLower(cfg.Level)))
	if err != nil {
		return nil, fmt.Errorf("gologger: invalid level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "json":
		zcfg = zap.NewProductionConfig()
	case "console", "text":
		zcfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("gologger: unsupported format %q", cfg.Format)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.DisableStacktrace = true

	base, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return NewZapLoggerFrom(base), nil
}

func NewZapLoggerFrom(base *zap.Logger) *ZapLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &ZapLogger{sugar: base.Sugar()}
}

func (l *ZapLogger) Trace(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }
func (l *ZapLogger) Fatal(msg string, args ...any) { l.sugar.Fatalw(msg, args...) }

// WithContext attaches the request id, when present.
func (l *ZapLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		return &ZapLogger{sugar: l.sugar.With("request_id", requestID)}
	}
	return l
}

func (l *ZapLogger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	return &ZapLogger{sugar: l.sugar.With(args...)}
}

// Named returns a child logger tagged with logger=name.
func (l *ZapLogger) Named(name string) *ZapLogger {
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	return &ZapLogger{sugar: l.sugar.Named(name)}
}

func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

// ZapProvider hands out named children of one root logger.
type ZapProvider struct {
	root *ZapLogger
}

func NewZapProvider(root *ZapLogger) *ZapProvider {
	if root == nil {
		root = NewZapLoggerFrom(nil)
	}
	return &ZapProvider{root: root}
}

func (p *ZapProvider) GetLogger(name string) glog.Logger {
	return p.root.Named(name)
}

type requestIDKey struct{}

// ContextWithRequestID stores the request id picked up by WithContext.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

var (
	_ glog.Logger         = (*ZapLogger)(nil)
	_ glog.FieldsLogger   = (*ZapLogger)(nil)
	_ glog.LoggerProvider = (*ZapProvider)(nil)
)
