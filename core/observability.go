package core

import (
	"context"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	outcome, category := classifyOutcome(err)
	elapsed := time.Since(startedAt)

	contextFields := cloneFields(fields)
	contextFields["event_type"] = operation
	contextFields["status"] = outcome
	contextFields["duration_ms"] = elapsed.Milliseconds()

	tags := map[string]string{
		"operation":      operation,
		"resource":       operationResource(operation),
		"status":         outcome,
		"role":           "",
		"error_category": category,
	}
	if principal, ok := PrincipalFromContext(ctx); ok {
		contextFields["principal_id"] = principal.UserID
		contextFields["principal_role"] = string(principal.Role)
		tags["role"] = string(principal.Role)
	}
	if err != nil {
		contextFields["error"] = err.Error()
		contextFields["error_category"] = category
	}

	s.recordCounter(ctx, OperationCounterName(operation), 1, tags)
	s.recordHistogram(ctx, OperationDurationName(operation), float64(elapsed.Milliseconds()), tags)

	switch outcome {
	case OutcomeSuccess:
		s.logInfo(ctx, operation+" succeeded", contextFields)
	case OutcomeRejected:
		s.logWarn(ctx, operation+" rejected", contextFields)
	default:
		s.logError(ctx, operation+" failed", contextFields)
	}
}

// classifyOutcome splits errors the caller caused from faults on our side.
func classifyOutcome(err error) (string, string) {
	if err == nil {
		return OutcomeSuccess, ""
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return OutcomeFailure, string(goerrors.CategoryInternal)
	}
	switch rich.Category {
	case goerrors.CategoryValidation,
		goerrors.CategoryBadInput,
		goerrors.CategoryAuth,
		goerrors.CategoryAuthz,
		goerrors.CategoryNotFound,
		goerrors.CategoryConflict,
		goerrors.CategoryRateLimit:
		return OutcomeRejected, string(rich.Category)
	}
	return OutcomeFailure, string(rich.Category)
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	s.logAt(ctx, LogInfo, message, fields)
}

func (s *Service) logWarn(ctx context.Context, message string, fields map[string]any) {
	s.logAt(ctx, LogWarn, message, fields)
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	s.logAt(ctx, LogError, message, fields)
}

// logAt writes redacted fields both as logger fields and as key/value args,
// so loggers without WithFields still see them.
func (s *Service) logAt(ctx context.Context, level LogLevel, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	fields = RedactSensitiveMap(fields)
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := sortedArgs(fields)
	switch level {
	case LogError:
		logger.Error(message, args...)
	case LogWarn:
		logger.Warn(message, args...)
	case LogDebug:
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func sortedArgs(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
