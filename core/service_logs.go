package core

import (
	"context"
	"strings"
	"time"
)

type AppendLogInput struct {
	Level     LogLevel       `json:"level"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	Fields    map[string]any `json:"fields"`
}

// AppendLog persists a structured log entry. Sensitive field values are
// redacted before they reach the store.
func (s *Service) AppendLog(ctx context.Context, in AppendLogInput) (entry LogEntry, err error) {
	principal, err := requireAuthenticated(ctx)
	if err != nil {
		return LogEntry{}, err
	}
	if err = s.requireStore(s.logs, "log"); err != nil {
		return LogEntry{}, err
	}
	level := LogLevel(strings.ToLower(strings.TrimSpace(string(in.Level))))
	if level == "" {
		level = LogInfo
	}
	if !level.Valid() {
		return LogEntry{}, BadInput("invalid level", fieldError("level", "must be debug, info, warn or error", in.Level))
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		return LogEntry{}, BadInput("source is required", fieldError("source", "required", source))
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return LogEntry{}, BadInput("message is required", fieldError("message", "required", message))
	}

	entry, err = s.logs.Append(ctx, LogEntry{
		ID:        s.newID(),
		Level:     level,
		Source:    source,
		Message:   message,
		UserID:    principal.UserID,
		RequestID: strings.TrimSpace(in.RequestID),
		Fields:    RedactSensitiveMap(in.Fields),
		CreatedAt: s.now(),
	})
	if err != nil {
		return LogEntry{}, s.mapError(err)
	}
	return entry, nil
}

func (s *Service) ListLogs(ctx context.Context, filter LogFilter) (Page[LogEntry], error) {
	if _, err := requirePrivileged(ctx); err != nil {
		return Page[LogEntry]{}, err
	}
	if err := s.requireStore(s.logs, "log"); err != nil {
		return Page[LogEntry]{}, err
	}
	if filter.Level != "" && !filter.Level.Valid() {
		return Page[LogEntry]{}, BadInput("invalid level filter", fieldError("level", "unknown level", filter.Level))
	}
	if err := validateRange(filter.Since, filter.Until); err != nil {
		return Page[LogEntry]{}, err
	}
	filter.Source = strings.TrimSpace(filter.Source)
	filter.UserID = strings.TrimSpace(filter.UserID)
	filter.PageRequest = filter.PageRequest.Normalize()
	page, err := s.logs.List(ctx, filter)
	if err != nil {
		return Page[LogEntry]{}, s.mapError(err)
	}
	return page, nil
}

// PruneLogs deletes entries created before the cutoff. A zero cutoff uses
// the configured retention window.
func (s *Service) PruneLogs(ctx context.Context, before time.Time) (deleted int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["deleted"] = deleted
		s.observeOperation(ctx, startedAt, "prune_logs", err, fields)
	}()

	if _, err = requirePrivileged(ctx); err != nil {
		return 0, err
	}
	if err = s.requireStore(s.logs, "log"); err != nil {
		return 0, err
	}
	if before.IsZero() {
		days := s.config.Logs.RetentionDays
		if days <= 0 {
			days = 30
		}
		before = s.now().AddDate(0, 0, -days)
	}
	fields["before"] = before
	deleted, err = s.logs.Prune(ctx, before.UTC())
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}
	return deleted, nil
}
