package core

import (
	"context"
	"strings"
	"time"
)

const maxManualPracticeDuration = 24 * time.Hour

type StartPracticeInput struct {
	Topic string `json:"topic"`
	Notes string `json:"notes"`
}

type LogPracticeInput struct {
	UserID    string    `json:"user_id"`
	Topic     string    `json:"topic"`
	Notes     string    `json:"notes"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

func (s *Service) StartPracticeSession(ctx context.Context, in StartPracticeInput) (session PracticeSession, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "start_practice_session", err, fields)
	}()

	principal, err := requireAuthenticated(ctx)
	if err != nil {
		return PracticeSession{}, err
	}
	if err = s.requireStore(s.practice, "practice"); err != nil {
		return PracticeSession{}, err
	}
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		err = BadInput("topic is required", fieldError("topic", "required", topic))
		return PracticeSession{}, err
	}
	fields["user_id"] = principal.UserID

	now := s.now()
	session, err = s.practice.Start(ctx, PracticeSession{
		ID:        s.newID(),
		UserID:    principal.UserID,
		Topic:     topic,
		Notes:     strings.TrimSpace(in.Notes),
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		err = s.mapError(err)
		return PracticeSession{}, err
	}
	fields["practice_session_id"] = session.ID
	s.emit(ctx, EventPracticeSessionStarted, map[string]any{"practice_session": session})
	return session, nil
}

func (s *Service) StopPracticeSession(ctx context.Context, id string) (session PracticeSession, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"practice_session_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "stop_practice_session", err, fields)
	}()

	session, err = s.GetPracticeSession(ctx, id)
	if err != nil {
		return PracticeSession{}, err
	}
	if _, err = requireSelfOrPrivileged(ctx, session.UserID); err != nil {
		return PracticeSession{}, err
	}
	if !session.Active() {
		err = Conflict("practice session already stopped")
		return PracticeSession{}, err
	}
	endedAt := s.now()
	if endedAt.Before(session.StartedAt) {
		endedAt = session.StartedAt
	}
	session, err = s.practice.Stop(ctx, session.ID, endedAt)
	if err != nil {
		err = s.mapError(err)
		return PracticeSession{}, err
	}
	s.emit(ctx, EventPracticeSessionCompleted, map[string]any{"practice_session": session})
	return session, nil
}

// LogPracticeSession records a completed session with explicit bounds.
func (s *Service) LogPracticeSession(ctx context.Context, in LogPracticeInput) (session PracticeSession, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "log_practice_session", err, fields)
	}()

	principal, err := requireAuthenticated(ctx)
	if err != nil {
		return PracticeSession{}, err
	}
	userID := principal.UserID
	if explicit := strings.TrimSpace(in.UserID); explicit != "" && explicit != userID {
		if !principal.Privileged() {
			err = Forbidden("only admin or service callers may log sessions for another user")
			return PracticeSession{}, err
		}
		userID = explicit
	}
	if userID, err = requireID("user_id", userID); err != nil {
		return PracticeSession{}, err
	}
	fields["user_id"] = userID
	if err = s.requireStore(s.practice, "practice"); err != nil {
		return PracticeSession{}, err
	}
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		err = BadInput("topic is required", fieldError("topic", "required", topic))
		return PracticeSession{}, err
	}
	if in.StartedAt.IsZero() || in.EndedAt.IsZero() {
		err = BadInput("started_at and ended_at are required")
		return PracticeSession{}, err
	}
	start, end := in.StartedAt.UTC(), in.EndedAt.UTC()
	if !end.After(start) {
		err = BadInput("ended_at must be after started_at", fieldError("ended_at", "must be after started_at", end))
		return PracticeSession{}, err
	}
	if end.Sub(start) > maxManualPracticeDuration {
		err = BadInput("practice session must not exceed 24h", fieldError("ended_at", "duration exceeds 24h", end))
		return PracticeSession{}, err
	}

	now := s.now()
	session, err = s.practice.Create(ctx, PracticeSession{
		ID:              s.newID(),
		UserID:          userID,
		Topic:           topic,
		Notes:           strings.TrimSpace(in.Notes),
		StartedAt:       start,
		EndedAt:         &end,
		DurationSeconds: PracticeDuration(start, end),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		err = s.mapError(err)
		return PracticeSession{}, err
	}
	fields["practice_session_id"] = session.ID
	s.emit(ctx, EventPracticeSessionCompleted, map[string]any{"practice_session": session})
	return session, nil
}

func (s *Service) GetPracticeSession(ctx context.Context, id string) (PracticeSession, error) {
	if _, err := requireAuthenticated(ctx); err != nil {
		return PracticeSession{}, err
	}
	if err := s.requireStore(s.practice, "practice"); err != nil {
		return PracticeSession{}, err
	}
	id, err := requireID("id", id)
	if err != nil {
		return PracticeSession{}, err
	}
	session, err := s.practice.Get(ctx, id)
	if err != nil {
		return PracticeSession{}, s.mapError(err)
	}
	return session, nil
}

// ListPracticeSessions defaults to the caller's own sessions.
func (s *Service) ListPracticeSessions(ctx context.Context, filter PracticeFilter) (Page[PracticeSession], error) {
	principal, err := requireAuthenticated(ctx)
	if err != nil {
		return Page[PracticeSession]{}, err
	}
	if err := s.requireStore(s.practice, "practice"); err != nil {
		return Page[PracticeSession]{}, err
	}
	filter.UserID = strings.TrimSpace(filter.UserID)
	if filter.UserID == "" && !principal.Privileged() {
		filter.UserID = principal.UserID
	}
	if err := validateRange(filter.From, filter.To); err != nil {
		return Page[PracticeSession]{}, err
	}
	filter.PageRequest = filter.PageRequest.Normalize()
	page, err := s.practice.List(ctx, filter)
	if err != nil {
		return Page[PracticeSession]{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) PracticeSummary(ctx context.Context, filter PracticeFilter) (summary PracticeSummary, err error) {
	principal, err := requireAuthenticated(ctx)
	if err != nil {
		return PracticeSummary{}, err
	}
	if err = s.requireStore(s.practice, "practice"); err != nil {
		return PracticeSummary{}, err
	}
	filter.UserID = strings.TrimSpace(filter.UserID)
	if filter.UserID == "" {
		filter.UserID = principal.UserID
	}
	if err = validateRange(filter.From, filter.To); err != nil {
		return PracticeSummary{}, err
	}
	summary, err = s.practice.Summary(ctx, filter)
	if err != nil {
		return PracticeSummary{}, s.mapError(err)
	}
	summary.UserID = filter.UserID
	summary.From = filter.From
	summary.To = filter.To
	return summary, nil
}

func (s *Service) DeletePracticeSession(ctx context.Context, id string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"practice_session_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_practice_session", err, fields)
	}()

	session, err := s.GetPracticeSession(ctx, id)
	if err != nil {
		return err
	}
	if _, err = requireSelfOrPrivileged(ctx, session.UserID); err != nil {
		return err
	}
	if err = s.practice.Delete(ctx, session.ID); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// PracticeDuration returns whole seconds between start and end, floored at zero.
func PracticeDuration(start, end time.Time) int64 {
	seconds := int64(end.Sub(start) / time.Second)
	if seconds < 0 {
		return 0
	}
	return seconds
}

func validateRange(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return BadInput("invalid time range", fieldError("to", "must not be before from", *to))
	}
	return nil
}
