package core

import (
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestPractice_StartStopAndSummary(t *testing.T) {
	h, err := newTestHarness(DefaultConfig())
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	user := h.mustUser("drummer", RoleMember)
	ctx := asUser(user)

	session, err := h.svc.StartPracticeSession(ctx, StartPracticeInput{Topic: "rudiments"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err = h.svc.StartPracticeSession(ctx, StartPracticeInput{Topic: "again"}); !goerrors.IsCategory(err, goerrors.CategoryConflict) {
		t.Fatalf("expected one active session, got %v", err)
	}

	h.advance(25 * time.Minute)
	stopped, err := h.svc.StopPracticeSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.DurationSeconds != 1500 || stopped.Active() {
		t.Fatalf("unexpected stopped session: %+v", stopped)
	}
	if _, err = h.svc.StopPracticeSession(ctx, session.ID); !goerrors.IsCategory(err, goerrors.CategoryConflict) {
		t.Fatalf("expected double stop conflict, got %v", err)
	}

	start := h.now.Add(-3 * time.Hour)
	if _, err = h.svc.LogPracticeSession(ctx, LogPracticeInput{Topic: "grooves", StartedAt: start, EndedAt: start.Add(time.Hour)}); err != nil {
		t.Fatalf("log: %v", err)
	}

	summary, err := h.svc.PracticeSummary(ctx, PracticeFilter{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Sessions != 2 || summary.TotalSeconds != 1500+3600 || summary.LongestSeconds != 3600 || summary.UserID != user.ID {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !h.events.has(EventPracticeSessionCompleted) {
		t.Fatalf("expected completion event, got %v", h.events.types())
	}
}

func TestPractice_LogValidation(t *testing.T) {
	h, err := newTestHarness(DefaultConfig())
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	user := h.mustUser("bassist", RoleMember)
	other := h.mustUser("singer", RoleMember)
	ctx := asUser(user)
	start := h.now.Add(-48 * time.Hour)

	cases := []LogPracticeInput{
		{Topic: "", StartedAt: start, EndedAt: start.Add(time.Hour)},
		{Topic: "scales", StartedAt: start, EndedAt: start},
		{Topic: "scales", StartedAt: start, EndedAt: start.Add(25 * time.Hour)},
		{Topic: "scales"},
	}
	for i, in := range cases {
		if _, err := h.svc.LogPracticeSession(ctx, in); !goerrors.IsCategory(err, goerrors.CategoryBadInput) {
			t.Fatalf("case %d: expected bad input, got %v", i, err)
		}
	}

	_, err = h.svc.LogPracticeSession(ctx, LogPracticeInput{UserID: other.ID, Topic: "scales", StartedAt: start, EndedAt: start.Add(time.Hour)})
	if !goerrors.IsCategory(err, goerrors.CategoryAuthz) {
		t.Fatalf("expected forbidden logging for another user, got %v", err)
	}

	session, err := h.svc.LogPracticeSession(asService(), LogPracticeInput{UserID: other.ID, Topic: "scales", StartedAt: start, EndedAt: start.Add(time.Hour)})
	if err != nil {
		t.Fatalf("service log: %v", err)
	}
	if err = h.svc.DeletePracticeSession(ctx, session.ID); !goerrors.IsCategory(err, goerrors.CategoryAuthz) {
		t.Fatalf("expected forbidden delete, got %v", err)
	}
	if err = h.svc.DeletePracticeSession(asUser(other), session.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestPractice_ListDefaultsToCaller(t *testing.T) {
	h, err := newTestHarness(DefaultConfig())
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	first := h.mustUser("first", RoleMember)
	second := h.mustUser("second", RoleMember)
	for _, user := range []User{first, second} {
		if _, err := h.svc.StartPracticeSession(asUser(user), StartPracticeInput{Topic: "warmup"}); err != nil {
			t.Fatalf("start: %v", err)
		}
	}

	page, err := h.svc.ListPracticeSessions(asUser(first), PracticeFilter{})
	if err != nil || page.Total != 1 || page.Items[0].UserID != first.ID {
		t.Fatalf("unexpected own list: %+v / %v", page, err)
	}
	all, err := h.svc.ListPracticeSessions(asService(), PracticeFilter{})
	if err != nil || all.Total != 2 {
		t.Fatalf("unexpected privileged list: %+v / %v", all, err)
	}

	from := h.now
	to := h.now.Add(-time.Hour)
	if _, err = h.svc.ListPracticeSessions(asUser(first), PracticeFilter{From: &from, To: &to}); !goerrors.IsCategory(err, goerrors.CategoryBadInput) {
		t.Fatalf("expected invalid range, got %v", err)
	}
}

func TestPracticeDuration(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	if got := PracticeDuration(start, start.Add(90*time.Second+500*time.Millisecond)); got != 90 {
		t.Fatalf("expected 90 seconds, got %d", got)
	}
	if got := PracticeDuration(start, start.Add(-time.Minute)); got != 0 {
		t.Fatalf("expected zero for reversed bounds, got %d", got)
	}
}
