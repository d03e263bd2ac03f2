package gocommand

import (
	"context"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-community/command"
	"github.com/goliatone/go-community/core"
	"github.com/goliatone/go-community/query"
)

type stubCommunityService struct {
	votes      []core.CastVoteInput
	summaryFor string
}

func (s *stubCommunityService) SubmitApplication(context.Context, core.SubmitApplicationInput) (core.Application, error) {
	return core.Application{}, nil
}

func (s *stubCommunityService) CastVote(_ context.Context, in core.CastVoteInput) (core.VoteResult, error) {
	s.votes = append(s.votes, in)
	return core.VoteResult{}, nil
}

func (s *stubCommunityService) WithdrawApplication(context.Context, string) (core.Application, error) {
	return core.Application{}, nil
}

func (s *stubCommunityService) DecideApplication(context.Context, core.DecideApplicationInput) (core.Application, error) {
	return core.Application{}, nil
}

func (s *stubCommunityService) StartPracticeSession(context.Context, core.StartPracticeInput) (core.PracticeSession, error) {
	return core.PracticeSession{}, nil
}

func (s *stubCommunityService) StopPracticeSession(context.Context, string) (core.PracticeSession, error) {
	return core.PracticeSession{}, nil
}

func (s *stubCommunityService) IssueTokens(context.Context, string) (core.TokenPair, error) {
	return core.TokenPair{}, nil
}

func (s *stubCommunityService) IssueForIdentity(context.Context, string, string) (core.TokenPair, error) {
	return core.TokenPair{}, nil
}

func (s *stubCommunityService) RefreshTokens(context.Context, string) (core.TokenPair, error) {
	return core.TokenPair{}, nil
}

func (s *stubCommunityService) RevokeTokens(context.Context, string) error {
	return nil
}

func (s *stubCommunityService) PruneLogs(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *stubCommunityService) GetApplication(_ context.Context, id string) (core.Application, error) {
	return core.Application{ID: id, Status: core.ApplicationPending}, nil
}

func (s *stubCommunityService) ListLogs(context.Context, core.LogFilter) (core.Page[core.LogEntry], error) {
	return core.Page[core.LogEntry]{}, nil
}

func (s *stubCommunityService) PracticeSummary(_ context.Context, filter core.PracticeFilter) (core.PracticeSummary, error) {
	s.summaryFor = filter.UserID
	return core.PracticeSummary{UserID: filter.UserID, Sessions: 2, TotalSeconds: 5400}, nil
}

func (s *stubCommunityService) ListDeliveries(context.Context, string, core.PageRequest) (core.Page[core.WebhookDelivery], error) {
	return core.Page[core.WebhookDelivery]{}, nil
}

type stubSweeper struct {
	limit int
}

func (s *stubSweeper) RetryDue(_ context.Context, limit int) (int, error) {
	s.limit = limit
	return 0, nil
}

func TestRegisterCommunityHandlersDispatchesCommandsAndQueries(t *testing.T) {
	bus := NewBus(gocmd.NewRegistry())
	t.Cleanup(bus.Close)
	svc := &stubCommunityService{}
	sweeper := &stubSweeper{}

	if err := RegisterCommunityHandlers(bus, svc, nil, sweeper); err != nil {
		t.Fatalf("register community handlers: %v", err)
	}
	if got := len(bus.MessageTypes()); got != 15 {
		t.Fatalf("expected 15 handlers without a publisher, got %d", got)
	}
	if bus.Handles(command.TypePublishEvent) {
		t.Fatalf("expected publish handler to be skipped without a publisher")
	}
	if err := bus.Start(); err != nil {
		t.Fatalf("start bus: %v", err)
	}

	vote := command.CastVoteMessage{Input: core.CastVoteInput{ApplicationID: "app-1", Decision: core.VoteApprove}}
	if err := Dispatch(context.Background(), bus, vote); err != nil {
		t.Fatalf("dispatch vote: %v", err)
	}
	if len(svc.votes) != 1 || svc.votes[0].ApplicationID != "app-1" {
		t.Fatalf("expected vote to reach the service, got %+v", svc.votes)
	}

	if err := Dispatch(context.Background(), bus, command.RetryDueDeliveriesMessage{Limit: 25}); err != nil {
		t.Fatalf("dispatch retry sweep: %v", err)
	}
	if sweeper.limit != 25 {
		t.Fatalf("expected sweeper limit 25, got %d", sweeper.limit)
	}

	summary, err := Query[query.PracticeSummaryMessage, core.PracticeSummary](
		context.Background(),
		bus,
		query.PracticeSummaryMessage{Filter: core.PracticeFilter{UserID: "user-1"}},
	)
	if err != nil {
		t.Fatalf("query summary: %v", err)
	}
	if summary.TotalSeconds != 5400 || svc.summaryFor != "user-1" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestRegisterCommunityHandlersRequiresService(t *testing.T) {
	if err := RegisterCommunityHandlers(NewBus(nil), nil, nil, nil); err == nil {
		t.Fatalf("expected error without service")
	}
	if err := RegisterCommunityHandlers(nil, &stubCommunityService{}, nil, nil); err == nil {
		t.Fatalf("expected error without bus")
	}
}
