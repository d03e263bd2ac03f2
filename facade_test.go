package community

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-community/command"
	"github.com/goliatone/go-community/core"
	"github.com/goliatone/go-community/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.SubmitApplication == nil || commands.CastVote == nil || commands.RefreshTokens == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	if commands.PublishEvent != nil || commands.RetryDueDeliveries != nil {
		t.Fatalf("expected optional commands to stay nil without collaborators")
	}
	queries := facade.Queries()
	if queries.GetApplication == nil || queries.ListLogs == nil || queries.ListDeliveries == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected error for missing service")
	}
	var facade *Facade
	if facade.Service() != nil || facade.Commands().CastVote != nil {
		t.Fatalf("expected nil facade accessors to be empty")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	publisher := &stubPublisher{}
	sweeper := &stubSweeper{}
	facade, err := NewFacade(svc, WithFacadePublisher(publisher), WithFacadeSweeper(sweeper))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	ctx := context.Background()

	if err := facade.Commands().RevokeTokens.Execute(ctx, command.RevokeTokensMessage{RefreshToken: "rt_1"}); err != nil {
		t.Fatalf("execute revoke command: %v", err)
	}
	if svc.lastRevoked != "rt_1" {
		t.Fatalf("unexpected revoke delegation payload %q", svc.lastRevoked)
	}

	before := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := facade.Commands().PruneLogs.Execute(ctx, command.PruneLogsMessage{Before: before}); err != nil {
		t.Fatalf("execute prune command: %v", err)
	}
	if !svc.lastPruneBefore.Equal(before) {
		t.Fatalf("unexpected prune cutoff %s", svc.lastPruneBefore)
	}

	if err := facade.Commands().PublishEvent.Execute(ctx, command.PublishEventMessage{Event: core.Event{Type: core.EventUserCreated}}); err != nil {
		t.Fatalf("execute publish command: %v", err)
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != core.EventUserCreated {
		t.Fatalf("expected published event, got %#v", publisher.events)
	}

	if err := facade.Commands().RetryDueDeliveries.Execute(ctx, command.RetryDueDeliveriesMessage{Limit: 10}); err != nil {
		t.Fatalf("execute retry command: %v", err)
	}
	if sweeper.limit != 10 {
		t.Fatalf("expected sweep limit 10, got %d", sweeper.limit)
	}

	application, err := facade.Queries().GetApplication.Query(ctx, query.GetApplicationMessage{ApplicationID: "app_1"})
	if err != nil {
		t.Fatalf("query application: %v", err)
	}
	if application.ID != "app_1" || application.Status != core.ApplicationPending {
		t.Fatalf("unexpected application query result: %#v", application)
	}

	summary, err := facade.Queries().PracticeSummary.Query(ctx, query.PracticeSummaryMessage{Filter: core.PracticeFilter{UserID: "usr_1"}})
	if err != nil {
		t.Fatalf("query practice summary: %v", err)
	}
	if summary.UserID != "usr_1" || summary.Sessions != 3 {
		t.Fatalf("unexpected practice summary: %#v", summary)
	}
}

type stubFacadeService struct {
	CommandQueryService

	lastRevoked     string
	lastPruneBefore time.Time
}

func (s *stubFacadeService) RevokeTokens(_ context.Context, refreshToken string) error {
	s.lastRevoked = refreshToken
	return nil
}

func (s *stubFacadeService) PruneLogs(_ context.Context, before time.Time) (int, error) {
	s.lastPruneBefore = before
	return 1, nil
}

func (s *stubFacadeService) GetApplication(_ context.Context, id string) (core.Application, error) {
	return core.Application{ID: id, Status: core.ApplicationPending}, nil
}

func (s *stubFacadeService) PracticeSummary(_ context.Context, filter core.PracticeFilter) (core.PracticeSummary, error) {
	return core.PracticeSummary{UserID: filter.UserID, Sessions: 3}, nil
}

type stubPublisher struct {
	events []core.Event
}

func (p *stubPublisher) Publish(_ context.Context, event core.Event) error {
	p.events = append(p.events, event)
	return nil
}

type stubSweeper struct {
	limit int
}

func (s *stubSweeper) RetryDue(_ context.Context, limit int) (int, error) {
	s.limit = limit
	return 0, nil
}
