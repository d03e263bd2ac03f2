package command

import (
	"context"
	"errors"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-community/core"
	goerrors "github.com/goliatone/go-errors"
)

type stubMutatingService struct {
	submitFn   func(context.Context, core.SubmitApplicationInput) (core.Application, error)
	voteFn     func(context.Context, core.CastVoteInput) (core.VoteResult, error)
	issueFn    func(context.Context, string) (core.TokenPair, error)
	identityFn func(context.Context, string, string) (core.TokenPair, error)
	revokeFn   func(context.Context, string) error
	pruneFn    func(context.Context, time.Time) (int, error)
}

func (s stubMutatingService) SubmitApplication(ctx context.Context, in core.SubmitApplicationInput) (core.Application, error) {
	return s.submitFn(ctx, in)
}

func (s stubMutatingService) CastVote(ctx context.Context, in core.CastVoteInput) (core.VoteResult, error) {
	return s.voteFn(ctx, in)
}

func (stubMutatingService) WithdrawApplication(context.Context, string) (core.Application, error) {
	return core.Application{}, nil
}

func (stubMutatingService) DecideApplication(context.Context, core.DecideApplicationInput) (core.Application, error) {
	return core.Application{}, nil
}

func (stubMutatingService) StartPracticeSession(context.Context, core.StartPracticeInput) (core.PracticeSession, error) {
	return core.PracticeSession{}, nil
}

func (stubMutatingService) StopPracticeSession(context.Context, string) (core.PracticeSession, error) {
	return core.PracticeSession{}, nil
}

func (s stubMutatingService) IssueTokens(ctx context.Context, userID string) (core.TokenPair, error) {
	return s.issueFn(ctx, userID)
}

func (s stubMutatingService) IssueForIdentity(ctx context.Context, provider, externalID string) (core.TokenPair, error) {
	return s.identityFn(ctx, provider, externalID)
}

func (stubMutatingService) RefreshTokens(context.Context, string) (core.TokenPair, error) {
	return core.TokenPair{}, nil
}

func (s stubMutatingService) RevokeTokens(ctx context.Context, token string) error {
	return s.revokeFn(ctx, token)
}

func (s stubMutatingService) PruneLogs(ctx context.Context, before time.Time) (int, error) {
	return s.pruneFn(ctx, before)
}

func TestSubmitApplicationCommand_DelegatesAndStoresResult(t *testing.T) {
	svc := stubMutatingService{
		submitFn: func(_ context.Context, in core.SubmitApplicationInput) (core.Application, error) {
			if in.Motivation != "I teach chess" {
				t.Fatalf("unexpected motivation %q", in.Motivation)
			}
			return core.Application{ID: "app-1", Status: core.ApplicationPending}, nil
		},
	}
	collector := gocmd.NewResult[core.Application]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := NewSubmitApplicationCommand(svc).Execute(ctx, SubmitApplicationMessage{Input: core.SubmitApplicationInput{Motivation: "I teach chess"}}); err != nil {
		t.Fatalf("execute submit: %v", err)
	}
	result, ok := collector.Load()
	if !ok || result.ID != "app-1" {
		t.Fatalf("expected stored application result, got %#v ok=%v", result, ok)
	}
}

func TestCastVoteCommand_PropagatesServiceErrors(t *testing.T) {
	svc := stubMutatingService{
		voteFn: func(context.Context, core.CastVoteInput) (core.VoteResult, error) {
			return core.VoteResult{}, core.Conflict("vote already cast")
		},
	}
	err := NewCastVoteCommand(svc).Execute(context.Background(), CastVoteMessage{Input: core.CastVoteInput{ApplicationID: "a", Decision: core.VoteApprove}})
	if !goerrors.IsCategory(err, goerrors.CategoryConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestIssueTokensCommand_RoutesByCredential(t *testing.T) {
	var viaUser, viaIdentity bool
	svc := stubMutatingService{
		issueFn: func(_ context.Context, userID string) (core.TokenPair, error) {
			viaUser = userID == "u1"
			return core.TokenPair{AccessToken: "a"}, nil
		},
		identityFn: func(_ context.Context, provider, externalID string) (core.TokenPair, error) {
			viaIdentity = provider == "discord" && externalID == "123456"
			return core.TokenPair{AccessToken: "b"}, nil
		},
	}
	cmd := NewIssueTokensCommand(svc)
	if err := cmd.Execute(context.Background(), IssueTokensMessage{UserID: "u1"}); err != nil {
		t.Fatalf("issue by user: %v", err)
	}
	if err := cmd.Execute(context.Background(), IssueTokensMessage{Provider: "discord", ExternalID: "123456"}); err != nil {
		t.Fatalf("issue by identity: %v", err)
	}
	if !viaUser || !viaIdentity {
		t.Fatalf("expected both routes, user=%v identity=%v", viaUser, viaIdentity)
	}
}

type stubSweeper struct {
	attempted int
	err       error
}

func (s stubSweeper) RetryDue(context.Context, int) (int, error) { return s.attempted, s.err }

func TestRetryDueDeliveriesCommand_StoresCountEvenOnPartialFailure(t *testing.T) {
	collector := gocmd.NewResult[int]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	partial := errors.New("delivery d2: boom")

	err := NewRetryDueDeliveriesCommand(stubSweeper{attempted: 3, err: partial}).Execute(ctx, RetryDueDeliveriesMessage{Limit: 10})
	if !errors.Is(err, partial) {
		t.Fatalf("expected sweep error, got %v", err)
	}
	if count, _ := collector.Load(); count != 3 {
		t.Fatalf("expected 3 attempted deliveries, got %d", count)
	}
}

func TestCommands_NilDependenciesReturnInternalErrors(t *testing.T) {
	var cmd *RevokeTokensCommand
	err := cmd.Execute(context.Background(), RevokeTokensMessage{RefreshToken: "x"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ErrorInternal {
		t.Fatalf("expected internal envelope, got %v", err)
	}
	if err := NewPublishEventCommand(nil).Execute(context.Background(), PublishEventMessage{}); err == nil {
		t.Fatalf("expected missing publisher error")
	}
}

func TestMessages_Validate(t *testing.T) {
	cases := map[string]interface{ Validate() error }{
		"vote without application":  CastVoteMessage{Input: core.CastVoteInput{Decision: core.VoteApprove}},
		"vote with bad decision":    CastVoteMessage{Input: core.CastVoteInput{ApplicationID: "a", Decision: "maybe"}},
		"decide pending":            DecideApplicationMessage{Input: core.DecideApplicationInput{ApplicationID: "a", Status: core.ApplicationPending}},
		"issue with both":           IssueTokensMessage{UserID: "u", Provider: "discord", ExternalID: "1"},
		"issue with neither":        IssueTokensMessage{},
		"refresh without token":     RefreshTokensMessage{},
		"prune without cutoff":      PruneLogsMessage{},
		"publish without type":      PublishEventMessage{},
		"stop without session":      StopPracticeMessage{},
		"retry with negative limit": RetryDueDeliveriesMessage{Limit: -1},
	}
	for name, msg := range cases {
		err := msg.Validate()
		if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if err := (IssueTokensMessage{Provider: "discord", ExternalID: "123456"}).Validate(); err != nil {
		t.Fatalf("identity issue should validate: %v", err)
	}
}
