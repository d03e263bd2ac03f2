package command

import (
	"context"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-community/core"
)

// MutatingService is the subset of core.Service driven by commands.
type MutatingService interface {
	SubmitApplication(ctx context.Context, in core.SubmitApplicationInput) (core.Application, error)
	CastVote(ctx context.Context, in core.CastVoteInput) (core.VoteResult, error)
	WithdrawApplication(ctx context.Context, id string) (core.Application, error)
	DecideApplication(ctx context.Context, in core.DecideApplicationInput) (core.Application, error)
	StartPracticeSession(ctx context.Context, in core.StartPracticeInput) (core.PracticeSession, error)
	StopPracticeSession(ctx context.Context, id string) (core.PracticeSession, error)
	IssueTokens(ctx context.Context, userID string) (core.TokenPair, error)
	IssueForIdentity(ctx context.Context, provider, externalID string) (core.TokenPair, error)
	RefreshTokens(ctx context.Context, refreshToken string) (core.TokenPair, error)
	RevokeTokens(ctx context.Context, refreshToken string) error
	PruneLogs(ctx context.Context, before time.Time) (int, error)
}

// DeliverySweeper retries webhook deliveries whose backoff elapsed.
type DeliverySweeper interface {
	RetryDue(ctx context.Context, limit int) (int, error)
}

type SubmitApplicationCommand struct {
	service MutatingService
}

func NewSubmitApplicationCommand(service MutatingService) *SubmitApplicationCommand {
	return &SubmitApplicationCommand{service: service}
}

func (c *SubmitApplicationCommand) Execute(ctx context.Context, msg SubmitApplicationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: application service is required")
	}
	out, err := c.service.SubmitApplication(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CastVoteCommand struct {
	service MutatingService
}

func NewCastVoteCommand(service MutatingService) *CastVoteCommand {
	return &CastVoteCommand{service: service}
}

func (c *CastVoteCommand) Execute(ctx context.Context, msg CastVoteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: vote service is required")
	}
	out, err := c.service.CastVote(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type WithdrawApplicationCommand struct {
	service MutatingService
}

func NewWithdrawApplicationCommand(service MutatingService) *WithdrawApplicationCommand {
	return &WithdrawApplicationCommand{service: service}
}

func (c *WithdrawApplicationCommand) Execute(ctx context.Context, msg WithdrawApplicationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: application service is required")
	}
	out, err := c.service.WithdrawApplication(ctx, msg.ApplicationID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DecideApplicationCommand struct {
	service MutatingService
}

func NewDecideApplicationCommand(service MutatingService) *DecideApplicationCommand {
	return &DecideApplicationCommand{service: service}
}

func (c *DecideApplicationCommand) Execute(ctx context.Context, msg DecideApplicationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: application service is required")
	}
	out, err := c.service.DecideApplication(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type StartPracticeCommand struct {
	service MutatingService
}

func NewStartPracticeCommand(service MutatingService) *StartPracticeCommand {
	return &StartPracticeCommand{service: service}
}

func (c *StartPracticeCommand) Execute(ctx context.Context, msg StartPracticeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: practice service is required")
	}
	out, err := c.service.StartPracticeSession(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type StopPracticeCommand struct {
	service MutatingService
}

func NewStopPracticeCommand(service MutatingService) *StopPracticeCommand {
	return &StopPracticeCommand{service: service}
}

func (c *StopPracticeCommand) Execute(ctx context.Context, msg StopPracticeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: practice service is required")
	}
	out, err := c.service.StopPracticeSession(ctx, msg.SessionID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type IssueTokensCommand struct {
	service MutatingService
}

func NewIssueTokensCommand(service MutatingService) *IssueTokensCommand {
	return &IssueTokensCommand{service: service}
}

func (c *IssueTokensCommand) Execute(ctx context.Context, msg IssueTokensMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: token service is required")
	}
	var (
		out core.TokenPair
		err error
	)
	if strings.TrimSpace(msg.UserID) != "" {
		out, err = c.service.IssueTokens(ctx, msg.UserID)
	} else {
		out, err = c.service.IssueForIdentity(ctx, msg.Provider, msg.ExternalID)
	}
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshTokensCommand struct {
	service MutatingService
}

func NewRefreshTokensCommand(service MutatingService) *RefreshTokensCommand {
	return &RefreshTokensCommand{service: service}
}

func (c *RefreshTokensCommand) Execute(ctx context.Context, msg RefreshTokensMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: token service is required")
	}
	out, err := c.service.RefreshTokens(ctx, msg.RefreshToken)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevokeTokensCommand struct {
	service MutatingService
}

func NewRevokeTokensCommand(service MutatingService) *RevokeTokensCommand {
	return &RevokeTokensCommand{service: service}
}

func (c *RevokeTokensCommand) Execute(ctx context.Context, msg RevokeTokensMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: token service is required")
	}
	return c.service.RevokeTokens(ctx, msg.RefreshToken)
}

type PruneLogsCommand struct {
	service MutatingService
}

func NewPruneLogsCommand(service MutatingService) *PruneLogsCommand {
	return &PruneLogsCommand{service: service}
}

func (c *PruneLogsCommand) Execute(ctx context.Context, msg PruneLogsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: log service is required")
	}
	out, err := c.service.PruneLogs(ctx, msg.Before)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PublishEventCommand struct {
	publisher core.EventPublisher
}

func NewPublishEventCommand(publisher core.EventPublisher) *PublishEventCommand {
	return &PublishEventCommand{publisher: publisher}
}

func (c *PublishEventCommand) Execute(ctx context.Context, msg PublishEventMessage) error {
	if c == nil || c.publisher == nil {
		return commandDependencyError("command: event publisher is required")
	}
	return c.publisher.Publish(ctx, msg.Event)
}

type RetryDueDeliveriesCommand struct {
	sweeper DeliverySweeper
}

func NewRetryDueDeliveriesCommand(sweeper DeliverySweeper) *RetryDueDeliveriesCommand {
	return &RetryDueDeliveriesCommand{sweeper: sweeper}
}

func (c *RetryDueDeliveriesCommand) Execute(ctx context.Context, msg RetryDueDeliveriesMessage) error {
	if c == nil || c.sweeper == nil {
		return commandDependencyError("command: delivery sweeper is required")
	}
	out, err := c.sweeper.RetryDue(ctx, msg.Limit)
	storeResult(ctx, out)
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
