package community

import (
	"fmt"

	"github.com/goliatone/go-community/command"
	"github.com/goliatone/go-community/core"
	"github.com/goliatone/go-community/query"
)

// CommandQueryService is the service surface the facade handlers delegate to.
type CommandQueryService interface {
	command.MutatingService
	query.ApplicationReader
	query.LogReader
	query.PracticeReader
	query.DeliveryReader
}

type Commands struct {
	SubmitApplication   *command.SubmitApplicationCommand
	CastVote            *command.CastVoteCommand
	WithdrawApplication *command.WithdrawApplicationCommand
	DecideApplication   *command.DecideApplicationCommand
	StartPractice       *command.StartPracticeCommand
	StopPractice        *command.StopPracticeCommand
	IssueTokens         *command.IssueTokensCommand
	RefreshTokens       *command.RefreshTokensCommand
	RevokeTokens        *command.RevokeTokensCommand
	PruneLogs           *command.PruneLogsCommand
	// PublishEvent is nil unless a publisher is configured.
	PublishEvent *command.PublishEventCommand
	// RetryDueDeliveries is nil unless a sweeper is configured.
	RetryDueDeliveries *command.RetryDueDeliveriesCommand
}

type Queries struct {
	GetApplication  *query.GetApplicationQuery
	ListLogs        *query.ListLogsQuery
	PracticeSummary *query.PracticeSummaryQuery
	ListDeliveries  *query.ListDeliveriesQuery
}

// Facade groups the command and query handlers built over one service.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	publisher core.EventPublisher
	sweeper   command.DeliverySweeper
}

func WithFacadePublisher(publisher core.EventPublisher) FacadeOption {
	return func(options *facadeOptions) {
		options.publisher = publisher
	}
}

func WithFacadeSweeper(sweeper command.DeliverySweeper) FacadeOption {
	return func(options *facadeOptions) {
		options.sweeper = sweeper
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("community: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		SubmitApplication:   command.NewSubmitApplicationCommand(service),
		CastVote:            command.NewCastVoteCommand(service),
		WithdrawApplication: command.NewWithdrawApplicationCommand(service),
		DecideApplication:   command.NewDecideApplicationCommand(service),
		StartPractice:       command.NewStartPracticeCommand(service),
		StopPractice:        command.NewStopPracticeCommand(service),
		IssueTokens:         command.NewIssueTokensCommand(service),
		RefreshTokens:       command.NewRefreshTokensCommand(service),
		RevokeTokens:        command.NewRevokeTokensCommand(service),
		PruneLogs:           command.NewPruneLogsCommand(service),
	}
	if cfg.publisher != nil {
		facade.commands.PublishEvent = command.NewPublishEventCommand(cfg.publisher)
	}
	if cfg.sweeper != nil {
		facade.commands.RetryDueDeliveries = command.NewRetryDueDeliveriesCommand(cfg.sweeper)
	}
	facade.queries = Queries{
		GetApplication:  query.NewGetApplicationQuery(service),
		ListLogs:        query.NewListLogsQuery(service),
		PracticeSummary: query.NewPracticeSummaryQuery(service),
		ListDeliveries:  query.NewListDeliveriesQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*core.Service)(nil)
