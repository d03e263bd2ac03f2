package gocommand

import (
	"fmt"

	"github.com/goliatone/go-command/runner"
	"github.com/goliatone/go-community/command"
	"github.com/goliatone/go-community/core"
	"github.com/goliatone/go-community/query"
)

// CommunityService is the facade surface behind the registered handlers.
type CommunityService interface {
	command.MutatingService
	query.ApplicationReader
	query.LogReader
	query.PracticeReader
	query.DeliveryReader
}

// RegisterCommunityHandlers subscribes every community command and query on
// bus. publisher and sweeper are optional; their commands are skipped when
// nil. On error the bus is closed.
func RegisterCommunityHandlers(
	bus *Bus,
	svc CommunityService,
	publisher core.EventPublisher,
	sweeper command.DeliverySweeper,
	runnerOpts ...runner.Option,
) error {
	if bus == nil {
		return fmt.Errorf("gocommand: bus is not configured")
	}
	if svc == nil {
		return fmt.Errorf("gocommand: community service is required")
	}

	steps := []func() error{
		func() error {
			return HandleCommand[command.SubmitApplicationMessage](bus, command.NewSubmitApplicationCommand(svc), runnerOpts...)
		},
		func() error {
			return HandleCommand[command.CastVoteMessage](bus, command.NewCastVoteCommand(svc), runnerOpts...)
		},
		func() error {
			return HandleCommand[command.WithdrawApplicationMessage](bus, command.NewWithdrawApplicationCommand(svc), runnerOpts...)
		},
		func() error {
			return HandleCommand[command.DecideApplicationMessage](bus, command.NewDecideApplicationCommand(svc), runnerOpts...)
		},
		func() error {
			return HandleCommand[command.StartPracticeMessage](bus, command.NewStartPracticeCommand(svc), runnerOpts...)
		},
		func() error {
			return HandleCommand[command.StopPracticeMessage](bus, command.NewStopPracticeCommand(svc), runnerOpts...)
		},
		func() error {
			return HandleCommand[command.IssueTokensMessage](bus, command.NewIssueTokensCommand(svc), runnerOpts...)
		},
		func() error {
			return HandleCommand[command.RefreshTokensMessage](bus, command.NewRefreshTokensCommand(svc), runnerOpts...)
		},
		func() error {
			return HandleCommand[command.RevokeTokensMessage](bus, command.NewRevokeTokensCommand(svc), runnerOpts...)
		},
		func() error {
			return HandleCommand[command.PruneLogsMessage](bus, command.NewPruneLogsCommand(svc), runnerOpts...)
		},
		func() error {
			return HandleQuery[query.GetApplicationMessage, core.Application](bus, query.NewGetApplicationQuery(svc), runnerOpts...)
		},
		func() error {
			return HandleQuery[query.ListLogsMessage, core.Page[core.LogEntry]](bus, query.NewListLogsQuery(svc), runnerOpts...)
		},
		func() error {
			return HandleQuery[query.PracticeSummaryMessage, core.PracticeSummary](bus, query.NewPracticeSummaryQuery(svc), runnerOpts...)
		},
		func() error {
			return HandleQuery[query.ListDeliveriesMessage, core.Page[core.WebhookDelivery]](bus, query.NewListDeliveriesQuery(svc), runnerOpts...)
		},
	}
	if publisher != nil {
		steps = append(steps, func() error {
			return HandleCommand[command.PublishEventMessage](bus, command.NewPublishEventCommand(publisher), runnerOpts...)
		})
	}
	if sweeper != nil {
		steps = append(steps, func() error {
			return HandleCommand[command.RetryDueDeliveriesMessage](bus, command.NewRetryDueDeliveriesCommand(sweeper), runnerOpts...)
		})
	}

	for _, step := range steps {
		if err := step(); err != nil {
			bus.Close()
			return err
		}
	}
	return nil
}

var _ CommunityService = (*core.Service)(nil)
