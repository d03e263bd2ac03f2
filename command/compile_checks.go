package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SubmitApplicationMessage]   = (*SubmitApplicationCommand)(nil)
	_ gocmd.Commander[CastVoteMessage]            = (*CastVoteCommand)(nil)
	_ gocmd.Commander[WithdrawApplicationMessage] = (*WithdrawApplicationCommand)(nil)
	_ gocmd.Commander[DecideApplicationMessage]   = (*DecideApplicationCommand)(nil)
	_ gocmd.Commander[StartPracticeMessage]       = (*StartPracticeCommand)(nil)
	_ gocmd.Commander[StopPracticeMessage]        = (*StopPracticeCommand)(nil)
	_ gocmd.Commander[IssueTokensMessage]         = (*IssueTokensCommand)(nil)
	_ gocmd.Commander[RefreshTokensMessage]       = (*RefreshTokensCommand)(nil)
	_ gocmd.Commander[RevokeTokensMessage]        = (*RevokeTokensCommand)(nil)
	_ gocmd.Commander[PruneLogsMessage]           = (*PruneLogsCommand)(nil)
	_ gocmd.Commander[PublishEventMessage]        = (*PublishEventCommand)(nil)
	_ gocmd.Commander[RetryDueDeliveriesMessage]  = (*RetryDueDeliveriesCommand)(nil)
)
