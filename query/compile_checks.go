package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-community/core"
)

var (
	_ gocmd.Querier[GetApplicationMessage, core.Application]                = (*GetApplicationQuery)(nil)
	_ gocmd.Querier[ListLogsMessage, core.Page[core.LogEntry]]              = (*ListLogsQuery)(nil)
	_ gocmd.Querier[PracticeSummaryMessage, core.PracticeSummary]           = (*PracticeSummaryQuery)(nil)
	_ gocmd.Querier[ListDeliveriesMessage, core.Page[core.WebhookDelivery]] = (*ListDeliveriesQuery)(nil)
)
