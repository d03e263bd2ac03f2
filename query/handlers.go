package query

import (
	"context"

	"github.com/goliatone/go-community/core"
)

type ApplicationReader interface {
	GetApplication(ctx context.Context, id string) (core.Application, error)
}

type LogReader interface {
	ListLogs(ctx context.Context, filter core.LogFilter) (core.Page[core.LogEntry], error)
}

type PracticeReader interface {
	PracticeSummary(ctx context.Context, filter core.PracticeFilter) (core.PracticeSummary, error)
}

type DeliveryReader interface {
	ListDeliveries(ctx context.Context, subscriptionID string, page core.PageRequest) (core.Page[core.WebhookDelivery], error)
}

type GetApplicationQuery struct {
	reader ApplicationReader
}

func NewGetApplicationQuery(reader ApplicationReader) *GetApplicationQuery {
	return &GetApplicationQuery{reader: reader}
}

func (q *GetApplicationQuery) Query(ctx context.Context, msg GetApplicationMessage) (core.Application, error) {
	if q == nil || q.reader == nil {
		return core.Application{}, queryDependencyError("query: application reader is required")
	}
	return q.reader.GetApplication(ctx, msg.ApplicationID)
}

type ListLogsQuery struct {
	reader LogReader
}

func NewListLogsQuery(reader LogReader) *ListLogsQuery {
	return &ListLogsQuery{reader: reader}
}

func (q *ListLogsQuery) Query(ctx context.Context, msg ListLogsMessage) (core.Page[core.LogEntry], error) {
	if q == nil || q.reader == nil {
		return core.Page[core.LogEntry]{}, queryDependencyError("query: log reader is required")
	}
	return q.reader.ListLogs(ctx, msg.Filter)
}

type PracticeSummaryQuery struct {
	reader PracticeReader
}

func NewPracticeSummaryQuery(reader PracticeReader) *PracticeSummaryQuery {
	return &PracticeSummaryQuery{reader: reader}
}

func (q *PracticeSummaryQuery) Query(ctx context.Context, msg PracticeSummaryMessage) (core.PracticeSummary, error) {
	if q == nil || q.reader == nil {
		return core.PracticeSummary{}, queryDependencyError("query: practice reader is required")
	}
	return q.reader.PracticeSummary(ctx, msg.Filter)
}

type ListDeliveriesQuery struct {
	reader DeliveryReader
}

func NewListDeliveriesQuery(reader DeliveryReader) *ListDeliveriesQuery {
	return &ListDeliveriesQuery{reader: reader}
}

func (q *ListDeliveriesQuery) Query(ctx context.Context, msg ListDeliveriesMessage) (core.Page[core.WebhookDelivery], error) {
	if q == nil || q.reader == nil {
		return core.Page[core.WebhookDelivery]{}, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.ListDeliveries(ctx, msg.SubscriptionID, msg.Page)
}
