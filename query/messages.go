package query

import (
	"strings"

	"github.com/goliatone/go-community/core"
)

const (
	TypeGetApplication  = "community.query.application.get"
	TypeListLogs        = "community.query.logs.list"
	TypePracticeSummary = "community.query.practice.summary"
	TypeListDeliveries  = "community.query.webhooks.deliveries"
)

type GetApplicationMessage struct {
	ApplicationID string
}

func (GetApplicationMessage) Type() string { return TypeGetApplication }

func (m GetApplicationMessage) Validate() error {
	if strings.TrimSpace(m.ApplicationID) == "" {
		return queryValidationError("application_id", "application id is required")
	}
	return nil
}

type ListLogsMessage struct {
	Filter core.LogFilter
}

func (ListLogsMessage) Type() string { return TypeListLogs }

func (m ListLogsMessage) Validate() error {
	if err := validatePage(m.Filter.PageRequest); err != nil {
		return err
	}
	if m.Filter.Level != "" && !m.Filter.Level.Valid() {
		return queryValidationError("level", "unknown log level")
	}
	if m.Filter.Since != nil && m.Filter.Until != nil && m.Filter.Until.Before(*m.Filter.Since) {
		return queryValidationError("until", "until must not be before since")
	}
	return nil
}

type PracticeSummaryMessage struct {
	Filter core.PracticeFilter
}

func (PracticeSummaryMessage) Type() string { return TypePracticeSummary }

func (m PracticeSummaryMessage) Validate() error {
	if m.Filter.From != nil && m.Filter.To != nil && m.Filter.To.Before(*m.Filter.From) {
		return queryValidationError("to", "to must not be before from")
	}
	return nil
}

type ListDeliveriesMessage struct {
	SubscriptionID string
	Page           core.PageRequest
}

func (ListDeliveriesMessage) Type() string { return TypeListDeliveries }

func (m ListDeliveriesMessage) Validate() error {
	if strings.TrimSpace(m.SubscriptionID) == "" {
		return queryValidationError("subscription_id", "subscription id is required")
	}
	return validatePage(m.Page)
}

func validatePage(page core.PageRequest) error {
	if page.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if page.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}
