package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-community/core"
)

const (
	TypeSubmitApplication   = "community.command.application.submit"
	TypeCastVote            = "community.command.application.vote"
	TypeWithdrawApplication = "community.command.application.withdraw"
	TypeDecideApplication   = "community.command.application.decide"
	TypeStartPractice       = "community.command.practice.start"
	TypeStopPractice        = "community.command.practice.stop"
	TypeIssueTokens         = "community.command.auth.issue"
	TypeRefreshTokens       = "community.command.auth.refresh"
	TypeRevokeTokens        = "community.command.auth.revoke"
	TypePublishEvent        = "community.command.events.publish"
	TypeRetryDueDeliveries  = "community.command.webhooks.retry_due"
	TypePruneLogs           = "community.command.logs.prune"
)

type SubmitApplicationMessage struct {
	Input core.SubmitApplicationInput
}

func (SubmitApplicationMessage) Type() string { return TypeSubmitApplication }

func (m SubmitApplicationMessage) Validate() error {
	if strings.TrimSpace(m.Input.Motivation) == "" {
		return commandValidationError("motivation", "motivation is required")
	}
	return nil
}

type CastVoteMessage struct {
	Input core.CastVoteInput
}

func (CastVoteMessage) Type() string { return TypeCastVote }

func (m CastVoteMessage) Validate() error {
	if strings.TrimSpace(m.Input.ApplicationID) == "" {
		return commandValidationError("application_id", "application id is required")
	}
	if !m.Input.Decision.Valid() {
		return commandValidationError("decision", "decision must be approve, reject or abstain")
	}
	return nil
}

type WithdrawApplicationMessage struct {
	ApplicationID string
}

func (WithdrawApplicationMessage) Type() string { return TypeWithdrawApplication }

func (m WithdrawApplicationMessage) Validate() error {
	if strings.TrimSpace(m.ApplicationID) == "" {
		return commandValidationError("application_id", "application id is required")
	}
	return nil
}

type DecideApplicationMessage struct {
	Input core.DecideApplicationInput
}

func (DecideApplicationMessage) Type() string { return TypeDecideApplication }

func (m DecideApplicationMessage) Validate() error {
	if strings.TrimSpace(m.Input.ApplicationID) == "" {
		return commandValidationError("application_id", "application id is required")
	}
	switch m.Input.Status {
	case core.ApplicationApproved, core.ApplicationRejected:
		return nil
	default:
		return commandValidationError("status", "status must be approved or rejected")
	}
}

type StartPracticeMessage struct {
	Input core.StartPracticeInput
}

func (StartPracticeMessage) Type() string { return TypeStartPractice }

func (StartPracticeMessage) Validate() error { return nil }

type StopPracticeMessage struct {
	SessionID string
}

func (StopPracticeMessage) Type() string { return TypeStopPractice }

func (m StopPracticeMessage) Validate() error {
	if strings.TrimSpace(m.SessionID) == "" {
		return commandValidationError("session_id", "session id is required")
	}
	return nil
}

type IssueTokensMessage struct {
	UserID     string
	Provider   string
	ExternalID string
}

func (IssueTokensMessage) Type() string { return TypeIssueTokens }

func (m IssueTokensMessage) Validate() error {
	hasUser := strings.TrimSpace(m.UserID) != ""
	hasIdentity := strings.TrimSpace(m.Provider) != "" && strings.TrimSpace(m.ExternalID) != ""
	if hasUser == hasIdentity {
		return commandValidationError("user_id", "exactly one of user_id or provider+external_id is required")
	}
	return nil
}

type RefreshTokensMessage struct {
	RefreshToken string
}

func (RefreshTokensMessage) Type() string { return TypeRefreshTokens }

func (m RefreshTokensMessage) Validate() error {
	if strings.TrimSpace(m.RefreshToken) == "" {
		return commandValidationError("refresh_token", "refresh token is required")
	}
	return nil
}

type RevokeTokensMessage struct {
	RefreshToken string
}

func (RevokeTokensMessage) Type() string { return TypeRevokeTokens }

func (m RevokeTokensMessage) Validate() error {
	if strings.TrimSpace(m.RefreshToken) == "" {
		return commandValidationError("refresh_token", "refresh token is required")
	}
	return nil
}

type PublishEventMessage struct {
	Event core.Event
}

func (PublishEventMessage) Type() string { return TypePublishEvent }

func (m PublishEventMessage) Validate() error {
	if strings.TrimSpace(m.Event.Type) == "" {
		return commandValidationError("type", "event type is required")
	}
	return nil
}

type RetryDueDeliveriesMessage struct {
	Limit int
}

func (RetryDueDeliveriesMessage) Type() string { return TypeRetryDueDeliveries }

func (m RetryDueDeliveriesMessage) Validate() error {
	if m.Limit < 0 {
		return commandValidationError("limit", "limit must be >= 0")
	}
	return nil
}

type PruneLogsMessage struct {
	Before time.Time
}

func (PruneLogsMessage) Type() string { return TypePruneLogs }

func (m PruneLogsMessage) Validate() error {
	if m.Before.IsZero() {
		return commandValidationError("before", "cutoff is required")
	}
	return nil
}
