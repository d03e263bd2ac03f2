package core

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAnonymous Role = "anon"
	RoleApplicant Role = "applicant"
	RoleMember    Role = "member"
	RoleAdmin     Role = "admin"
	RoleService   Role = "service"
)

// Privileged reports whether the role bypasses ownership checks.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleService
}

func (r Role) Valid() bool {
	switch r {
	case RoleApplicant, RoleMember, RoleAdmin:
		return true
	default:
		return false
	}
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	Role        Role       `json:"role"`
	Status      UserStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (u User) Active() bool {
	return u.Status == UserStatusActive
}

type IdentityProvider string

const (
	ProviderWallet    IdentityProvider = "wallet"
	ProviderDiscord   IdentityProvider = "discord"
	ProviderLens      IdentityProvider = "lens"
	ProviderFarcaster IdentityProvider = "farcaster"
	ProviderTelegram  IdentityProvider = "telegram"
	ProviderGitHub    IdentityProvider = "github"
)

func IdentityProviders() []IdentityProvider {
	return []IdentityProvider{
		ProviderWallet,
		ProviderDiscord,
		ProviderLens,
		ProviderFarcaster,
		ProviderTelegram,
		ProviderGitHub,
	}
}

func ParseIdentityProvider(value string) (IdentityProvider, bool) {
	candidate := IdentityProvider(strings.ToLower(strings.TrimSpace(value)))
	for _, provider := range IdentityProviders() {
		if provider == candidate {
			return provider, true
		}
	}
	return "", false
}

type Identity struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Provider   IdentityProvider `json:"provider"`
	ExternalID string           `json:"external_id"`
	Handle     string           `json:"handle,omitempty"`
	Verified   bool             `json:"verified"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationApproved  ApplicationStatus = "approved"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

func (s ApplicationStatus) Terminal() bool {
	return s != ApplicationPending
}

type Application struct {
	ID          string            `json:"id"`
	ApplicantID string            `json:"applicant_id"`
	Status      ApplicationStatus `json:"status"`
	Motivation  string            `json:"motivation"`
	Links       []string          `json:"links"`
	Approvals   int               `json:"approvals"`
	Rejections  int               `json:"rejections"`
	Abstentions int               `json:"abstentions"`
	DecidedAt   *time.Time        `json:"decided_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type VoteDecision string

const (
	VoteApprove VoteDecision = "approve"
	VoteReject  VoteDecision = "reject"
	VoteAbstain VoteDecision = "abstain"
)

func (d VoteDecision) Valid() bool {
	return d == VoteApprove || d == VoteReject || d == VoteAbstain
}

type Vote struct {
	ID            string       `json:"id"`
	ApplicationID string       `json:"application_id"`
	VoterID       string       `json:"voter_id"`
	Decision      VoteDecision `json:"decision"`
	Comment       string       `json:"comment,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type Tally struct {
	Approvals   int `json:"approvals"`
	Rejections  int `json:"rejections"`
	Abstentions int `json:"abstentions"`
}

type PracticeSession struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Topic           string     `json:"topic"`
	Notes           string     `json:"notes,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (p PracticeSession) Active() bool {
	return p.EndedAt == nil
}

type PracticeSummary struct {
	UserID         string     `json:"user_id,omitempty"`
	From           *time.Time `json:"from,omitempty"`
	To             *time.Time `json:"to,omitempty"`
	Sessions       int        `json:"sessions"`
	TotalSeconds   int64      `json:"total_seconds"`
	LongestSeconds int64      `json:"longest_seconds"`
}

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

type Project struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	RepoURL     string        `json:"repo_url,omitempty"`
	Tags        []string      `json:"tags"`
	Status      ProjectStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type Treasury struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Chain       string    `json:"chain"`
	Address     string    `json:"address"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	MinVanishAfterSeconds = 60
	MaxVanishAfterSeconds = 30 * 24 * 60 * 60
)

type VanishingChannel struct {
	ID                 string    `json:"id"`
	GuildID            string    `json:"guild_id"`
	ChannelID          string    `json:"channel_id"`
	VanishAfterSeconds int       `json:"vanish_after_seconds"`
	Enabled            bool      `json:"enabled"`
	CreatedBy          string    `json:"created_by,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// WildcardEvent subscribes a webhook to every event type.
const WildcardEvent = "*"

type WebhookSubscription struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id,omitempty"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	EventTypes  []string  `json:"event_types"`
	Active      bool      `json:"active"`
	Secret      string    `json:"secret,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	EncryptedSecret []byte `json:"-"`
}

func (w WebhookSubscription) Matches(eventType string) bool {
	eventType = strings.TrimSpace(eventType)
	for _, candidate := range w.EventTypes {
		if candidate == WildcardEvent || candidate == eventType {
			return true
		}
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryRetrying  DeliveryStatus = "retrying"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

type WebhookDelivery struct {
	ID             string         `json:"id"`
	SubscriptionID string         `json:"subscription_id"`
	EventID        string         `json:"event_id"`
	EventType      string         `json:"event_type"`
	Payload        map[string]any `json:"payload"`
	Status         DeliveryStatus `json:"status"`
	Attempts       int            `json:"attempts"`
	LastStatusCode int            `json:"last_status_code,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	NextAttemptAt  *time.Time     `json:"next_attempt_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

func (l LogLevel) Valid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	default:
		return false
	}
}

type LogEntry struct {
	ID        string         `json:"id"`
	Level     LogLevel       `json:"level"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	UserID    string         `json:"user_id,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type RefreshTokenStatus string

const (
	RefreshTokenActive  RefreshTokenStatus = "active"
	RefreshTokenUsed    RefreshTokenStatus = "used"
	RefreshTokenRevoked RefreshTokenStatus = "revoked"
)

type RefreshToken struct {
	ID            string
	UserID        string
	FamilyID      string
	ParentID      string
	TokenHash     string
	Status        RefreshTokenStatus
	ExpiresAt     time.Time
	UsedAt        *time.Time
	RevokedAt     *time.Time
	RevokedReason string
	CreatedAt     time.Time
}

// TokenPair is returned by every successful issue or rotation.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	UserID           string    `json:"user_id"`
	Role             Role      `json:"role"`
}

type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	Data      map[string]any `json:"data"`
}

const (
	EventUserCreated              = "user.created"
	EventUserUpdated              = "user.updated"
	EventUserDeleted              = "user.deleted"
	EventIdentityLinked           = "identity.linked"
	EventIdentityUnlinked         = "identity.unlinked"
	EventApplicationSubmitted     = "application.submitted"
	EventApplicationApproved      = "application.approved"
	EventApplicationRejected      = "application.rejected"
	EventApplicationWithdrawn     = "application.withdrawn"
	EventVoteCast                 = "vote.cast"
	EventPracticeSessionStarted   = "practice_session.started"
	EventPracticeSessionCompleted = "practice_session.completed"
	EventProjectCreated           = "project.created"
	EventProjectUpdated           = "project.updated"
	EventProjectDeleted           = "project.deleted"
	EventTreasuryCreated          = "treasury.created"
	EventTreasuryUpdated          = "treasury.updated"
	EventTreasuryDeleted          = "treasury.deleted"
	EventVanishingChannelUpdated  = "vanishing_channel.updated"
	EventVanishingChannelDeleted  = "vanishing_channel.deleted"
	EventWebhookPing              = "webhook.ping"
)

type PageRequest struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}

func (p PageRequest) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PerPage
}

func (p PageRequest) Limit() int {
	return p.Normalize().PerPage
}

type Page[T any] struct {
	Items   []T `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func NewPage[T any](items []T, total int, req PageRequest) Page[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: req.Page, PerPage: req.PerPage}
}
