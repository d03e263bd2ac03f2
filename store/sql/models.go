package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type userRecord struct {
	bun.BaseModel `bun:"table:community_users,alias:cu"`

	ID          string     `bun:"id,pk"`
	Username    string     `bun:"username,notnull"`
	DisplayName string     `bun:"display_name,notnull"`
	AvatarURL   string     `bun:"avatar_url,notnull"`
	Bio         string     `bun:"bio,notnull"`
	Role        string     `bun:"role,notnull"`
	Status      string     `bun:"status,notnull"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt   *time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

type identityRecord struct {
	bun.BaseModel `bun:"table:community_identities,alias:ci"`

	ID         string         `bun:"id,pk"`
	UserID     string         `bun:"user_id,notnull"`
	Provider   string         `bun:"provider,notnull"`
	ExternalID string         `bun:"external_id,notnull"`
	Handle     string         `bun:"handle,notnull"`
	Verified   bool           `bun:"verified,notnull"`
	Metadata   map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type applicationRecord struct {
	bun.BaseModel `bun:"table:community_applications,alias:ca"`

	ID          string     `bun:"id,pk"`
	ApplicantID string     `bun:"applicant_id,notnull"`
	Status      string     `bun:"status,notnull"`
	Motivation  string     `bun:"motivation,notnull"`
	Links       []string   `bun:"links,type:jsonb,notnull"`
	Approvals   int        `bun:"approvals,notnull"`
	Rejections  int        `bun:"rejections,notnull"`
	Abstentions int        `bun:"abstentions,notnull"`
	DecidedAt   *time.Time `bun:"decided_at,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type voteRecord struct {
	bun.BaseModel `bun:"table:community_votes,alias:cv"`

	ID            string    `bun:"id,pk"`
	ApplicationID string    `bun:"application_id,notnull"`
	VoterID       string    `bun:"voter_id,notnull"`
	Decision      string    `bun:"decision,notnull"`
	Comment       string    `bun:"comment,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type practiceSessionRecord struct {
	bun.BaseModel `bun:"table:community_practice_sessions,alias:cps"`

	ID              string     `bun:"id,pk"`
	UserID          string     `bun:"user_id,notnull"`
	Topic           string     `bun:"topic,notnull"`
	Notes           string     `bun:"notes,notnull"`
	StartedAt       time.Time  `bun:"started_at,notnull"`
	EndedAt         *time.Time `bun:"ended_at,nullzero"`
	DurationSeconds int64      `bun:"duration_seconds,notnull"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type projectRecord struct {
	bun.BaseModel `bun:"table:community_projects,alias:cpr"`

	ID          string    `bun:"id,pk"`
	OwnerID     string    `bun:"owner_id,notnull"`
	Name        string    `bun:"name,notnull"`
	Slug        string    `bun:"slug,notnull"`
	Description string    `bun:"description,notnull"`
	URL         string    `bun:"url,notnull"`
	RepoURL     string    `bun:"repo_url,notnull"`
	Tags        []string  `bun:"tags,type:jsonb,notnull"`
	Status      string    `bun:"status,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type treasuryRecord struct {
	bun.BaseModel `bun:"table:community_treasuries,alias:ct"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull"`
	Chain       string    `bun:"chain,notnull"`
	Address     string    `bun:"address,notnull"`
	Description string    `bun:"description,notnull"`
	CreatedBy   string    `bun:"created_by,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type vanishingChannelRecord struct {
	bun.BaseModel `bun:"table:community_vanishing_channels,alias:cvc"`

	ID                 string    `bun:"id,pk"`
	GuildID            string    `bun:"guild_id,notnull"`
	ChannelID          string    `bun:"channel_id,notnull"`
	VanishAfterSeconds int       `bun:"vanish_after_seconds,notnull"`
	Enabled            bool      `bun:"enabled,notnull"`
	CreatedBy          string    `bun:"created_by,notnull"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookRecord struct {
	bun.BaseModel `bun:"table:community_webhooks,alias:cw"`

	ID              string    `bun:"id,pk"`
	OwnerID         string    `bun:"owner_id,notnull"`
	URL             string    `bun:"url,notnull"`
	Description     string    `bun:"description,notnull"`
	EventTypes      []string  `bun:"event_types,type:jsonb,notnull"`
	Active          bool      `bun:"active,notnull"`
	EncryptedSecret []byte    `bun:"encrypted_secret,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:community_webhook_deliveries,alias:cwd"`

	ID             string         `bun:"id,pk"`
	SubscriptionID string         `bun:"subscription_id,notnull"`
	EventID        string         `bun:"event_id,notnull"`
	EventType      string         `bun:"event_type,notnull"`
	Payload        map[string]any `bun:"payload,type:jsonb,notnull"`
	Status         string         `bun:"status,notnull"`
	Attempts       int            `bun:"attempts,notnull"`
	LastStatusCode int            `bun:"last_status_code,notnull"`
	LastError      string         `bun:"last_error,notnull"`
	NextAttemptAt  *time.Time     `bun:"next_attempt_at,nullzero"`
	DeliveredAt    *time.Time     `bun:"delivered_at,nullzero"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type logEntryRecord struct {
	bun.BaseModel `bun:"table:community_logs,alias:cl"`

	ID        string         `bun:"id,pk"`
	Level     string         `bun:"level,notnull"`
	Source    string         `bun:"source,notnull"`
	Message   string         `bun:"message,notnull"`
	UserID    string         `bun:"user_id,notnull"`
	RequestID string         `bun:"request_id,notnull"`
	Fields    map[string]any `bun:"fields,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type refreshTokenRecord struct {
	bun.BaseModel `bun:"table:community_refresh_tokens,alias:crt"`

	ID            string     `bun:"id,pk"`
	UserID        string     `bun:"user_id,notnull"`
	FamilyID      string     `bun:"family_id,notnull"`
	ParentID      string     `bun:"parent_id,notnull"`
	TokenHash     string     `bun:"token_hash,notnull"`
	Status        string     `bun:"status,notnull"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull"`
	UsedAt        *time.Time `bun:"used_at,nullzero"`
	RevokedAt     *time.Time `bun:"revoked_at,nullzero"`
	RevokedReason string     `bun:"revoked_reason,notnull"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
