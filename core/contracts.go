package core

import (
	"context"
	"errors"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// ErrRefreshTokenReused is returned by RefreshTokenStore when the parent token
// was consumed by a concurrent rotation.
var ErrRefreshTokenReused = errors.New("core: refresh token already used")

type UserFilter struct {
	Query  string
	Role   Role
	Status UserStatus
	PageRequest
}

type UserStore interface {
	Create(ctx context.Context, user User) (User, error)
	Get(ctx context.Context, id string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	List(ctx context.Context, filter UserFilter) (Page[User], error)
	Update(ctx context.Context, user User) (User, error)
	SoftDelete(ctx context.Context, id string) error
}

type IdentityStore interface {
	Link(ctx context.Context, identity Identity) (Identity, error)
	Get(ctx context.Context, id string) (Identity, error)
	ListByUser(ctx context.Context, userID string) ([]Identity, error)
	FindByProvider(ctx context.Context, provider IdentityProvider, externalID string) (Identity, error)
	Update(ctx context.Context, identity Identity) (Identity, error)
	Unlink(ctx context.Context, id string) error
}

type ApplicationFilter struct {
	Status      ApplicationStatus
	ApplicantID string
	PageRequest
}

type ApplicationStore interface {
	Create(ctx context.Context, application Application) (Application, error)
	Get(ctx context.Context, id string) (Application, error)
	List(ctx context.Context, filter ApplicationFilter) (Page[Application], error)
	// UpdateStatus moves a pending application to status. It returns a
	// conflict error when the application is no longer pending.
	UpdateStatus(ctx context.Context, id string, status ApplicationStatus, decidedAt time.Time) (Application, error)
	Delete(ctx context.Context, id string) error
	CastVote(ctx context.Context, vote Vote) (Tally, error)
	ListVotes(ctx context.Context, applicationID string) ([]Vote, error)
}

type PracticeFilter struct {
	UserID string
	From   *time.Time
	To     *time.Time
	PageRequest
}

type PracticeStore interface {
	Start(ctx context.Context, session PracticeSession) (PracticeSession, error)
	Stop(ctx context.Context, id string, endedAt time.Time) (PracticeSession, error)
	Create(ctx context.Context, session PracticeSession) (PracticeSession, error)
	Get(ctx context.Context, id string) (PracticeSession, error)
	List(ctx context.Context, filter PracticeFilter) (Page[PracticeSession], error)
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context, filter PracticeFilter) (PracticeSummary, error)
}

type ProjectFilter struct {
	OwnerID string
	Status  ProjectStatus
	Tag     string
	Query   string
	PageRequest
}

type ProjectStore interface {
	Create(ctx context.Context, project Project) (Project, error)
	Get(ctx context.Context, id string) (Project, error)
	GetBySlug(ctx context.Context, slug string) (Project, error)
	List(ctx context.Context, filter ProjectFilter) (Page[Project], error)
	Update(ctx context.Context, project Project) (Project, error)
	Delete(ctx context.Context, id string) error
}

type TreasuryFilter struct {
	Chain string
	PageRequest
}

type TreasuryStore interface {
	Create(ctx context.Context, treasury Treasury) (Treasury, error)
	Get(ctx context.Context, id string) (Treasury, error)
	List(ctx context.Context, filter TreasuryFilter) (Page[Treasury], error)
	Update(ctx context.Context, treasury Treasury) (Treasury, error)
	Delete(ctx context.Context, id string) error
}

type VanishingChannelFilter struct {
	GuildID string
	PageRequest
}

type VanishingChannelStore interface {
	Upsert(ctx context.Context, channel VanishingChannel) (VanishingChannel, error)
	Get(ctx context.Context, id string) (VanishingChannel, error)
	GetByChannel(ctx context.Context, channelID string) (VanishingChannel, error)
	List(ctx context.Context, filter VanishingChannelFilter) (Page[VanishingChannel], error)
	Update(ctx context.Context, channel VanishingChannel) (VanishingChannel, error)
	Delete(ctx context.Context, id string) error
}

type WebhookFilter struct {
	OwnerID string
	Active  *bool
	PageRequest
}

type WebhookStore interface {
	Create(ctx context.Context, subscription WebhookSubscription) (WebhookSubscription, error)
	Get(ctx context.Context, id string) (WebhookSubscription, error)
	List(ctx context.Context, filter WebhookFilter) (Page[WebhookSubscription], error)
	Update(ctx context.Context, subscription WebhookSubscription) (WebhookSubscription, error)
	Delete(ctx context.Context, id string) error
	ListActiveForEvent(ctx context.Context, eventType string) ([]WebhookSubscription, error)
}

// DeliveryAttempt records the outcome of one delivery attempt.
type DeliveryAttempt struct {
	Attempts      int
	StatusCode    int
	Error         string
	At            time.Time
	NextAttemptAt *time.Time
}

type DeliveryStore interface {
	Create(ctx context.Context, delivery WebhookDelivery) (WebhookDelivery, error)
	Get(ctx context.Context, id string) (WebhookDelivery, error)
	ListBySubscription(ctx context.Context, subscriptionID string, page PageRequest) (Page[WebhookDelivery], error)
	MarkDelivered(ctx context.Context, id string, attempt DeliveryAttempt) (WebhookDelivery, error)
	MarkRetry(ctx context.Context, id string, attempt DeliveryAttempt) (WebhookDelivery, error)
	MarkFailed(ctx context.Context, id string, attempt DeliveryAttempt) (WebhookDelivery, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]WebhookDelivery, error)
}

type LogFilter struct {
	Level  LogLevel
	Source string
	UserID string
	Since  *time.Time
	Until  *time.Time
	PageRequest
}

type LogStore interface {
	Append(ctx context.Context, entry LogEntry) (LogEntry, error)
	List(ctx context.Context, filter LogFilter) (Page[LogEntry], error)
	Prune(ctx context.Context, before time.Time) (int, error)
}

type RefreshTokenStore interface {
	Create(ctx context.Context, token RefreshToken) (RefreshToken, error)
	GetByHash(ctx context.Context, tokenHash string) (RefreshToken, error)
	// MarkUsedAndCreateChild consumes parentID and inserts child atomically.
	// It returns ErrRefreshTokenReused when parentID is no longer active.
	MarkUsedAndCreateChild(ctx context.Context, parentID string, usedAt time.Time, child RefreshToken) (RefreshToken, error)
	RevokeFamily(ctx context.Context, familyID string, reason string, at time.Time) (int, error)
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}

type StoreProvider interface {
	UserStore() UserStore
	IdentityStore() IdentityStore
	ApplicationStore() ApplicationStore
	PracticeStore() PracticeStore
	ProjectStore() ProjectStore
	TreasuryStore() TreasuryStore
	VanishingChannelStore() VanishingChannelStore
	WebhookStore() WebhookStore
	DeliveryStore() DeliveryStore
	LogStore() LogStore
	RefreshTokenStore() RefreshTokenStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// AccessClaims are the verified contents of an access token.
type AccessClaims struct {
	TokenID   string
	UserID    string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenSigner interface {
	Sign(ctx context.Context, claims AccessClaims) (string, error)
	Verify(ctx context.Context, token string) (AccessClaims, error)
}

type APIKeyVerifier interface {
	Verify(ctx context.Context, key string) (bool, error)
}

type IdentityNormalizer interface {
	Normalize(provider IdentityProvider, externalID string) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type TransportRequest struct {
	Method     string
	URL        string
	Headers    map[string]string
	Body       []byte
	Timeout    time.Duration
	MaxBodyLen int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	// Truncated is set when Body was cut at the request's MaxBodyLen.
	Truncated bool
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type CommandMessage interface {
	Type() string
}
