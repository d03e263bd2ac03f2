package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type testSecretProvider struct{}

func (testSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	for i := range plaintext {
		out[i] = plaintext[len(plaintext)-1-i]
	}
	return append([]byte("enc:"), out...), nil
}

func (testSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	body := strings.TrimPrefix(string(ciphertext), "enc:")
	out := make([]byte, len(body))
	for i := range body {
		out[i] = body[len(body)-1-i]
	}
	return out, nil
}

// stubSigner encodes claims as "user|role|expiry" so tests can forge tokens.
type stubSigner struct{}

func (stubSigner) Sign(_ context.Context, claims AccessClaims) (string, error) {
	return fmt.Sprintf("%s|%s|%d", claims.UserID, claims.Role, claims.ExpiresAt.Unix()), nil
}

func (stubSigner) Verify(_ context.Context, token string) (AccessClaims, error) {
	parts := strings.Split(token, "|")
	if len(parts) != 3 {
		return AccessClaims{}, fmt.Errorf("malformed token")
	}
	return AccessClaims{UserID: parts[0], Role: Role(parts[1])}, nil
}

type stubKeyVerifier struct {
	key string
}

func (v stubKeyVerifier) Verify(_ context.Context, key string) (bool, error) {
	return key == v.key, nil
}

type captureEvents struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureEvents) Publish(_ context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureEvents) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, event := range c.events {
		out = append(out, event.Type)
	}
	return out
}

func (c *captureEvents) has(eventType string) bool {
	for _, candidate := range c.types() {
		if candidate == eventType {
			return true
		}
	}
	return false
}

type memoryStores struct {
	users         *memoryUserStore
	identities    *memoryIdentityStore
	applications  *memoryApplicationStore
	practice      *memoryPracticeStore
	logs          *memoryLogStore
	refreshTokens *memoryRefreshTokenStore
	webhooks      *memoryWebhookStore
}

func newMemoryStores() *memoryStores {
	return &memoryStores{
		users:         &memoryUserStore{records: map[string]User{}, deleted: map[string]bool{}},
		identities:    &memoryIdentityStore{records: map[string]Identity{}},
		applications:  &memoryApplicationStore{records: map[string]Application{}},
		practice:      &memoryPracticeStore{records: map[string]PracticeSession{}},
		logs:          &memoryLogStore{},
		refreshTokens: &memoryRefreshTokenStore{records: map[string]RefreshToken{}},
		webhooks:      &memoryWebhookStore{records: map[string]WebhookSubscription{}},
	}
}

func (m *memoryStores) UserStore() UserStore                         { return m.users }
func (m *memoryStores) IdentityStore() IdentityStore                 { return m.identities }
func (m *memoryStores) ApplicationStore() ApplicationStore           { return m.applications }
func (m *memoryStores) PracticeStore() PracticeStore                 { return m.practice }
func (m *memoryStores) ProjectStore() ProjectStore                   { return nil }
func (m *memoryStores) TreasuryStore() TreasuryStore                 { return nil }
func (m *memoryStores) VanishingChannelStore() VanishingChannelStore { return nil }
func (m *memoryStores) WebhookStore() WebhookStore                   { return m.webhooks }
func (m *memoryStores) DeliveryStore() DeliveryStore                 { return nil }
func (m *memoryStores) LogStore() LogStore                           { return m.logs }
func (m *memoryStores) RefreshTokenStore() RefreshTokenStore         { return m.refreshTokens }

func paginate[T any](items []T, req PageRequest) Page[T] {
	req = req.Normalize()
	total := len(items)
	start := req.Offset()
	if start > total {
		start = total
	}
	end := start + req.Limit()
	if end > total {
		end = total
	}
	return NewPage(items[start:end], total, req)
}

type memoryUserStore struct {
	mu      sync.Mutex
	records map[string]User
	deleted map[string]bool
}

func (s *memoryUserStore) Create(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.Username == user.Username {
			return User{}, Conflict("username taken")
		}
	}
	s.records[user.ID] = user
	return user, nil
}

func (s *memoryUserStore) Get(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.records[id]
	if !ok || s.deleted[id] {
		return User{}, NotFound("user", id)
	}
	return user, nil
}

func (s *memoryUserStore) GetByUsername(_ context.Context, username string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, user := range s.records {
		if user.Username == username && !s.deleted[id] {
			return user, nil
		}
	}
	return User{}, NotFound("user", username)
}

func (s *memoryUserStore) List(_ context.Context, filter UserFilter) (Page[User], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []User{}
	for id, user := range s.records {
		if s.deleted[id] {
			continue
		}
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		if filter.Status != "" && user.Status != filter.Status {
			continue
		}
		if filter.Query != "" && !strings.Contains(user.Username, strings.ToLower(filter.Query)) {
			continue
		}
		items = append(items, user)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Username < items[j].Username })
	return paginate(items, filter.PageRequest), nil
}

func (s *memoryUserStore) Update(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[user.ID]; !ok || s.deleted[user.ID] {
		return User{}, NotFound("user", user.ID)
	}
	s.records[user.ID] = user
	return user, nil
}

func (s *memoryUserStore) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok || s.deleted[id] {
		return NotFound("user", id)
	}
	s.deleted[id] = true
	return nil
}

type memoryIdentityStore struct {
	mu      sync.Mutex
	records map[string]Identity
}

func (s *memoryIdentityStore) Link(_ context.Context, identity Identity) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.Provider == identity.Provider && existing.ExternalID == identity.ExternalID {
			return Identity{}, Conflict("identity already linked")
		}
	}
	s.records[identity.ID] = identity
	return identity, nil
}

func (s *memoryIdentityStore) Get(_ context.Context, id string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.records[id]
	if !ok {
		return Identity{}, NotFound("identity", id)
	}
	return identity, nil
}

func (s *memoryIdentityStore) ListByUser(_ context.Context, userID string) ([]Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Identity{}
	for _, identity := range s.records {
		if identity.UserID == userID {
			out = append(out, identity)
		}
	}
	return out, nil
}

func (s *memoryIdentityStore) FindByProvider(_ context.Context, provider IdentityProvider, externalID string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, identity := range s.records {
		if identity.Provider == provider && identity.ExternalID == externalID {
			return identity, nil
		}
	}
	return Identity{}, NotFound("identity", externalID)
}

func (s *memoryIdentityStore) Update(_ context.Context, identity Identity) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[identity.ID] = identity
	return identity, nil
}

func (s *memoryIdentityStore) Unlink(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

type memoryApplicationStore struct {
	mu      sync.Mutex
	records map[string]Application
	votes   []Vote

	// decidedElsewhere is applied to the record right before UpdateStatus runs.
	decidedElsewhere ApplicationStatus
}

func (s *memoryApplicationStore) Create(_ context.Context, application Application) (Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[application.ID] = application
	return application, nil
}

func (s *memoryApplicationStore) Get(_ context.Context, id string) (Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	application, ok := s.records[id]
	if !ok {
		return Application{}, NotFound("application", id)
	}
	return application, nil
}

func (s *memoryApplicationStore) List(_ context.Context, filter ApplicationFilter) (Page[Application], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []Application{}
	for _, application := range s.records {
		if filter.Status != "" && application.Status != filter.Status {
			continue
		}
		if filter.ApplicantID != "" && application.ApplicantID != filter.ApplicantID {
			continue
		}
		items = append(items, application)
	}
	return paginate(items, filter.PageRequest), nil
}

func (s *memoryApplicationStore) UpdateStatus(_ context.Context, id string, status ApplicationStatus, decidedAt time.Time) (Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	application, ok := s.records[id]
	if !ok {
		return Application{}, NotFound("application", id)
	}
	if s.decidedElsewhere != "" {
		application.Status = s.decidedElsewhere
		application.DecidedAt = &decidedAt
		s.records[id] = application
	}
	if application.Status != ApplicationPending {
		return Application{}, Conflict("application is no longer pending")
	}
	application.Status = status
	application.DecidedAt = &decidedAt
	s.records[id] = application
	return application, nil
}

func (s *memoryApplicationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *memoryApplicationStore) CastVote(_ context.Context, vote Vote) (Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tally := Tally{}
	for _, existing := range s.votes {
		if existing.ApplicationID == vote.ApplicationID && existing.VoterID == vote.VoterID {
			return Tally{}, Conflict("vote already cast")
		}
	}
	s.votes = append(s.votes, vote)
	for _, existing := range s.votes {
		if existing.ApplicationID != vote.ApplicationID {
			continue
		}
		switch existing.Decision {
		case VoteApprove:
			tally.Approvals++
		case VoteReject:
			tally.Rejections++
		default:
			tally.Abstentions++
		}
	}
	application := s.records[vote.ApplicationID]
	application.Approvals = tally.Approvals
	application.Rejections = tally.Rejections
	application.Abstentions = tally.Abstentions
	s.records[vote.ApplicationID] = application
	return tally, nil
}

func (s *memoryApplicationStore) ListVotes(_ context.Context, applicationID string) ([]Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Vote{}
	for _, vote := range s.votes {
		if vote.ApplicationID == applicationID {
			out = append(out, vote)
		}
	}
	return out, nil
}

type memoryPracticeStore struct {
	mu      sync.Mutex
	records map[string]PracticeSession
}

func (s *memoryPracticeStore) Start(_ context.Context, session PracticeSession) (PracticeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.UserID == session.UserID && existing.Active() {
			return PracticeSession{}, Conflict("an active practice session already exists")
		}
	}
	s.records[session.ID] = session
	return session, nil
}

func (s *memoryPracticeStore) Stop(_ context.Context, id string, endedAt time.Time) (PracticeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.records[id]
	if !ok {
		return PracticeSession{}, NotFound("practice session", id)
	}
	session.EndedAt = &endedAt
	session.DurationSeconds = PracticeDuration(session.StartedAt, endedAt)
	s.records[id] = session
	return session, nil
}

func (s *memoryPracticeStore) Create(_ context.Context, session PracticeSession) (PracticeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[session.ID] = session
	return session, nil
}

func (s *memoryPracticeStore) Get(_ context.Context, id string) (PracticeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.records[id]
	if !ok {
		return PracticeSession{}, NotFound("practice session", id)
	}
	return session, nil
}

func (s *memoryPracticeStore) filtered(filter PracticeFilter) []PracticeSession {
	items := []PracticeSession{}
	for _, session := range s.records {
		if filter.UserID != "" && session.UserID != filter.UserID {
			continue
		}
		if filter.From != nil && session.StartedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && session.StartedAt.After(*filter.To) {
			continue
		}
		items = append(items, session)
	}
	return items
}

func (s *memoryPracticeStore) List(_ context.Context, filter PracticeFilter) (Page[PracticeSession], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return paginate(s.filtered(filter), filter.PageRequest), nil
}

func (s *memoryPracticeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *memoryPracticeStore) Summary(_ context.Context, filter PracticeFilter) (PracticeSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := PracticeSummary{}
	for _, session := range s.filtered(filter) {
		if session.Active() {
			continue
		}
		summary.Sessions++
		summary.TotalSeconds += session.DurationSeconds
		if session.DurationSeconds > summary.LongestSeconds {
			summary.LongestSeconds = session.DurationSeconds
		}
	}
	return summary, nil
}

type memoryLogStore struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (s *memoryLogStore) Append(_ context.Context, entry LogEntry) (LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *memoryLogStore) List(_ context.Context, filter LogFilter) (Page[LogEntry], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []LogEntry{}
	for _, entry := range s.entries {
		if filter.Level != "" && entry.Level != filter.Level {
			continue
		}
		items = append(items, entry)
	}
	return paginate(items, filter.PageRequest), nil
}

func (s *memoryLogStore) Prune(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	deleted := 0
	for _, entry := range s.entries {
		if entry.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	s.entries = kept
	return deleted, nil
}

type memoryRefreshTokenStore struct {
	mu      sync.Mutex
	records map[string]RefreshToken
	// raceParent simulates a concurrent rotation winning the race.
	raceParent bool
}

func (s *memoryRefreshTokenStore) Create(_ context.Context, token RefreshToken) (RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[token.ID] = token
	return token, nil
}

func (s *memoryRefreshTokenStore) GetByHash(_ context.Context, tokenHash string) (RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.records {
		if token.TokenHash == tokenHash {
			return token, nil
		}
	}
	return RefreshToken{}, NotFound("refresh token", "")
}

func (s *memoryRefreshTokenStore) MarkUsedAndCreateChild(_ context.Context, parentID string, usedAt time.Time, child RefreshToken) (RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent, ok := s.records[parentID]
	if !ok || parent.Status != RefreshTokenActive || s.raceParent {
		return RefreshToken{}, ErrRefreshTokenReused
	}
	parent.Status = RefreshTokenUsed
	parent.UsedAt = &usedAt
	s.records[parentID] = parent
	s.records[child.ID] = child
	return child, nil
}

func (s *memoryRefreshTokenStore) RevokeFamily(_ context.Context, familyID string, reason string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := 0
	for id, token := range s.records {
		if token.FamilyID != familyID || token.Status == RefreshTokenRevoked {
			continue
		}
		token.Status = RefreshTokenRevoked
		token.RevokedAt = &at
		token.RevokedReason = reason
		s.records[id] = token
		revoked++
	}
	return revoked, nil
}

func (s *memoryRefreshTokenStore) PurgeExpired(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, token := range s.records {
		if token.ExpiresAt.Before(before) {
			delete(s.records, id)
			purged++
		}
	}
	return purged, nil
}

func (s *memoryRefreshTokenStore) family(familyID string) []RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []RefreshToken{}
	for _, token := range s.records {
		if token.FamilyID == familyID {
			out = append(out, token)
		}
	}
	return out
}

type memoryWebhookStore struct {
	mu      sync.Mutex
	records map[string]WebhookSubscription
}

func (s *memoryWebhookStore) Create(_ context.Context, subscription WebhookSubscription) (WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[subscription.ID] = subscription
	return subscription, nil
}

func (s *memoryWebhookStore) Get(_ context.Context, id string) (WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subscription, ok := s.records[id]
	if !ok {
		return WebhookSubscription{}, NotFound("webhook", id)
	}
	return subscription, nil
}

func (s *memoryWebhookStore) List(_ context.Context, filter WebhookFilter) (Page[WebhookSubscription], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []WebhookSubscription{}
	for _, subscription := range s.records {
		items = append(items, subscription)
	}
	return paginate(items, filter.PageRequest), nil
}

func (s *memoryWebhookStore) Update(_ context.Context, subscription WebhookSubscription) (WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[subscription.ID] = subscription
	return subscription, nil
}

func (s *memoryWebhookStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *memoryWebhookStore) ListActiveForEvent(_ context.Context, eventType string) ([]WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []WebhookSubscription{}
	for _, subscription := range s.records {
		if subscription.Active && subscription.Matches(eventType) {
			out = append(out, subscription)
		}
	}
	return out, nil
}

type testHarness struct {
	svc    *Service
	stores *memoryStores
	events *captureEvents
	now    time.Time
}

func (h *testHarness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func newTestHarness(cfg Config, opts ...Option) (*testHarness, error) {
	h := &testHarness{
		stores: newMemoryStores(),
		events: &captureEvents{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	base := []Option{
		WithStores(h.stores),
		WithEventPublisher(h.events),
		WithTokenSigner(stubSigner{}),
		WithSecretProvider(testSecretProvider{}),
		WithAPIKeyVerifier(stubKeyVerifier{key: "svc-key"}),
		WithClock(func() time.Time { return h.now }),
		WithLogger(stubLogger{}),
		WithLoggerProvider(stubLoggerProvider{logger: stubLogger{}}),
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	h.svc = svc
	return h, nil
}

func asUser(user User) context.Context {
	return WithPrincipal(context.Background(), Principal{UserID: user.ID, Role: user.Role})
}

func asService() context.Context {
	return WithPrincipal(context.Background(), SystemPrincipal())
}

func (h *testHarness) mustUser(username string, role Role) User {
	user, err := h.svc.CreateUser(asService(), CreateUserInput{Username: username, Role: role})
	if err != nil {
		panic(fmt.Sprintf("create user %s: %v", username, err))
	}
	return user
}
