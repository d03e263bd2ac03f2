package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-community/core"
)

func newUserRecord(user core.User, now time.Time) *userRecord {
	return &userRecord{
		ID:          ensureID(user.ID),
		Username:    strings.ToLower(strings.TrimSpace(user.Username)),
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		Bio:         user.Bio,
		Role:        string(user.Role),
		Status:      string(user.Status),
		CreatedAt:   orNow(user.CreatedAt, now),
		UpdatedAt:   orNow(user.UpdatedAt, now),
	}
}

func (r *userRecord) toDomain() core.User {
	if r == nil {
		return core.User{}
	}
	return core.User{
		ID:          r.ID,
		Username:    r.Username,
		DisplayName: r.DisplayName,
		AvatarURL:   r.AvatarURL,
		Bio:         r.Bio,
		Role:        core.Role(r.Role),
		Status:      core.UserStatus(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func newIdentityRecord(identity core.Identity, now time.Time) *identityRecord {
	return &identityRecord{
		ID:         ensureID(identity.ID),
		UserID:     strings.TrimSpace(identity.UserID),
		Provider:   string(identity.Provider),
		ExternalID: identity.ExternalID,
		Handle:     identity.Handle,
		Verified:   identity.Verified,
		Metadata:   copyAnyMap(identity.Metadata),
		CreatedAt:  orNow(identity.CreatedAt, now),
		UpdatedAt:  orNow(identity.UpdatedAt, now),
	}
}

func (r *identityRecord) toDomain() core.Identity {
	if r == nil {
		return core.Identity{}
	}
	identity := core.Identity{
		ID:         r.ID,
		UserID:     r.UserID,
		Provider:   core.IdentityProvider(r.Provider),
		ExternalID: r.ExternalID,
		Handle:     r.Handle,
		Verified:   r.Verified,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if len(r.Metadata) > 0 {
		identity.Metadata = copyAnyMap(r.Metadata)
	}
	return identity
}

func newApplicationRecord(application core.Application, now time.Time) *applicationRecord {
	status := application.Status
	if status == "" {
		status = core.ApplicationPending
	}
	return &applicationRecord{
		ID:          ensureID(application.ID),
		ApplicantID: strings.TrimSpace(application.ApplicantID),
		Status:      string(status),
		Motivation:  application.Motivation,
		Links:       copyStrings(application.Links),
		Approvals:   application.Approvals,
		Rejections:  application.Rejections,
		Abstentions: application.Abstentions,
		DecidedAt:   utcPtr(application.DecidedAt),
		CreatedAt:   orNow(application.CreatedAt, now),
		UpdatedAt:   orNow(application.UpdatedAt, now),
	}
}

func (r *applicationRecord) toDomain() core.Application {
	if r == nil {
		return core.Application{}
	}
	return core.Application{
		ID:          r.ID,
		ApplicantID: r.ApplicantID,
		Status:      core.ApplicationStatus(r.Status),
		Motivation:  r.Motivation,
		Links:       copyStrings(r.Links),
		Approvals:   r.Approvals,
		Rejections:  r.Rejections,
		Abstentions: r.Abstentions,
		DecidedAt:   utcPtr(r.DecidedAt),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func newVoteRecord(vote core.Vote, now time.Time) *voteRecord {
	return &voteRecord{
		ID:            ensureID(vote.ID),
		ApplicationID: strings.TrimSpace(vote.ApplicationID),
		VoterID:       strings.TrimSpace(vote.VoterID),
		Decision:      string(vote.Decision),
		Comment:       vote.Comment,
		CreatedAt:     orNow(vote.CreatedAt, now),
	}
}

func (r *voteRecord) toDomain() core.Vote {
	if r == nil {
		return core.Vote{}
	}
	return core.Vote{
		ID:            r.ID,
		ApplicationID: r.ApplicationID,
		VoterID:       r.VoterID,
		Decision:      core.VoteDecision(r.Decision),
		Comment:       r.Comment,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

func newPracticeSessionRecord(session core.PracticeSession, now time.Time) *practiceSessionRecord {
	return &practiceSessionRecord{
		ID:              ensureID(session.ID),
		UserID:          strings.TrimSpace(session.UserID),
		Topic:           session.Topic,
		Notes:           session.Notes,
		StartedAt:       session.StartedAt.UTC(),
		EndedAt:         utcPtr(session.EndedAt),
		DurationSeconds: session.DurationSeconds,
		CreatedAt:       orNow(session.CreatedAt, now),
		UpdatedAt:       orNow(session.UpdatedAt, now),
	}
}

func (r *practiceSessionRecord) toDomain() core.PracticeSession {
	if r == nil {
		return core.PracticeSession{}
	}
	return core.PracticeSession{
		ID:              r.ID,
		UserID:          r.UserID,
		Topic:           r.Topic,
		Notes:           r.Notes,
		StartedAt:       r.StartedAt.UTC(),
		EndedAt:         utcPtr(r.EndedAt),
		DurationSeconds: r.DurationSeconds,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func newProjectRecord(project core.Project, now time.Time) *projectRecord {
	status := project.Status
	if status == "" {
		status = core.ProjectActive
	}
	return &projectRecord{
		ID:          ensureID(project.ID),
		OwnerID:     strings.TrimSpace(project.OwnerID),
		Name:        project.Name,
		Slug:        project.Slug,
		Description: project.Description,
		URL:         project.URL,
		RepoURL:     project.RepoURL,
		Tags:        copyStrings(project.Tags),
		Status:      string(status),
		CreatedAt:   orNow(project.CreatedAt, now),
		UpdatedAt:   orNow(project.UpdatedAt, now),
	}
}

func (r *projectRecord) toDomain() core.Project {
	if r == nil {
		return core.Project{}
	}
	return core.Project{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		URL:         r.URL,
		RepoURL:     r.RepoURL,
		Tags:        copyStrings(r.Tags),
		Status:      core.ProjectStatus(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func newTreasuryRecord(treasury core.Treasury, now time.Time) *treasuryRecord {
	return &treasuryRecord{
		ID:          ensureID(treasury.ID),
		Name:        treasury.Name,
		Chain:       treasury.Chain,
		Address:     treasury.Address,
		Description: treasury.Description,
		CreatedBy:   treasury.CreatedBy,
		CreatedAt:   orNow(treasury.CreatedAt, now),
		UpdatedAt:   orNow(treasury.UpdatedAt, now),
	}
}

func (r *treasuryRecord) toDomain() core.Treasury {
	if r == nil {
		return core.Treasury{}
	}
	return core.Treasury{
		ID:          r.ID,
		Name:        r.Name,
		Chain:       r.Chain,
		Address:     r.Address,
		Description: r.Description,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func newVanishingChannelRecord(channel core.VanishingChannel, now time.Time) *vanishingChannelRecord {
	return &vanishingChannelRecord{
		ID:                 ensureID(channel.ID),
		GuildID:            channel.GuildID,
		ChannelID:          channel.ChannelID,
		VanishAfterSeconds: channel.VanishAfterSeconds,
		Enabled:            channel.Enabled,
		CreatedBy:          channel.CreatedBy,
		CreatedAt:          orNow(channel.CreatedAt, now),
		UpdatedAt:          orNow(channel.UpdatedAt, now),
	}
}

func (r *vanishingChannelRecord) toDomain() core.VanishingChannel {
	if r == nil {
		return core.VanishingChannel{}
	}
	return core.VanishingChannel{
		ID:                 r.ID,
		GuildID:            r.GuildID,
		ChannelID:          r.ChannelID,
		VanishAfterSeconds: r.VanishAfterSeconds,
		Enabled:            r.Enabled,
		CreatedBy:          r.CreatedBy,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}

func newWebhookRecord(subscription core.WebhookSubscription, now time.Time) *webhookRecord {
	eventTypes := copyStrings(subscription.EventTypes)
	if len(eventTypes) == 0 {
		eventTypes = []string{core.WildcardEvent}
	}
	return &webhookRecord{
		ID:              ensureID(subscription.ID),
		OwnerID:         strings.TrimSpace(subscription.OwnerID),
		URL:             subscription.URL,
		Description:     subscription.Description,
		EventTypes:      eventTypes,
		Active:          subscription.Active,
		EncryptedSecret: append([]byte(nil), subscription.EncryptedSecret...),
		CreatedAt:       orNow(subscription.CreatedAt, now),
		UpdatedAt:       orNow(subscription.UpdatedAt, now),
	}
}

// toDomain never carries the plaintext secret.
func (r *webhookRecord) toDomain() core.WebhookSubscription {
	if r == nil {
		return core.WebhookSubscription{}
	}
	return core.WebhookSubscription{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		URL:             r.URL,
		Description:     r.Description,
		EventTypes:      copyStrings(r.EventTypes),
		Active:          r.Active,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		EncryptedSecret: append([]byte(nil), r.EncryptedSecret...),
	}
}

func newWebhookDeliveryRecord(delivery core.WebhookDelivery, now time.Time) *webhookDeliveryRecord {
	status := delivery.Status
	if status == "" {
		status = core.DeliveryPending
	}
	return &webhookDeliveryRecord{
		ID:             ensureID(delivery.ID),
		SubscriptionID: strings.TrimSpace(delivery.SubscriptionID),
		EventID:        strings.TrimSpace(delivery.EventID),
		EventType:      strings.TrimSpace(delivery.EventType),
		Payload:        copyAnyMap(delivery.Payload),
		Status:         string(status),
		Attempts:       delivery.Attempts,
		LastStatusCode: delivery.LastStatusCode,
		LastError:      delivery.LastError,
		NextAttemptAt:  utcPtr(delivery.NextAttemptAt),
		DeliveredAt:    utcPtr(delivery.DeliveredAt),
		CreatedAt:      orNow(delivery.CreatedAt, now),
		UpdatedAt:      orNow(delivery.UpdatedAt, now),
	}
}

func (r *webhookDeliveryRecord) toDomain() core.WebhookDelivery {
	if r == nil {
		return core.WebhookDelivery{}
	}
	return core.WebhookDelivery{
		ID:             r.ID,
		SubscriptionID: r.SubscriptionID,
		EventID:        r.EventID,
		EventType:      r.EventType,
		Payload:        copyAnyMap(r.Payload),
		Status:         core.DeliveryStatus(r.Status),
		Attempts:       r.Attempts,
		LastStatusCode: r.LastStatusCode,
		LastError:      r.LastError,
		NextAttemptAt:  utcPtr(r.NextAttemptAt),
		DeliveredAt:    utcPtr(r.DeliveredAt),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func newLogEntryRecord(entry core.LogEntry, now time.Time) *logEntryRecord {
	return &logEntryRecord{
		ID:        ensureID(entry.ID),
		Level:     string(entry.Level),
		Source:    entry.Source,
		Message:   entry.Message,
		UserID:    strings.TrimSpace(entry.UserID),
		RequestID: strings.TrimSpace(entry.RequestID),
		Fields:    copyAnyMap(entry.Fields),
		CreatedAt: orNow(entry.CreatedAt, now),
	}
}

func (r *logEntryRecord) toDomain() core.LogEntry {
	if r == nil {
		return core.LogEntry{}
	}
	entry := core.LogEntry{
		ID:        r.ID,
		Level:     core.LogLevel(r.Level),
		Source:    r.Source,
		Message:   r.Message,
		UserID:    r.UserID,
		RequestID: r.RequestID,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if len(r.Fields) > 0 {
		entry.Fields = copyAnyMap(r.Fields)
	}
	return entry
}

func newRefreshTokenRecord(token core.RefreshToken, now time.Time) *refreshTokenRecord {
	status := token.Status
	if status == "" {
		status = core.RefreshTokenActive
	}
	return &refreshTokenRecord{
		ID:            ensureID(token.ID),
		UserID:        strings.TrimSpace(token.UserID),
		FamilyID:      strings.TrimSpace(token.FamilyID),
		ParentID:      strings.TrimSpace(token.ParentID),
		TokenHash:     token.TokenHash,
		Status:        string(status),
		ExpiresAt:     token.ExpiresAt.UTC(),
		UsedAt:        utcPtr(token.UsedAt),
		RevokedAt:     utcPtr(token.RevokedAt),
		RevokedReason: token.RevokedReason,
		CreatedAt:     orNow(token.CreatedAt, now),
	}
}

func (r *refreshTokenRecord) toDomain() core.RefreshToken {
	if r == nil {
		return core.RefreshToken{}
	}
	return core.RefreshToken{
		ID:            r.ID,
		UserID:        r.UserID,
		FamilyID:      r.FamilyID,
		ParentID:      r.ParentID,
		TokenHash:     r.TokenHash,
		Status:        core.RefreshTokenStatus(r.Status),
		ExpiresAt:     r.ExpiresAt.UTC(),
		UsedAt:        utcPtr(r.UsedAt),
		RevokedAt:     utcPtr(r.RevokedAt),
		RevokedReason: r.RevokedReason,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

func mapRecords[R any, T any](records []R, convert func(*R) T) []T {
	out := make([]T, 0, len(records))
	for i := range records {
		out = append(out, convert(&records[i]))
	}
	return out
}

func orNow(value time.Time, now time.Time) time.Time {
	if value.IsZero() {
		return now
	}
	return value.UTC()
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	out := value.UTC()
	return &out
}

func copyStrings(in []string) []string {
	out := make([]string, 0, len(in))
	return append(out, in...)
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
