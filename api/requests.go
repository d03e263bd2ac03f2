package api

import (
	"time"

	"github.com/goliatone/go-community/core"
)

type tokenRequest struct {
	UserID     string `json:"user_id,omitempty" validate:"required_without=Provider"`
	Provider   string `json:"provider,omitempty" validate:"required_with=ExternalID,omitempty,oneof=wallet discord lens farcaster telegram github"`
	ExternalID string `json:"external_id,omitempty" validate:"required_with=Provider"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type meResponse struct {
	Principal core.Principal `json:"principal"`
	User      *core.User     `json:"user,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type createUserRequest struct {
	Username    string    `json:"username" validate:"required,min=3,max=32"`
	DisplayName string    `json:"display_name,omitempty" validate:"max=80"`
	AvatarURL   string    `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Bio         string    `json:"bio,omitempty" validate:"max=1000"`
	Role        core.Role `json:"role,omitempty" validate:"omitempty,oneof=applicant member admin"`
}

func (r createUserRequest) input() core.CreateUserInput {
	return core.CreateUserInput{
		Username:    r.Username,
		DisplayName: r.DisplayName,
		AvatarURL:   r.AvatarURL,
		Bio:         r.Bio,
		Role:        r.Role,
	}
}

type updateUserRequest struct {
	DisplayName *string          `json:"display_name,omitempty" validate:"omitempty,max=80"`
	AvatarURL   *string          `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Bio         *string          `json:"bio,omitempty" validate:"omitempty,max=1000"`
	Role        *core.Role       `json:"role,omitempty" validate:"omitempty,oneof=applicant member admin"`
	Status      *core.UserStatus `json:"status,omitempty" validate:"omitempty,oneof=active suspended"`
}

func (r updateUserRequest) input() core.UpdateUserInput {
	return core.UpdateUserInput{
		DisplayName: r.DisplayName,
		AvatarURL:   r.AvatarURL,
		Bio:         r.Bio,
		Role:        r.Role,
		Status:      r.Status,
	}
}

type linkIdentityRequest struct {
	Provider   string         `json:"provider" validate:"required,oneof=wallet discord lens farcaster telegram github"`
	ExternalID string         `json:"external_id" validate:"required,max=255"`
	Handle     string         `json:"handle,omitempty" validate:"max=255"`
	Verified   bool           `json:"verified,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (r linkIdentityRequest) input() core.LinkIdentityInput {
	return core.LinkIdentityInput{
		Provider:   r.Provider,
		ExternalID: r.ExternalID,
		Handle:     r.Handle,
		Verified:   r.Verified,
		Metadata:   r.Metadata,
	}
}

type updateIdentityRequest struct {
	Handle   *string        `json:"handle,omitempty" validate:"omitempty,max=255"`
	Verified *bool          `json:"verified,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (r updateIdentityRequest) input() core.UpdateIdentityInput {
	return core.UpdateIdentityInput{Handle: r.Handle, Verified: r.Verified, Metadata: r.Metadata}
}

type submitApplicationRequest struct {
	ApplicantID string   `json:"applicant_id,omitempty"`
	Motivation  string   `json:"motivation" validate:"required,max=5000"`
	Links       []string `json:"links,omitempty" validate:"max=10,dive,url"`
}

func (r submitApplicationRequest) input() core.SubmitApplicationInput {
	return core.SubmitApplicationInput{ApplicantID: r.ApplicantID, Motivation: r.Motivation, Links: r.Links}
}

type voteRequest struct {
	Decision core.VoteDecision `json:"decision" validate:"required,oneof=approve reject abstain"`
	Comment  string            `json:"comment,omitempty" validate:"max=2000"`
}

type decisionRequest struct {
	Status core.ApplicationStatus `json:"status" validate:"required,oneof=approved rejected"`
}

type startPracticeRequest struct {
	Topic string `json:"topic" validate:"required,max=200"`
	Notes string `json:"notes,omitempty" validate:"max=5000"`
}

type logPracticeRequest struct {
	UserID    string    `json:"user_id,omitempty"`
	Topic     string    `json:"topic" validate:"required,max=200"`
	Notes     string    `json:"notes,omitempty" validate:"max=5000"`
	StartedAt time.Time `json:"started_at" validate:"required"`
	EndedAt   time.Time `json:"ended_at" validate:"required,gtefield=StartedAt"`
}

func (r logPracticeRequest) input() core.LogPracticeInput {
	return core.LogPracticeInput{
		UserID:    r.UserID,
		Topic:     r.Topic,
		Notes:     r.Notes,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}
}

type createProjectRequest struct {
	OwnerID     string   `json:"owner_id,omitempty"`
	Name        string   `json:"name" validate:"required,max=120"`
	Slug        string   `json:"slug,omitempty" validate:"max=120"`
	Description string   `json:"description,omitempty" validate:"max=5000"`
	URL         string   `json:"url,omitempty" validate:"omitempty,url"`
	RepoURL     string   `json:"repo_url,omitempty" validate:"omitempty,url"`
	Tags        []string `json:"tags,omitempty" validate:"max=20,dive,required,max=40"`
}

func (r createProjectRequest) input() core.CreateProjectInput {
	return core.CreateProjectInput{
		OwnerID:     r.OwnerID,
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		URL:         r.URL,
		RepoURL:     r.RepoURL,
		Tags:        r.Tags,
	}
}

type updateProjectRequest struct {
	Name        *string             `json:"name,omitempty" validate:"omitempty,max=120"`
	Slug        *string             `json:"slug,omitempty" validate:"omitempty,max=120"`
	Description *string             `json:"description,omitempty" validate:"omitempty,max=5000"`
	URL         *string             `json:"url,omitempty" validate:"omitempty,url"`
	RepoURL     *string             `json:"repo_url,omitempty" validate:"omitempty,url"`
	Tags        []string            `json:"tags,omitempty" validate:"omitempty,max=20,dive,required,max=40"`
	Status      *core.ProjectStatus `json:"status,omitempty" validate:"omitempty,oneof=active archived"`
}

func (r updateProjectRequest) input() core.UpdateProjectInput {
	return core.UpdateProjectInput{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		URL:         r.URL,
		RepoURL:     r.RepoURL,
		Tags:        r.Tags,
		Status:      r.Status,
	}
}

type createTreasuryRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Chain       string `json:"chain" validate:"required,max=40"`
	Address     string `json:"address" validate:"required,max=128"`
	Description string `json:"description,omitempty" validate:"max=2000"`
}

func (r createTreasuryRequest) input() core.CreateTreasuryInput {
	return core.CreateTreasuryInput{Name: r.Name, Chain: r.Chain, Address: r.Address, Description: r.Description}
}

type updateTreasuryRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Chain       *string `json:"chain,omitempty" validate:"omitempty,max=40"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=128"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

func (r updateTreasuryRequest) input() core.UpdateTreasuryInput {
	return core.UpdateTreasuryInput{Name: r.Name, Chain: r.Chain, Address: r.Address, Description: r.Description}
}

type upsertVanishingRequest struct {
	GuildID            string `json:"guild_id" validate:"required,max=64"`
	ChannelID          string `json:"channel_id" validate:"required,max=64"`
	VanishAfterSeconds int    `json:"vanish_after_seconds" validate:"required,min=60,max=2592000"`
	Enabled            *bool  `json:"enabled,omitempty"`
}

func (r upsertVanishingRequest) input() core.UpsertVanishingChannelInput {
	return core.UpsertVanishingChannelInput{
		GuildID:            r.GuildID,
		ChannelID:          r.ChannelID,
		VanishAfterSeconds: r.VanishAfterSeconds,
		Enabled:            r.Enabled,
	}
}

// putVanishingRequest is the by-channel upsert body; the channel comes from the path.
type putVanishingRequest struct {
	GuildID            string `json:"guild_id" validate:"required,max=64"`
	VanishAfterSeconds int    `json:"vanish_after_seconds" validate:"required,min=60,max=2592000"`
	Enabled            *bool  `json:"enabled,omitempty"`
}

type updateVanishingRequest struct {
	VanishAfterSeconds *int  `json:"vanish_after_seconds,omitempty" validate:"omitempty,min=60,max=2592000"`
	Enabled            *bool `json:"enabled,omitempty"`
}

func (r updateVanishingRequest) input() core.UpdateVanishingChannelInput {
	return core.UpdateVanishingChannelInput{VanishAfterSeconds: r.VanishAfterSeconds, Enabled: r.Enabled}
}

type createWebhookRequest struct {
	URL         string   `json:"url" validate:"required,http_url"`
	Description string   `json:"description,omitempty" validate:"max=500"`
	EventTypes  []string `json:"event_types" validate:"required,min=1,dive,required,max=80"`
	Secret      string   `json:"secret,omitempty" validate:"omitempty,min=16,max=256"`
	Active      *bool    `json:"active,omitempty"`
}

func (r createWebhookRequest) input() core.CreateWebhookInput {
	return core.CreateWebhookInput{
		URL:         r.URL,
		Description: r.Description,
		EventTypes:  r.EventTypes,
		Secret:      r.Secret,
		Active:      r.Active,
	}
}

type updateWebhookRequest struct {
	URL         *string  `json:"url,omitempty" validate:"omitempty,http_url"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=500"`
	EventTypes  []string `json:"event_types,omitempty" validate:"omitempty,min=1,dive,required,max=80"`
	Active      *bool    `json:"active,omitempty"`
}

func (r updateWebhookRequest) input() core.UpdateWebhookInput {
	return core.UpdateWebhookInput{URL: r.URL, Description: r.Description, EventTypes: r.EventTypes, Active: r.Active}
}

type appendLogRequest struct {
	Level     core.LogLevel  `json:"level" validate:"required,oneof=debug info warn error"`
	Source    string         `json:"source" validate:"required,max=80"`
	Message   string         `json:"message" validate:"required,max=4000"`
	RequestID string         `json:"request_id,omitempty" validate:"max=128"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func (r appendLogRequest) input() core.AppendLogInput {
	return core.AppendLogInput{
		Level:     r.Level,
		Source:    r.Source,
		Message:   r.Message,
		RequestID: r.RequestID,
		Fields:    r.Fields,
	}
}
