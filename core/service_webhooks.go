package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

const webhookSecretPrefix = "whsec_"

type CreateWebhookInput struct {
	URL         string   `json:"url"`
	Description string   `json:"description"`
	EventTypes  []string `json:"event_types"`
	Secret      string   `json:"secret"`
	Active      *bool    `json:"active"`
}

type UpdateWebhookInput struct {
	URL         *string  `json:"url"`
	Description *string  `json:"description"`
	EventTypes  []string `json:"event_types"`
	Active      *bool    `json:"active"`
}

// CreateWebhook registers a subscription. The returned value carries the
// plaintext secret; later reads never do.
func (s *Service) CreateWebhook(ctx context.Context, in CreateWebhookInput) (subscription WebhookSubscription, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"url": in.URL}
	defer func() {
		s.observeOperation(ctx, startedAt, "create_webhook", err, fields)
	}()

	principal, err := requirePrivileged(ctx)
	if err != nil {
		return WebhookSubscription{}, err
	}
	if err = s.requireStore(s.webhooks, "webhook"); err != nil {
		return WebhookSubscription{}, err
	}
	if s.secretProvider == nil {
		err = Internal(nil, "core: webhook secret provider is not configured")
		return WebhookSubscription{}, err
	}
	if err = validateURL("url", in.URL); err != nil {
		return WebhookSubscription{}, err
	}
	eventTypes := normalizeEventTypes(in.EventTypes)
	secret := strings.TrimSpace(in.Secret)
	if secret == "" {
		if secret, err = generateWebhookSecret(); err != nil {
			err = s.mapError(err)
			return WebhookSubscription{}, err
		}
	}
	encrypted, err := s.secretProvider.Encrypt(ctx, []byte(secret))
	if err != nil {
		err = Internal(err, "core: encrypt webhook secret")
		return WebhookSubscription{}, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}

	now := s.now()
	subscription, err = s.webhooks.Create(ctx, WebhookSubscription{
		ID:              s.newID(),
		OwnerID:         principal.UserID,
		URL:             strings.TrimSpace(in.URL),
		Description:     strings.TrimSpace(in.Description),
		EventTypes:      eventTypes,
		Active:          active,
		EncryptedSecret: encrypted,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		err = s.mapError(err)
		return WebhookSubscription{}, err
	}
	fields["subscription_id"] = subscription.ID
	subscription.Secret = secret
	return subscription, nil
}

func (s *Service) GetWebhook(ctx context.Context, id string) (WebhookSubscription, error) {
	if _, err := requirePrivileged(ctx); err != nil {
		return WebhookSubscription{}, err
	}
	if err := s.requireStore(s.webhooks, "webhook"); err != nil {
		return WebhookSubscription{}, err
	}
	id, err := requireID("id", id)
	if err != nil {
		return WebhookSubscription{}, err
	}
	subscription, err := s.webhooks.Get(ctx, id)
	if err != nil {
		return WebhookSubscription{}, s.mapError(err)
	}
	return redactWebhook(subscription), nil
}

func (s *Service) ListWebhooks(ctx context.Context, filter WebhookFilter) (Page[WebhookSubscription], error) {
	if _, err := requirePrivileged(ctx); err != nil {
		return Page[WebhookSubscription]{}, err
	}
	if err := s.requireStore(s.webhooks, "webhook"); err != nil {
		return Page[WebhookSubscription]{}, err
	}
	filter.PageRequest = filter.PageRequest.Normalize()
	page, err := s.webhooks.List(ctx, filter)
	if err != nil {
		return Page[WebhookSubscription]{}, s.mapError(err)
	}
	for i := range page.Items {
		page.Items[i] = redactWebhook(page.Items[i])
	}
	return page, nil
}

func (s *Service) UpdateWebhook(ctx context.Context, id string, in UpdateWebhookInput) (subscription WebhookSubscription, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"subscription_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_webhook", err, fields)
	}()

	if _, err = requirePrivileged(ctx); err != nil {
		return WebhookSubscription{}, err
	}
	if err = s.requireStore(s.webhooks, "webhook"); err != nil {
		return WebhookSubscription{}, err
	}
	subscription, err = s.webhooks.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		err = s.mapError(err)
		return WebhookSubscription{}, err
	}
	if in.URL != nil {
		if err = validateURL("url", *in.URL); err != nil {
			return WebhookSubscription{}, err
		}
		subscription.URL = strings.TrimSpace(*in.URL)
	}
	if in.Description != nil {
		subscription.Description = strings.TrimSpace(*in.Description)
	}
	if in.EventTypes != nil {
		subscription.EventTypes = normalizeEventTypes(in.EventTypes)
	}
	if in.Active != nil {
		subscription.Active = *in.Active
	}
	subscription.UpdatedAt = s.now()
	subscription, err = s.webhooks.Update(ctx, subscription)
	if err != nil {
		err = s.mapError(err)
		return WebhookSubscription{}, err
	}
	return redactWebhook(subscription), nil
}

func (s *Service) DeleteWebhook(ctx context.Context, id string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"subscription_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_webhook", err, fields)
	}()

	if _, err = requirePrivileged(ctx); err != nil {
		return err
	}
	if err = s.requireStore(s.webhooks, "webhook"); err != nil {
		return err
	}
	id, err = requireID("id", id)
	if err != nil {
		return err
	}
	if err = s.webhooks.Delete(ctx, id); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) ListDeliveries(ctx context.Context, subscriptionID string, page PageRequest) (Page[WebhookDelivery], error) {
	if _, err := requirePrivileged(ctx); err != nil {
		return Page[WebhookDelivery]{}, err
	}
	if err := s.requireStore(s.deliveries, "delivery"); err != nil {
		return Page[WebhookDelivery]{}, err
	}
	subscription, err := s.GetWebhook(ctx, subscriptionID)
	if err != nil {
		return Page[WebhookDelivery]{}, err
	}
	deliveries, err := s.deliveries.ListBySubscription(ctx, subscription.ID, page.Normalize())
	if err != nil {
		return Page[WebhookDelivery]{}, s.mapError(err)
	}
	return deliveries, nil
}

func (s *Service) GetDelivery(ctx context.Context, id string) (WebhookDelivery, error) {
	if _, err := requirePrivileged(ctx); err != nil {
		return WebhookDelivery{}, err
	}
	if err := s.requireStore(s.deliveries, "delivery"); err != nil {
		return WebhookDelivery{}, err
	}
	id, err := requireID("id", id)
	if err != nil {
		return WebhookDelivery{}, err
	}
	delivery, err := s.deliveries.Get(ctx, id)
	if err != nil {
		return WebhookDelivery{}, s.mapError(err)
	}
	return delivery, nil
}

func redactWebhook(subscription WebhookSubscription) WebhookSubscription {
	subscription.Secret = ""
	subscription.EncryptedSecret = nil
	return subscription
}

func normalizeEventTypes(eventTypes []string) []string {
	lowered := make([]string, len(eventTypes))
	for i := range eventTypes {
		lowered[i] = strings.ToLower(eventTypes[i])
	}
	out := cleanStrings(lowered)
	if len(out) == 0 {
		return []string{WildcardEvent}
	}
	return out
}

func generateWebhookSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return webhookSecretPrefix + hex.EncodeToString(buf), nil
}
