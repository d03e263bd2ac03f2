package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-community/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type WebhookStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookRecord]
}

func NewWebhookStore(db *bun.DB) (*WebhookStore, error) {
	repo, err := newRecordRepository[webhookRecord](db, "webhook")
	if err != nil {
		return nil, err
	}
	return &WebhookStore{db: db, repo: repo}, nil
}

func (s *WebhookStore) Create(ctx context.Context, subscription core.WebhookSubscription) (core.WebhookSubscription, error) {
	if s == nil || s.repo == nil {
		return core.WebhookSubscription{}, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	if len(subscription.EncryptedSecret) == 0 {
		return core.WebhookSubscription{}, fmt.Errorf("sqlstore: webhook secret must be encrypted before storage")
	}
	record := newWebhookRecord(subscription, time.Now().UTC())
	var created *webhookRecord
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		inserted, err := s.repo.CreateTx(ctx, tx, record)
		created = inserted
		return err
	})
	if err != nil {
		return core.WebhookSubscription{}, mapStoreError(err, "webhook", record.ID)
	}
	return created.toDomain(), nil
}

func (s *WebhookStore) Get(ctx context.Context, id string) (core.WebhookSubscription, error) {
	if s == nil || s.db == nil {
		return core.WebhookSubscription{}, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	if !isUUID(id) {
		return core.WebhookSubscription{}, core.NotFound("webhook", id)
	}
	record := &webhookRecord{}
	if err := scopedGet(ctx, s.db, "id", id, record); err != nil {
		return core.WebhookSubscription{}, mapStoreError(err, "webhook", id)
	}
	return record.toDomain(), nil
}

func (s *WebhookStore) List(ctx context.Context, filter core.WebhookFilter) (core.Page[core.WebhookSubscription], error) {
	if s == nil || s.db == nil {
		return core.Page[core.WebhookSubscription]{}, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	page, err := scopedPage(ctx, s.db, filter.PageRequest, func(q *bun.SelectQuery) *bun.SelectQuery {
		if ownerID := strings.TrimSpace(filter.OwnerID); ownerID != "" {
			q = q.Where("?TableAlias.owner_id = ?", ownerID)
		}
		if filter.Active != nil {
			q = q.Where("?TableAlias.active = ?", *filter.Active)
		}
		return q.OrderExpr("?TableAlias.created_at DESC")
	}, (*webhookRecord).toDomain)
	if err != nil {
		return core.Page[core.WebhookSubscription]{}, mapStoreError(err, "webhook", "")
	}
	return page, nil
}

func (s *WebhookStore) Update(ctx context.Context, subscription core.WebhookSubscription) (core.WebhookSubscription, error) {
	if s == nil || s.db == nil {
		return core.WebhookSubscription{}, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	record := newWebhookRecord(subscription, time.Now().UTC())
	record.UpdatedAt = time.Now().UTC()
	columns := []string{"url", "description", "event_types", "active", "updated_at"}
	if len(record.EncryptedSecret) > 0 {
		columns = append(columns, "encrypted_secret")
	}
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model(record).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		return requireAffected(result, "webhook", record.ID)
	})
	if err != nil {
		return core.WebhookSubscription{}, mapStoreError(err, "webhook", record.ID)
	}
	return s.Get(ctx, record.ID)
}

func (s *WebhookStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook store is not configured")
	}
	return deleteByID[webhookRecord](ctx, s.db, "webhook", id)
}

// ListActiveForEvent matches event types in Go so the JSON column stays
// portable across dialects.
func (s *WebhookStore) ListActiveForEvent(ctx context.Context, eventType string) ([]core.WebhookSubscription, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	var records []webhookRecord
	err := RunScoped(ctx, s.db, func(ctx context.Context, idb bun.IDB) error {
		return idb.NewSelect().
			Model(&records).
			Where("?TableAlias.active = ?", true).
			OrderExpr("?TableAlias.created_at ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, mapStoreError(err, "webhook", "")
	}
	out := make([]core.WebhookSubscription, 0, len(records))
	for i := range records {
		subscription := records[i].toDomain()
		if subscription.Matches(eventType) {
			out = append(out, subscription)
		}
	}
	return out, nil
}
