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

// stalePendingAfter is how long a pending delivery may sit before the retry
// sweep treats its first attempt as lost.
const stalePendingAfter = time.Minute

type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	repo, err := newRecordRepository[webhookDeliveryRecord](db, "webhook delivery")
	if err != nil {
		return nil, err
	}
	return &DeliveryStore{db: db, repo: repo}, nil
}

func (s *DeliveryStore) Create(ctx context.Context, delivery core.WebhookDelivery) (core.WebhookDelivery, error) {
	if s == nil || s.repo == nil {
		return core.WebhookDelivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	record := newWebhookDeliveryRecord(delivery, time.Now().UTC())
	var created *webhookDeliveryRecord
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		inserted, err := s.repo.CreateTx(ctx, tx, record)
		created = inserted
		return err
	})
	if err != nil {
		return core.WebhookDelivery{}, mapStoreError(err, "webhook delivery", record.ID)
	}
	return created.toDomain(), nil
}

func (s *DeliveryStore) Get(ctx context.Context, id string) (core.WebhookDelivery, error) {
	if s == nil || s.db == nil {
		return core.WebhookDelivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	if !isUUID(id) {
		return core.WebhookDelivery{}, core.NotFound("webhook delivery", id)
	}
	record := &webhookDeliveryRecord{}
	if err := scopedGet(ctx, s.db, "id", id, record); err != nil {
		return core.WebhookDelivery{}, mapStoreError(err, "webhook delivery", id)
	}
	return record.toDomain(), nil
}

func (s *DeliveryStore) ListBySubscription(ctx context.Context, subscriptionID string, page core.PageRequest) (core.Page[core.WebhookDelivery], error) {
	if s == nil || s.db == nil {
		return core.Page[core.WebhookDelivery]{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	subscriptionID = strings.TrimSpace(subscriptionID)
	result, err := scopedPage(ctx, s.db, page, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.subscription_id = ?", subscriptionID).
			OrderExpr("?TableAlias.created_at DESC")
	}, (*webhookDeliveryRecord).toDomain)
	if err != nil {
		return core.Page[core.WebhookDelivery]{}, mapStoreError(err, "webhook delivery", "")
	}
	return result, nil
}

func (s *DeliveryStore) MarkDelivered(ctx context.Context, id string, attempt core.DeliveryAttempt) (core.WebhookDelivery, error) {
	at := attempt.At.UTC()
	return s.mark(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("status = ?", string(core.DeliveryDelivered)).
			Set("last_error = ?", "").
			Set("next_attempt_at = NULL").
			Set("delivered_at = ?", at)
	}, attempt)
}

func (s *DeliveryStore) MarkRetry(ctx context.Context, id string, attempt core.DeliveryAttempt) (core.WebhookDelivery, error) {
	if attempt.NextAttemptAt == nil {
		return core.WebhookDelivery{}, fmt.Errorf("sqlstore: retry requires a next attempt time")
	}
	next := attempt.NextAttemptAt.UTC()
	return s.mark(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("status = ?", string(core.DeliveryRetrying)).
			Set("last_error = ?", attempt.Error).
			Set("next_attempt_at = ?", next)
	}, attempt)
}

func (s *DeliveryStore) MarkFailed(ctx context.Context, id string, attempt core.DeliveryAttempt) (core.WebhookDelivery, error) {
	return s.mark(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("status = ?", string(core.DeliveryFailed)).
			Set("last_error = ?", attempt.Error).
			Set("next_attempt_at = NULL")
	}, attempt)
}

func (s *DeliveryStore) mark(
	ctx context.Context,
	id string,
	apply func(q *bun.UpdateQuery) *bun.UpdateQuery,
	attempt core.DeliveryAttempt,
) (core.WebhookDelivery, error) {
	if s == nil || s.db == nil {
		return core.WebhookDelivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	id = strings.TrimSpace(id)
	if !isUUID(id) {
		return core.WebhookDelivery{}, core.NotFound("webhook delivery", id)
	}
	updatedAt := attempt.At.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	record := &webhookDeliveryRecord{}
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		query := tx.NewUpdate().
			Model((*webhookDeliveryRecord)(nil)).
			Set("attempts = ?", attempt.Attempts).
			Set("last_status_code = ?", attempt.StatusCode).
			Set("updated_at = ?", updatedAt).
			Where("id = ?", id)
		result, err := apply(query).Exec(ctx)
		if err != nil {
			return err
		}
		if err := requireAffected(result, "webhook delivery", id); err != nil {
			return err
		}
		return tx.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Scan(ctx)
	})
	if err != nil {
		return core.WebhookDelivery{}, mapStoreError(err, "webhook delivery", id)
	}
	return record.toDomain(), nil
}

// ListDue returns retrying deliveries whose next attempt has passed and
// pending deliveries whose first attempt appears to have been lost.
func (s *DeliveryStore) ListDue(ctx context.Context, now time.Time, limit int) ([]core.WebhookDelivery, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	now = now.UTC()
	staleBefore := now.Add(-stalePendingAfter)
	var records []webhookDeliveryRecord
	err := RunScoped(ctx, s.db, func(ctx context.Context, idb bun.IDB) error {
		return idb.NewSelect().
			Model(&records).
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.
					WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
						return q.
							Where("?TableAlias.status = ?", string(core.DeliveryRetrying)).
							Where("?TableAlias.next_attempt_at <= ?", now)
					}).
					WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
						return q.
							Where("?TableAlias.status = ?", string(core.DeliveryPending)).
							Where("?TableAlias.created_at <= ?", staleBefore)
					})
			}).
			OrderExpr("?TableAlias.created_at ASC").
			Limit(limit).
			Scan(ctx)
	})
	if err != nil {
		return nil, mapStoreError(err, "webhook delivery", "")
	}
	return mapRecords(records, (*webhookDeliveryRecord).toDomain), nil
}
