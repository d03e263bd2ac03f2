package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-community/core"
	"github.com/uptrace/bun"
)

type LogStore struct {
	db *bun.DB
}

func NewLogStore(db *bun.DB) (*LogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &LogStore{db: db}, nil
}

func (s *LogStore) Append(ctx context.Context, entry core.LogEntry) (core.LogEntry, error) {
	if s == nil || s.db == nil {
		return core.LogEntry{}, fmt.Errorf("sqlstore: log store is not configured")
	}
	record := newLogEntryRecord(entry, time.Now().UTC())
	// Writers may not be allowed to read logs back, so the insert must not
	// return the row.
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(record).Returning("NULL").Exec(ctx)
		return err
	})
	if err != nil {
		return core.LogEntry{}, mapStoreError(err, "log entry", record.ID)
	}
	return record.toDomain(), nil
}

func (s *LogStore) List(ctx context.Context, filter core.LogFilter) (core.Page[core.LogEntry], error) {
	if s == nil || s.db == nil {
		return core.Page[core.LogEntry]{}, fmt.Errorf("sqlstore: log store is not configured")
	}
	page, err := scopedPage(ctx, s.db, filter.PageRequest, func(q *bun.SelectQuery) *bun.SelectQuery {
		if level := strings.TrimSpace(string(filter.Level)); level != "" {
			q = q.Where("?TableAlias.level = ?", level)
		}
		if source := strings.TrimSpace(filter.Source); source != "" {
			q = q.Where("?TableAlias.source = ?", source)
		}
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			q = q.Where("?TableAlias.user_id = ?", userID)
		}
		if filter.Since != nil {
			q = q.Where("?TableAlias.created_at >= ?", filter.Since.UTC())
		}
		if filter.Until != nil {
			q = q.Where("?TableAlias.created_at <= ?", filter.Until.UTC())
		}
		return q.OrderExpr("?TableAlias.created_at DESC")
	}, (*logEntryRecord).toDomain)
	if err != nil {
		return core.Page[core.LogEntry]{}, mapStoreError(err, "log entry", "")
	}
	return page, nil
}

func (s *LogStore) Prune(ctx context.Context, before time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: log store is not configured")
	}
	deleted := 0
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewDelete().
			Model((*logEntryRecord)(nil)).
			Where("created_at < ?", before.UTC()).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		deleted = int(affected)
		return err
	})
	if err != nil {
		return 0, mapStoreError(err, "log entry", "")
	}
	return deleted, nil
}
