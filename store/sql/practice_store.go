package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-community/core"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type PracticeStore struct {
	db   *bun.DB
	repo repository.Repository[*practiceSessionRecord]
}

func NewPracticeStore(db *bun.DB) (*PracticeStore, error) {
	repo, err := newRecordRepository[practiceSessionRecord](db, "practice session")
	if err != nil {
		return nil, err
	}
	return &PracticeStore{db: db, repo: repo}, nil
}

// Start inserts an open session. The partial unique index on user_id rejects a
// second active session for the same user.
func (s *PracticeStore) Start(ctx context.Context, session core.PracticeSession) (core.PracticeSession, error) {
	session.EndedAt = nil
	session.DurationSeconds = 0
	created, err := s.insert(ctx, session)
	if goerrors.IsCategory(err, goerrors.CategoryConflict) {
		return core.PracticeSession{}, core.Conflict("an active practice session already exists")
	}
	return created, err
}

func (s *PracticeStore) Create(ctx context.Context, session core.PracticeSession) (core.PracticeSession, error) {
	return s.insert(ctx, session)
}

func (s *PracticeStore) insert(ctx context.Context, session core.PracticeSession) (core.PracticeSession, error) {
	if s == nil || s.repo == nil {
		return core.PracticeSession{}, fmt.Errorf("sqlstore: practice store is not configured")
	}
	record := newPracticeSessionRecord(session, time.Now().UTC())
	var created *practiceSessionRecord
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		inserted, err := s.repo.CreateTx(ctx, tx, record)
		created = inserted
		return err
	})
	if err != nil {
		return core.PracticeSession{}, mapStoreError(err, "practice session", record.ID)
	}
	return created.toDomain(), nil
}

func (s *PracticeStore) Stop(ctx context.Context, id string, endedAt time.Time) (core.PracticeSession, error) {
	if s == nil || s.db == nil {
		return core.PracticeSession{}, fmt.Errorf("sqlstore: practice store is not configured")
	}
	id = strings.TrimSpace(id)
	if !isUUID(id) {
		return core.PracticeSession{}, core.NotFound("practice session", id)
	}
	endedAt = endedAt.UTC()
	record := &practiceSessionRecord{}
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Scan(ctx); err != nil {
			return err
		}
		if record.EndedAt != nil {
			return core.Conflict("practice session already stopped")
		}
		duration := core.PracticeDuration(record.StartedAt, endedAt)
		result, err := tx.NewUpdate().
			Model((*practiceSessionRecord)(nil)).
			Set("ended_at = ?", endedAt).
			Set("duration_seconds = ?", duration).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", id).
			Where("ended_at IS NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return core.Conflict("practice session already stopped")
		}
		record.EndedAt = &endedAt
		record.DurationSeconds = duration
		return nil
	})
	if err != nil {
		return core.PracticeSession{}, mapStoreError(err, "practice session", id)
	}
	return record.toDomain(), nil
}

func (s *PracticeStore) Get(ctx context.Context, id string) (core.PracticeSession, error) {
	if s == nil || s.db == nil {
		return core.PracticeSession{}, fmt.Errorf("sqlstore: practice store is not configured")
	}
	if !isUUID(id) {
		return core.PracticeSession{}, core.NotFound("practice session", id)
	}
	record := &practiceSessionRecord{}
	if err := scopedGet(ctx, s.db, "id", id, record); err != nil {
		return core.PracticeSession{}, mapStoreError(err, "practice session", id)
	}
	return record.toDomain(), nil
}

func (s *PracticeStore) List(ctx context.Context, filter core.PracticeFilter) (core.Page[core.PracticeSession], error) {
	if s == nil || s.db == nil {
		return core.Page[core.PracticeSession]{}, fmt.Errorf("sqlstore: practice store is not configured")
	}
	page, err := scopedPage(ctx, s.db, filter.PageRequest, func(q *bun.SelectQuery) *bun.SelectQuery {
		return practiceFilter(q, filter).OrderExpr("?TableAlias.started_at DESC")
	}, (*practiceSessionRecord).toDomain)
	if err != nil {
		return core.Page[core.PracticeSession]{}, mapStoreError(err, "practice session", "")
	}
	return page, nil
}

func (s *PracticeStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: practice store is not configured")
	}
	return deleteByID[practiceSessionRecord](ctx, s.db, "practice session", id)
}

// Summary aggregates completed sessions only.
func (s *PracticeStore) Summary(ctx context.Context, filter core.PracticeFilter) (core.PracticeSummary, error) {
	if s == nil || s.db == nil {
		return core.PracticeSummary{}, fmt.Errorf("sqlstore: practice store is not configured")
	}
	var row struct {
		Sessions       int   `bun:"sessions"`
		TotalSeconds   int64 `bun:"total_seconds"`
		LongestSeconds int64 `bun:"longest_seconds"`
	}
	err := RunScoped(ctx, s.db, func(ctx context.Context, idb bun.IDB) error {
		query := idb.NewSelect().
			Model((*practiceSessionRecord)(nil)).
			ColumnExpr("COUNT(*) AS sessions").
			ColumnExpr("COALESCE(SUM(?TableAlias.duration_seconds), 0) AS total_seconds").
			ColumnExpr("COALESCE(MAX(?TableAlias.duration_seconds), 0) AS longest_seconds").
			Where("?TableAlias.ended_at IS NOT NULL")
		return practiceFilter(query, filter).Scan(ctx, &row)
	})
	if err != nil {
		return core.PracticeSummary{}, mapStoreError(err, "practice session", "")
	}
	return core.PracticeSummary{
		UserID:         strings.TrimSpace(filter.UserID),
		From:           utcPtr(filter.From),
		To:             utcPtr(filter.To),
		Sessions:       row.Sessions,
		TotalSeconds:   row.TotalSeconds,
		LongestSeconds: row.LongestSeconds,
	}, nil
}

func practiceFilter(q *bun.SelectQuery, filter core.PracticeFilter) *bun.SelectQuery {
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		q = q.Where("?TableAlias.user_id = ?", userID)
	}
	if filter.From != nil {
		q = q.Where("?TableAlias.started_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("?TableAlias.started_at <= ?", filter.To.UTC())
	}
	return q
}
