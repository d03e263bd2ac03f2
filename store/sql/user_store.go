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

type UserStore struct {
	db   *bun.DB
	repo repository.Repository[*userRecord]
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	repo, err := newRecordRepository[userRecord](db, "user")
	if err != nil {
		return nil, err
	}
	return &UserStore{db: db, repo: repo}, nil
}

func (s *UserStore) Create(ctx context.Context, user core.User) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	record := newUserRecord(user, time.Now().UTC())
	var created *userRecord
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		inserted, err := s.repo.CreateTx(ctx, tx, record)
		created = inserted
		return err
	})
	if err != nil {
		return core.User{}, mapStoreError(err, "user", record.ID)
	}
	return created.toDomain(), nil
}

func (s *UserStore) Get(ctx context.Context, id string) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	id = strings.TrimSpace(id)
	if !isUUID(id) {
		return core.User{}, core.NotFound("user", id)
	}
	var record *userRecord
	err := RunScoped(ctx, s.db, func(ctx context.Context, idb bun.IDB) error {
		found, err := s.repo.GetByIDTx(ctx, idb, id)
		record = found
		return err
	})
	if err != nil {
		return core.User{}, mapStoreError(err, "user", id)
	}
	return record.toDomain(), nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	username = strings.ToLower(strings.TrimSpace(username))
	var records []*userRecord
	err := RunScoped(ctx, s.db, func(ctx context.Context, idb bun.IDB) error {
		found, _, err := s.repo.ListTx(ctx, idb,
			repository.SelectBy("username", "=", username),
			repository.SelectPaginate(1, 0),
		)
		records = found
		return err
	})
	if err != nil {
		return core.User{}, mapStoreError(err, "user", username)
	}
	if len(records) == 0 {
		return core.User{}, core.NotFound("user", username)
	}
	return records[0].toDomain(), nil
}

func (s *UserStore) List(ctx context.Context, filter core.UserFilter) (core.Page[core.User], error) {
	if s == nil || s.repo == nil {
		return core.Page[core.User]{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	page := filter.PageRequest.Normalize()
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(page.Limit(), page.Offset()),
	}
	if role := strings.TrimSpace(string(filter.Role)); role != "" {
		selectors = append(selectors, repository.SelectBy("role", "=", role))
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	if query := strings.TrimSpace(filter.Query); query != "" {
		pattern := likePattern(query)
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.
					Where(`LOWER(?TableAlias.username) LIKE ? ESCAPE '\'`, pattern).
					WhereOr(`LOWER(?TableAlias.display_name) LIKE ? ESCAPE '\'`, pattern)
			})
		}))
	}

	var (
		records []*userRecord
		total   int
	)
	err := RunScoped(ctx, s.db, func(ctx context.Context, idb bun.IDB) error {
		found, count, err := s.repo.ListTx(ctx, idb, selectors...)
		records, total = found, count
		return err
	})
	if err != nil {
		return core.Page[core.User]{}, mapStoreError(err, "user", "")
	}
	items := make([]core.User, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.NewPage(items, total, page), nil
}

func (s *UserStore) Update(ctx context.Context, user core.User) (core.User, error) {
	if s == nil || s.db == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	record := newUserRecord(user, time.Now().UTC())
	record.UpdatedAt = time.Now().UTC()
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model(record).
			Column("username", "display_name", "avatar_url", "bio", "role", "status", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		return requireAffected(result, "user", record.ID)
	})
	if err != nil {
		return core.User{}, mapStoreError(err, "user", record.ID)
	}
	return s.Get(ctx, record.ID)
}

func (s *UserStore) SoftDelete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: user store is not configured")
	}
	id = strings.TrimSpace(id)
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewDelete().
			Model((*userRecord)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		return requireAffected(result, "user", id)
	})
	return mapStoreError(err, "user", id)
}
