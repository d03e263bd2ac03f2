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

type ProjectStore struct {
	db   *bun.DB
	repo repository.Repository[*projectRecord]
}

func NewProjectStore(db *bun.DB) (*ProjectStore, error) {
	repo, err := newRecordRepository[projectRecord](db, "project")
	if err != nil {
		return nil, err
	}
	return &ProjectStore{db: db, repo: repo}, nil
}

func (s *ProjectStore) Create(ctx context.Context, project core.Project) (core.Project, error) {
	if s == nil || s.repo == nil {
		return core.Project{}, fmt.Errorf("sqlstore: project store is not configured")
	}
	record := newProjectRecord(project, time.Now().UTC())
	var created *projectRecord
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		inserted, err := s.repo.CreateTx(ctx, tx, record)
		created = inserted
		return err
	})
	if err != nil {
		return core.Project{}, mapStoreError(err, "project", record.ID)
	}
	return created.toDomain(), nil
}

func (s *ProjectStore) Get(ctx context.Context, id string) (core.Project, error) {
	if s == nil || s.repo == nil {
		return core.Project{}, fmt.Errorf("sqlstore: project store is not configured")
	}
	id = strings.TrimSpace(id)
	if !isUUID(id) {
		return core.Project{}, core.NotFound("project", id)
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return core.Project{}, mapStoreError(err, "project", id)
	}
	return record.toDomain(), nil
}

func (s *ProjectStore) GetBySlug(ctx context.Context, slug string) (core.Project, error) {
	if s == nil || s.repo == nil {
		return core.Project{}, fmt.Errorf("sqlstore: project store is not configured")
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("slug", "=", slug),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Project{}, mapStoreError(err, "project", slug)
	}
	if len(records) == 0 {
		return core.Project{}, core.NotFound("project", slug)
	}
	return records[0].toDomain(), nil
}

func (s *ProjectStore) List(ctx context.Context, filter core.ProjectFilter) (core.Page[core.Project], error) {
	if s == nil || s.repo == nil {
		return core.Page[core.Project]{}, fmt.Errorf("sqlstore: project store is not configured")
	}
	page := filter.PageRequest.Normalize()
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(page.Limit(), page.Offset()),
	}
	if ownerID := strings.TrimSpace(filter.OwnerID); ownerID != "" {
		selectors = append(selectors, repository.SelectBy("owner_id", "=", ownerID))
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	if tag := strings.ToLower(strings.TrimSpace(filter.Tag)); tag != "" {
		// tags are stored as a JSON array of lowercase strings
		needle := likePattern(`"` + tag + `"`)
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where(`LOWER(CAST(?TableAlias.tags AS TEXT)) LIKE ? ESCAPE '\'`, needle)
		}))
	}
	if query := strings.TrimSpace(filter.Query); query != "" {
		pattern := likePattern(query)
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.
					Where(`LOWER(?TableAlias.name) LIKE ? ESCAPE '\'`, pattern).
					WhereOr(`LOWER(?TableAlias.description) LIKE ? ESCAPE '\'`, pattern)
			})
		}))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.Page[core.Project]{}, mapStoreError(err, "project", "")
	}
	items := make([]core.Project, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.NewPage(items, total, page), nil
}

func (s *ProjectStore) Update(ctx context.Context, project core.Project) (core.Project, error) {
	if s == nil || s.db == nil {
		return core.Project{}, fmt.Errorf("sqlstore: project store is not configured")
	}
	record := newProjectRecord(project, time.Now().UTC())
	record.UpdatedAt = time.Now().UTC()
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model(record).
			Column("name", "slug", "description", "url", "repo_url", "tags", "status", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		return requireAffected(result, "project", record.ID)
	})
	if err != nil {
		return core.Project{}, mapStoreError(err, "project", record.ID)
	}
	return s.Get(ctx, record.ID)
}

func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: project store is not configured")
	}
	return deleteByID[projectRecord](ctx, s.db, "project", id)
}
