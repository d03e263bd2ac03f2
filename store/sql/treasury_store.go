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

type TreasuryStore struct {
	db   *bun.DB
	repo repository.Repository[*treasuryRecord]
}

func NewTreasuryStore(db *bun.DB) (*TreasuryStore, error) {
	repo, err := newRecordRepository[treasuryRecord](db, "treasury")
	if err != nil {
		return nil, err
	}
	return &TreasuryStore{db: db, repo: repo}, nil
}

func (s *TreasuryStore) Create(ctx context.Context, treasury core.Treasury) (core.Treasury, error) {
	if s == nil || s.repo == nil {
		return core.Treasury{}, fmt.Errorf("sqlstore: treasury store is not configured")
	}
	record := newTreasuryRecord(treasury, time.Now().UTC())
	var created *treasuryRecord
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		inserted, err := s.repo.CreateTx(ctx, tx, record)
		created = inserted
		return err
	})
	if err != nil {
		return core.Treasury{}, mapStoreError(err, "treasury", record.ID)
	}
	return created.toDomain(), nil
}

func (s *TreasuryStore) Get(ctx context.Context, id string) (core.Treasury, error) {
	if s == nil || s.repo == nil {
		return core.Treasury{}, fmt.Errorf("sqlstore: treasury store is not configured")
	}
	id = strings.TrimSpace(id)
	if !isUUID(id) {
		return core.Treasury{}, core.NotFound("treasury", id)
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return core.Treasury{}, mapStoreError(err, "treasury", id)
	}
	return record.toDomain(), nil
}

func (s *TreasuryStore) List(ctx context.Context, filter core.TreasuryFilter) (core.Page[core.Treasury], error) {
	if s == nil || s.repo == nil {
		return core.Page[core.Treasury]{}, fmt.Errorf("sqlstore: treasury store is not configured")
	}
	page := filter.PageRequest.Normalize()
	selectors := []repository.SelectCriteria{
		repository.OrderBy("name ASC"),
		repository.SelectPaginate(page.Limit(), page.Offset()),
	}
	if chain := strings.TrimSpace(filter.Chain); chain != "" {
		selectors = append(selectors, repository.SelectBy("chain", "=", strings.ToLower(chain)))
	}
	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.Page[core.Treasury]{}, mapStoreError(err, "treasury", "")
	}
	items := make([]core.Treasury, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.NewPage(items, total, page), nil
}

func (s *TreasuryStore) Update(ctx context.Context, treasury core.Treasury) (core.Treasury, error) {
	if s == nil || s.db == nil {
		return core.Treasury{}, fmt.Errorf("sqlstore: treasury store is not configured")
	}
	record := newTreasuryRecord(treasury, time.Now().UTC())
	record.UpdatedAt = time.Now().UTC()
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model(record).
			Column("name", "chain", "address", "description", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		return requireAffected(result, "treasury", record.ID)
	})
	if err != nil {
		return core.Treasury{}, mapStoreError(err, "treasury", record.ID)
	}
	return s.Get(ctx, record.ID)
}

func (s *TreasuryStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: treasury store is not configured")
	}
	return deleteByID[treasuryRecord](ctx, s.db, "treasury", id)
}
