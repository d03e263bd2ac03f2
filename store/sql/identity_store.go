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

type IdentityStore struct {
	db   *bun.DB
	repo repository.Repository[*identityRecord]
}

func NewIdentityStore(db *bun.DB) (*IdentityStore, error) {
	repo, err := newRecordRepository[identityRecord](db, "identity")
	if err != nil {
		return nil, err
	}
	return &IdentityStore{db: db, repo: repo}, nil
}

func (s *IdentityStore) Link(ctx context.Context, identity core.Identity) (core.Identity, error) {
	if s == nil || s.repo == nil {
		return core.Identity{}, fmt.Errorf("sqlstore: identity store is not configured")
	}
	record := newIdentityRecord(identity, time.Now().UTC())
	var created *identityRecord
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		inserted, err := s.repo.CreateTx(ctx, tx, record)
		created = inserted
		return err
	})
	if err != nil {
		return core.Identity{}, mapStoreError(err, "identity", record.ID)
	}
	return created.toDomain(), nil
}

func (s *IdentityStore) Get(ctx context.Context, id string) (core.Identity, error) {
	if s == nil || s.db == nil {
		return core.Identity{}, fmt.Errorf("sqlstore: identity store is not configured")
	}
	if !isUUID(id) {
		return core.Identity{}, core.NotFound("identity", id)
	}
	record := &identityRecord{}
	if err := scopedGet(ctx, s.db, "id", id, record); err != nil {
		return core.Identity{}, mapStoreError(err, "identity", id)
	}
	return record.toDomain(), nil
}

func (s *IdentityStore) ListByUser(ctx context.Context, userID string) ([]core.Identity, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: identity store is not configured")
	}
	if !isUUID(userID) {
		return []core.Identity{}, nil
	}
	var records []identityRecord
	err := RunScoped(ctx, s.db, func(ctx context.Context, idb bun.IDB) error {
		return idb.NewSelect().
			Model(&records).
			Where("?TableAlias.user_id = ?", strings.TrimSpace(userID)).
			OrderExpr("?TableAlias.provider ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, mapStoreError(err, "identity", "")
	}
	return mapRecords(records, (*identityRecord).toDomain), nil
}

func (s *IdentityStore) FindByProvider(ctx context.Context, provider core.IdentityProvider, externalID string) (core.Identity, error) {
	if s == nil || s.db == nil {
		return core.Identity{}, fmt.Errorf("sqlstore: identity store is not configured")
	}
	record := &identityRecord{}
	err := RunScoped(ctx, s.db, func(ctx context.Context, idb bun.IDB) error {
		return idb.NewSelect().
			Model(record).
			Where("?TableAlias.provider = ?", string(provider)).
			Where("?TableAlias.external_id = ?", externalID).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return core.Identity{}, mapStoreError(err, "identity", string(provider)+":"+externalID)
	}
	return record.toDomain(), nil
}

func (s *IdentityStore) Update(ctx context.Context, identity core.Identity) (core.Identity, error) {
	if s == nil || s.db == nil {
		return core.Identity{}, fmt.Errorf("sqlstore: identity store is not configured")
	}
	record := newIdentityRecord(identity, time.Now().UTC())
	record.UpdatedAt = time.Now().UTC()
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model(record).
			Column("handle", "verified", "metadata", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		return requireAffected(result, "identity", record.ID)
	})
	if err != nil {
		return core.Identity{}, mapStoreError(err, "identity", record.ID)
	}
	return s.Get(ctx, record.ID)
}

func (s *IdentityStore) Unlink(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: identity store is not configured")
	}
	return deleteByID[identityRecord](ctx, s.db, "identity", id)
}
