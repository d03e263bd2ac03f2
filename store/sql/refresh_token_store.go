package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-community/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RefreshTokenStore persists hashed refresh tokens. Every statement runs in a
// scoped transaction because the table is restricted to the service role.
type RefreshTokenStore struct {
	db   *bun.DB
	repo repository.Repository[*refreshTokenRecord]
}

func NewRefreshTokenStore(db *bun.DB) (*RefreshTokenStore, error) {
	repo, err := newRecordRepository[refreshTokenRecord](db, "refresh token")
	if err != nil {
		return nil, err
	}
	return &RefreshTokenStore{db: db, repo: repo}, nil
}

func (s *RefreshTokenStore) Create(ctx context.Context, token core.RefreshToken) (core.RefreshToken, error) {
	if s == nil || s.repo == nil {
		return core.RefreshToken{}, fmt.Errorf("sqlstore: refresh token store is not configured")
	}
	if strings.TrimSpace(token.TokenHash) == "" {
		return core.RefreshToken{}, fmt.Errorf("sqlstore: refresh token hash is required")
	}
	record := newRefreshTokenRecord(token, time.Now().UTC())
	if record.FamilyID == "" {
		record.FamilyID = record.ID
	}
	var created *refreshTokenRecord
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		inserted, err := s.repo.CreateTx(ctx, tx, record)
		created = inserted
		return err
	})
	if err != nil {
		return core.RefreshToken{}, mapStoreError(err, "refresh token", record.ID)
	}
	return created.toDomain(), nil
}

func (s *RefreshTokenStore) GetByHash(ctx context.Context, tokenHash string) (core.RefreshToken, error) {
	if s == nil || s.db == nil {
		return core.RefreshToken{}, fmt.Errorf("sqlstore: refresh token store is not configured")
	}
	record := &refreshTokenRecord{}
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(record).
			Where("?TableAlias.token_hash = ?", strings.TrimSpace(tokenHash)).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return core.RefreshToken{}, mapStoreError(err, "refresh token", "")
	}
	return record.toDomain(), nil
}

// MarkUsedAndCreateChild consumes the parent with a conditional update so only
// one concurrent rotation can win.
func (s *RefreshTokenStore) MarkUsedAndCreateChild(ctx context.Context, parentID string, usedAt time.Time, child core.RefreshToken) (core.RefreshToken, error) {
	if s == nil || s.repo == nil {
		return core.RefreshToken{}, fmt.Errorf("sqlstore: refresh token store is not configured")
	}
	parentID = strings.TrimSpace(parentID)
	record := newRefreshTokenRecord(child, time.Now().UTC())
	record.ParentID = parentID
	var created *refreshTokenRecord
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*refreshTokenRecord)(nil)).
			Set("status = ?", string(core.RefreshTokenUsed)).
			Set("used_at = ?", usedAt.UTC()).
			Where("id = ?", parentID).
			Where("status = ?", string(core.RefreshTokenActive)).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return core.ErrRefreshTokenReused
		}
		inserted, err := s.repo.CreateTx(ctx, tx, record)
		created = inserted
		return err
	})
	if err != nil {
		if errors.Is(err, core.ErrRefreshTokenReused) {
			return core.RefreshToken{}, err
		}
		return core.RefreshToken{}, mapStoreError(err, "refresh token", record.ID)
	}
	return created.toDomain(), nil
}

func (s *RefreshTokenStore) RevokeFamily(ctx context.Context, familyID string, reason string, at time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: refresh token store is not configured")
	}
	revoked := 0
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*refreshTokenRecord)(nil)).
			Set("status = ?", string(core.RefreshTokenRevoked)).
			Set("revoked_at = ?", at.UTC()).
			Set("revoked_reason = ?", reason).
			Where("family_id = ?", strings.TrimSpace(familyID)).
			Where("status <> ?", string(core.RefreshTokenRevoked)).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		revoked = int(affected)
		return err
	})
	if err != nil {
		return 0, mapStoreError(err, "refresh token", "")
	}
	return revoked, nil
}

func (s *RefreshTokenStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: refresh token store is not configured")
	}
	purged := 0
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewDelete().
			Model((*refreshTokenRecord)(nil)).
			Where("expires_at < ?", before.UTC()).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		purged = int(affected)
		return err
	})
	if err != nil {
		return 0, mapStoreError(err, "refresh token", "")
	}
	return purged, nil
}
