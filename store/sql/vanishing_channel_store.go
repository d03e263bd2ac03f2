package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-community/core"
	"github.com/uptrace/bun"
)

type VanishingChannelStore struct {
	db *bun.DB
}

func NewVanishingChannelStore(db *bun.DB) (*VanishingChannelStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &VanishingChannelStore{db: db}, nil
}

// Upsert keys on channel_id; an existing row keeps its id and creator.
func (s *VanishingChannelStore) Upsert(ctx context.Context, channel core.VanishingChannel) (core.VanishingChannel, error) {
	if s == nil || s.db == nil {
		return core.VanishingChannel{}, fmt.Errorf("sqlstore: vanishing channel store is not configured")
	}
	now := time.Now().UTC()
	record := newVanishingChannelRecord(channel, now)
	record.UpdatedAt = now
	stored := &vanishingChannelRecord{}
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(record).
			On("CONFLICT (channel_id) DO UPDATE").
			Set("guild_id = EXCLUDED.guild_id").
			Set("vanish_after_seconds = EXCLUDED.vanish_after_seconds").
			Set("enabled = EXCLUDED.enabled").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return err
		}
		return tx.NewSelect().Model(stored).Where("?TableAlias.channel_id = ?", record.ChannelID).Scan(ctx)
	})
	if err != nil {
		return core.VanishingChannel{}, mapStoreError(err, "vanishing channel", record.ChannelID)
	}
	return stored.toDomain(), nil
}

func (s *VanishingChannelStore) Get(ctx context.Context, id string) (core.VanishingChannel, error) {
	if s == nil || s.db == nil {
		return core.VanishingChannel{}, fmt.Errorf("sqlstore: vanishing channel store is not configured")
	}
	if !isUUID(id) {
		return core.VanishingChannel{}, core.NotFound("vanishing channel", id)
	}
	record := &vanishingChannelRecord{}
	if err := scopedGet(ctx, s.db, "id", id, record); err != nil {
		return core.VanishingChannel{}, mapStoreError(err, "vanishing channel", id)
	}
	return record.toDomain(), nil
}

func (s *VanishingChannelStore) GetByChannel(ctx context.Context, channelID string) (core.VanishingChannel, error) {
	if s == nil || s.db == nil {
		return core.VanishingChannel{}, fmt.Errorf("sqlstore: vanishing channel store is not configured")
	}
	record := &vanishingChannelRecord{}
	if err := scopedGet(ctx, s.db, "channel_id", channelID, record); err != nil {
		return core.VanishingChannel{}, mapStoreError(err, "vanishing channel", channelID)
	}
	return record.toDomain(), nil
}

func (s *VanishingChannelStore) List(ctx context.Context, filter core.VanishingChannelFilter) (core.Page[core.VanishingChannel], error) {
	if s == nil || s.db == nil {
		return core.Page[core.VanishingChannel]{}, fmt.Errorf("sqlstore: vanishing channel store is not configured")
	}
	page, err := scopedPage(ctx, s.db, filter.PageRequest, func(q *bun.SelectQuery) *bun.SelectQuery {
		if guildID := strings.TrimSpace(filter.GuildID); guildID != "" {
			q = q.Where("?TableAlias.guild_id = ?", guildID)
		}
		return q.OrderExpr("?TableAlias.created_at DESC")
	}, (*vanishingChannelRecord).toDomain)
	if err != nil {
		return core.Page[core.VanishingChannel]{}, mapStoreError(err, "vanishing channel", "")
	}
	return page, nil
}

func (s *VanishingChannelStore) Update(ctx context.Context, channel core.VanishingChannel) (core.VanishingChannel, error) {
	if s == nil || s.db == nil {
		return core.VanishingChannel{}, fmt.Errorf("sqlstore: vanishing channel store is not configured")
	}
	record := newVanishingChannelRecord(channel, time.Now().UTC())
	record.UpdatedAt = time.Now().UTC()
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model(record).
			Column("guild_id", "vanish_after_seconds", "enabled", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		return requireAffected(result, "vanishing channel", record.ID)
	})
	if err != nil {
		return core.VanishingChannel{}, mapStoreError(err, "vanishing channel", record.ID)
	}
	return s.Get(ctx, record.ID)
}

func (s *VanishingChannelStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: vanishing channel store is not configured")
	}
	return deleteByID[vanishingChannelRecord](ctx, s.db, "vanishing channel", id)
}
