package core

import (
	"context"
	"strings"
	"time"
)

type UpsertVanishingChannelInput struct {
	GuildID            string `json:"guild_id"`
	ChannelID          string `json:"channel_id"`
	VanishAfterSeconds int    `json:"vanish_after_seconds"`
	Enabled            *bool  `json:"enabled"`
}

type UpdateVanishingChannelInput struct {
	VanishAfterSeconds *int  `json:"vanish_after_seconds"`
	Enabled            *bool `json:"enabled"`
}

func validateVanishAfter(seconds int) error {
	if seconds < MinVanishAfterSeconds || seconds > MaxVanishAfterSeconds {
		return BadInput("vanish_after_seconds out of range",
			fieldError("vanish_after_seconds", "must be between 60 and 2592000", seconds))
	}
	return nil
}

// UpsertVanishingChannel creates or replaces the config for a channel.
func (s *Service) UpsertVanishingChannel(ctx context.Context, in UpsertVanishingChannelInput) (channel VanishingChannel, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"channel_id": in.ChannelID}
	defer func() {
		s.observeOperation(ctx, startedAt, "upsert_vanishing_channel", err, fields)
	}()

	principal, err := requirePrivileged(ctx)
	if err != nil {
		return VanishingChannel{}, err
	}
	if err = s.requireStore(s.vanishing, "vanishing channel"); err != nil {
		return VanishingChannel{}, err
	}
	guildID, err := requireID("guild_id", in.GuildID)
	if err != nil {
		return VanishingChannel{}, err
	}
	channelID, err := requireID("channel_id", in.ChannelID)
	if err != nil {
		return VanishingChannel{}, err
	}
	if err = validateVanishAfter(in.VanishAfterSeconds); err != nil {
		return VanishingChannel{}, err
	}
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}

	now := s.now()
	channel, err = s.vanishing.Upsert(ctx, VanishingChannel{
		ID:                 s.newID(),
		GuildID:            guildID,
		ChannelID:          channelID,
		VanishAfterSeconds: in.VanishAfterSeconds,
		Enabled:            enabled,
		CreatedBy:          principal.UserID,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		err = s.mapError(err)
		return VanishingChannel{}, err
	}
	s.emit(ctx, EventVanishingChannelUpdated, map[string]any{"vanishing_channel": channel})
	return channel, nil
}

func (s *Service) GetVanishingChannel(ctx context.Context, id string) (VanishingChannel, error) {
	if err := s.requireStore(s.vanishing, "vanishing channel"); err != nil {
		return VanishingChannel{}, err
	}
	id, err := requireID("id", id)
	if err != nil {
		return VanishingChannel{}, err
	}
	channel, err := s.vanishing.Get(ctx, id)
	if err != nil {
		return VanishingChannel{}, s.mapError(err)
	}
	return channel, nil
}

func (s *Service) GetVanishingChannelByChannel(ctx context.Context, channelID string) (VanishingChannel, error) {
	if err := s.requireStore(s.vanishing, "vanishing channel"); err != nil {
		return VanishingChannel{}, err
	}
	channelID, err := requireID("channel_id", channelID)
	if err != nil {
		return VanishingChannel{}, err
	}
	channel, err := s.vanishing.GetByChannel(ctx, channelID)
	if err != nil {
		return VanishingChannel{}, s.mapError(err)
	}
	return channel, nil
}

func (s *Service) ListVanishingChannels(ctx context.Context, filter VanishingChannelFilter) (Page[VanishingChannel], error) {
	if err := s.requireStore(s.vanishing, "vanishing channel"); err != nil {
		return Page[VanishingChannel]{}, err
	}
	filter.GuildID = strings.TrimSpace(filter.GuildID)
	filter.PageRequest = filter.PageRequest.Normalize()
	page, err := s.vanishing.List(ctx, filter)
	if err != nil {
		return Page[VanishingChannel]{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) UpdateVanishingChannel(ctx context.Context, id string, in UpdateVanishingChannelInput) (channel VanishingChannel, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"vanishing_channel_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_vanishing_channel", err, fields)
	}()

	if _, err = requirePrivileged(ctx); err != nil {
		return VanishingChannel{}, err
	}
	channel, err = s.GetVanishingChannel(ctx, id)
	if err != nil {
		return VanishingChannel{}, err
	}
	if in.VanishAfterSeconds != nil {
		if err = validateVanishAfter(*in.VanishAfterSeconds); err != nil {
			return VanishingChannel{}, err
		}
		channel.VanishAfterSeconds = *in.VanishAfterSeconds
	}
	if in.Enabled != nil {
		channel.Enabled = *in.Enabled
	}
	channel.UpdatedAt = s.now()
	channel, err = s.vanishing.Update(ctx, channel)
	if err != nil {
		err = s.mapError(err)
		return VanishingChannel{}, err
	}
	s.emit(ctx, EventVanishingChannelUpdated, map[string]any{"vanishing_channel": channel})
	return channel, nil
}

func (s *Service) DeleteVanishingChannel(ctx context.Context, id string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"vanishing_channel_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_vanishing_channel", err, fields)
	}()

	if _, err = requirePrivileged(ctx); err != nil {
		return err
	}
	channel, err := s.GetVanishingChannel(ctx, id)
	if err != nil {
		return err
	}
	if err = s.vanishing.Delete(ctx, channel.ID); err != nil {
		err = s.mapError(err)
		return err
	}
	s.emit(ctx, EventVanishingChannelDeleted, map[string]any{
		"vanishing_channel_id": channel.ID,
		"channel_id":           channel.ChannelID,
	})
	return nil
}
