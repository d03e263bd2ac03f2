package core

import (
	"context"
	"strings"
	"time"
)

type CreateTreasuryInput struct {
	Name        string `json:"name"`
	Chain       string `json:"chain"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

type UpdateTreasuryInput struct {
	Name        *string `json:"name"`
	Chain       *string `json:"chain"`
	Address     *string `json:"address"`
	Description *string `json:"description"`
}

func (s *Service) CreateTreasury(ctx context.Context, in CreateTreasuryInput) (treasury Treasury, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"chain": in.Chain}
	defer func() {
		s.observeOperation(ctx, startedAt, "create_treasury", err, fields)
	}()

	principal, err := requirePrivileged(ctx)
	if err != nil {
		return Treasury{}, err
	}
	if err = s.requireStore(s.treasuries, "treasury"); err != nil {
		return Treasury{}, err
	}
	now := s.now()
	treasury = Treasury{
		ID:          s.newID(),
		Name:        strings.TrimSpace(in.Name),
		Chain:       strings.ToLower(strings.TrimSpace(in.Chain)),
		Address:     strings.TrimSpace(in.Address),
		Description: strings.TrimSpace(in.Description),
		CreatedBy:   principal.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = validateTreasury(&treasury); err != nil {
		return Treasury{}, err
	}
	treasury, err = s.treasuries.Create(ctx, treasury)
	if err != nil {
		err = s.mapError(err)
		return Treasury{}, err
	}
	fields["treasury_id"] = treasury.ID
	s.emit(ctx, EventTreasuryCreated, map[string]any{"treasury": treasury})
	return treasury, nil
}

func (s *Service) GetTreasury(ctx context.Context, id string) (Treasury, error) {
	if err := s.requireStore(s.treasuries, "treasury"); err != nil {
		return Treasury{}, err
	}
	id, err := requireID("id", id)
	if err != nil {
		return Treasury{}, err
	}
	treasury, err := s.treasuries.Get(ctx, id)
	if err != nil {
		return Treasury{}, s.mapError(err)
	}
	return treasury, nil
}

func (s *Service) ListTreasuries(ctx context.Context, filter TreasuryFilter) (Page[Treasury], error) {
	if err := s.requireStore(s.treasuries, "treasury"); err != nil {
		return Page[Treasury]{}, err
	}
	filter.Chain = strings.ToLower(strings.TrimSpace(filter.Chain))
	filter.PageRequest = filter.PageRequest.Normalize()
	page, err := s.treasuries.List(ctx, filter)
	if err != nil {
		return Page[Treasury]{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) UpdateTreasury(ctx context.Context, id string, in UpdateTreasuryInput) (treasury Treasury, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"treasury_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_treasury", err, fields)
	}()

	if _, err = requirePrivileged(ctx); err != nil {
		return Treasury{}, err
	}
	treasury, err = s.GetTreasury(ctx, id)
	if err != nil {
		return Treasury{}, err
	}
	if in.Name != nil {
		treasury.Name = strings.TrimSpace(*in.Name)
	}
	if in.Chain != nil {
		treasury.Chain = strings.ToLower(strings.TrimSpace(*in.Chain))
	}
	if in.Address != nil {
		treasury.Address = strings.TrimSpace(*in.Address)
	}
	if in.Description != nil {
		treasury.Description = strings.TrimSpace(*in.Description)
	}
	if err = validateTreasury(&treasury); err != nil {
		return Treasury{}, err
	}
	treasury.UpdatedAt = s.now()
	treasury, err = s.treasuries.Update(ctx, treasury)
	if err != nil {
		err = s.mapError(err)
		return Treasury{}, err
	}
	s.emit(ctx, EventTreasuryUpdated, map[string]any{"treasury": treasury})
	return treasury, nil
}

func (s *Service) DeleteTreasury(ctx context.Context, id string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"treasury_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_treasury", err, fields)
	}()

	if _, err = requirePrivileged(ctx); err != nil {
		return err
	}
	treasury, err := s.GetTreasury(ctx, id)
	if err != nil {
		return err
	}
	if err = s.treasuries.Delete(ctx, treasury.ID); err != nil {
		err = s.mapError(err)
		return err
	}
	s.emit(ctx, EventTreasuryDeleted, map[string]any{"treasury_id": treasury.ID})
	return nil
}

// validateTreasury lowercases EVM style addresses so the (chain, address)
// uniqueness holds regardless of checksum casing.
func validateTreasury(t *Treasury) error {
	if t.Name == "" {
		return BadInput("name is required", fieldError("name", "required", t.Name))
	}
	if t.Chain == "" {
		return BadInput("chain is required", fieldError("chain", "required", t.Chain))
	}
	if t.Address == "" {
		return BadInput("address is required", fieldError("address", "required", t.Address))
	}
	if strings.HasPrefix(strings.ToLower(t.Address), "0x") {
		t.Address = strings.ToLower(t.Address)
	}
	return nil
}
