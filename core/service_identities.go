package core

import (
	"context"
	"strings"
	"time"
)

type LinkIdentityInput struct {
	Provider   string         `json:"provider"`
	ExternalID string         `json:"external_id"`
	Handle     string         `json:"handle"`
	Verified   bool           `json:"verified"`
	Metadata   map[string]any `json:"metadata"`
}

type UpdateIdentityInput struct {
	Handle   *string        `json:"handle"`
	Verified *bool          `json:"verified"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Service) normalizeIdentity(providerName, externalID string) (IdentityProvider, string, error) {
	provider, ok := ParseIdentityProvider(providerName)
	if !ok {
		return "", "", BadInput("unknown identity provider", fieldError("provider", "unsupported provider", providerName))
	}
	normalized, err := s.identityNormalizer.Normalize(provider, externalID)
	if err != nil {
		return "", "", s.mapError(err)
	}
	return provider, normalized, nil
}

func (s *Service) LinkIdentity(ctx context.Context, userID string, in LinkIdentityInput) (identity Identity, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": userID, "provider": in.Provider}
	defer func() {
		s.observeOperation(ctx, startedAt, "link_identity", err, fields)
	}()

	principal, err := requireSelfOrPrivileged(ctx, userID)
	if err != nil {
		return Identity{}, err
	}
	if in.Verified && !principal.Privileged() {
		err = Forbidden("only admin or service callers may mark identities verified")
		return Identity{}, err
	}
	if err = s.requireStore(s.identities, "identity"); err != nil {
		return Identity{}, err
	}
	if _, err = s.GetUser(ctx, userID); err != nil {
		return Identity{}, err
	}
	provider, externalID, err := s.normalizeIdentity(in.Provider, in.ExternalID)
	if err != nil {
		return Identity{}, err
	}

	existing, err := s.identities.ListByUser(ctx, userID)
	if err != nil {
		err = s.mapError(err)
		return Identity{}, err
	}
	for _, candidate := range existing {
		if candidate.Provider == provider {
			err = Conflict("user already has a " + string(provider) + " identity")
			return Identity{}, err
		}
	}

	now := s.now()
	identity, err = s.identities.Link(ctx, Identity{
		ID:         s.newID(),
		UserID:     strings.TrimSpace(userID),
		Provider:   provider,
		ExternalID: externalID,
		Handle:     strings.TrimSpace(in.Handle),
		Verified:   in.Verified,
		Metadata:   cloneFields(in.Metadata),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		err = s.mapError(err)
		return Identity{}, err
	}
	fields["identity_id"] = identity.ID
	s.emit(ctx, EventIdentityLinked, map[string]any{"identity": identity})
	return identity, nil
}

func (s *Service) ListIdentities(ctx context.Context, userID string) ([]Identity, error) {
	if err := s.requireStore(s.identities, "identity"); err != nil {
		return nil, err
	}
	userID, err := requireID("user_id", userID)
	if err != nil {
		return nil, err
	}
	identities, err := s.identities.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.mapError(err)
	}
	if identities == nil {
		identities = []Identity{}
	}
	return identities, nil
}

func (s *Service) GetIdentity(ctx context.Context, id string) (Identity, error) {
	if err := s.requireStore(s.identities, "identity"); err != nil {
		return Identity{}, err
	}
	id, err := requireID("id", id)
	if err != nil {
		return Identity{}, err
	}
	identity, err := s.identities.Get(ctx, id)
	if err != nil {
		return Identity{}, s.mapError(err)
	}
	return identity, nil
}

// LookupUser resolves the user owning a provider identity.
func (s *Service) LookupUser(ctx context.Context, providerName, externalID string) (User, error) {
	if err := s.requireStore(s.identities, "identity"); err != nil {
		return User{}, err
	}
	provider, normalized, err := s.normalizeIdentity(providerName, externalID)
	if err != nil {
		return User{}, err
	}
	identity, err := s.identities.FindByProvider(ctx, provider, normalized)
	if err != nil {
		return User{}, s.mapError(err)
	}
	return s.GetUser(ctx, identity.UserID)
}

func (s *Service) UpdateIdentity(ctx context.Context, id string, in UpdateIdentityInput) (identity Identity, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"identity_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_identity", err, fields)
	}()

	identity, err = s.GetIdentity(ctx, id)
	if err != nil {
		return Identity{}, err
	}
	principal, err := requireSelfOrPrivileged(ctx, identity.UserID)
	if err != nil {
		return Identity{}, err
	}
	if in.Verified != nil && !principal.Privileged() {
		err = Forbidden("only admin or service callers may change verification")
		return Identity{}, err
	}
	if in.Handle != nil {
		identity.Handle = strings.TrimSpace(*in.Handle)
	}
	if in.Verified != nil {
		identity.Verified = *in.Verified
	}
	if in.Metadata != nil {
		identity.Metadata = cloneFields(in.Metadata)
	}
	identity.UpdatedAt = s.now()

	identity, err = s.identities.Update(ctx, identity)
	if err != nil {
		err = s.mapError(err)
		return Identity{}, err
	}
	return identity, nil
}

func (s *Service) UnlinkIdentity(ctx context.Context, id string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"identity_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "unlink_identity", err, fields)
	}()

	identity, err := s.GetIdentity(ctx, id)
	if err != nil {
		return err
	}
	if _, err = requireSelfOrPrivileged(ctx, identity.UserID); err != nil {
		return err
	}
	if err = s.identities.Unlink(ctx, identity.ID); err != nil {
		err = s.mapError(err)
		return err
	}
	s.emit(ctx, EventIdentityUnlinked, map[string]any{
		"identity_id": identity.ID,
		"user_id":     identity.UserID,
		"provider":    string(identity.Provider),
	})
	return nil
}
