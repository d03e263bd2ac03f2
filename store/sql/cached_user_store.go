package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-community/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const userCacheKeyPrefix = "go-community::user::v1"

// CachedUserStore serves user reads by id from a cache and invalidates the
// entry on every write.
type CachedUserStore struct {
	core.UserStore
	cache repositorycache.CacheService
}

func NewCachedUserStore(base core.UserStore, cacheService repositorycache.CacheService) (*CachedUserStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base user store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: user cache service is required")
	}
	return &CachedUserStore{UserStore: base, cache: cacheService}, nil
}

// UserCacheKey returns go-community::user::v1::<id> with the id path escaped.
func UserCacheKey(id string) string {
	return userCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(id))
}

func (s *CachedUserStore) Get(ctx context.Context, id string) (core.User, error) {
	if s == nil || s.UserStore == nil || s.cache == nil {
		return core.User{}, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	id = strings.TrimSpace(id)
	return repositorycache.GetOrFetch(ctx, s.cache, UserCacheKey(id), func(ctx context.Context) (core.User, error) {
		return s.UserStore.Get(ctx, id)
	})
}

func (s *CachedUserStore) Update(ctx context.Context, user core.User) (core.User, error) {
	if s == nil || s.UserStore == nil || s.cache == nil {
		return core.User{}, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	updated, err := s.UserStore.Update(ctx, user)
	if err != nil {
		return core.User{}, err
	}
	if err := s.cache.Delete(ctx, UserCacheKey(user.ID)); err != nil {
		return core.User{}, err
	}
	return updated, nil
}

func (s *CachedUserStore) SoftDelete(ctx context.Context, id string) error {
	if s == nil || s.UserStore == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached user store is not configured")
	}
	if err := s.UserStore.SoftDelete(ctx, id); err != nil {
		return err
	}
	return s.cache.Delete(ctx, UserCacheKey(id))
}
