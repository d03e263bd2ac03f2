package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-community/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db        *bun.DB
	userCache repositorycache.CacheService

	userStore             core.UserStore
	identityStore         *IdentityStore
	applicationStore      *ApplicationStore
	practiceStore         *PracticeStore
	projectStore          *ProjectStore
	treasuryStore         *TreasuryStore
	vanishingChannelStore *VanishingChannelStore
	webhookStore          *WebhookStore
	deliveryStore         *DeliveryStore
	logStore              *LogStore
	refreshTokenStore     *RefreshTokenStore
}

type FactoryOption func(*RepositoryFactory)

// WithUserCache serves user reads through cacheService.
func WithUserCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.userCache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.userStore != nil && f.refreshTokenStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) UserStore() core.UserStore {
	if f == nil {
		return nil
	}
	return f.userStore
}

func (f *RepositoryFactory) IdentityStore() core.IdentityStore {
	if f == nil {
		return nil
	}
	return f.identityStore
}

func (f *RepositoryFactory) ApplicationStore() core.ApplicationStore {
	if f == nil {
		return nil
	}
	return f.applicationStore
}

func (f *RepositoryFactory) PracticeStore() core.PracticeStore {
	if f == nil {
		return nil
	}
	return f.practiceStore
}

func (f *RepositoryFactory) ProjectStore() core.ProjectStore {
	if f == nil {
		return nil
	}
	return f.projectStore
}

func (f *RepositoryFactory) TreasuryStore() core.TreasuryStore {
	if f == nil {
		return nil
	}
	return f.treasuryStore
}

func (f *RepositoryFactory) VanishingChannelStore() core.VanishingChannelStore {
	if f == nil {
		return nil
	}
	return f.vanishingChannelStore
}

func (f *RepositoryFactory) WebhookStore() core.WebhookStore {
	if f == nil {
		return nil
	}
	return f.webhookStore
}

func (f *RepositoryFactory) DeliveryStore() core.DeliveryStore {
	if f == nil {
		return nil
	}
	return f.deliveryStore
}

func (f *RepositoryFactory) LogStore() core.LogStore {
	if f == nil {
		return nil
	}
	return f.logStore
}

func (f *RepositoryFactory) RefreshTokenStore() core.RefreshTokenStore {
	if f == nil {
		return nil
	}
	return f.refreshTokenStore
}

func (f *RepositoryFactory) initStores() error {
	userStore, err := NewUserStore(f.db)
	if err != nil {
		return err
	}
	f.userStore = userStore
	if f.userCache != nil {
		cached, err := NewCachedUserStore(userStore, f.userCache)
		if err != nil {
			return err
		}
		f.userStore = cached
	}

	if f.identityStore, err = NewIdentityStore(f.db); err != nil {
		return err
	}
	if f.applicationStore, err = NewApplicationStore(f.db); err != nil {
		return err
	}
	if f.practiceStore, err = NewPracticeStore(f.db); err != nil {
		return err
	}
	if f.projectStore, err = NewProjectStore(f.db); err != nil {
		return err
	}
	if f.treasuryStore, err = NewTreasuryStore(f.db); err != nil {
		return err
	}
	if f.vanishingChannelStore, err = NewVanishingChannelStore(f.db); err != nil {
		return err
	}
	if f.webhookStore, err = NewWebhookStore(f.db); err != nil {
		return err
	}
	if f.deliveryStore, err = NewDeliveryStore(f.db); err != nil {
		return err
	}
	if f.logStore, err = NewLogStore(f.db); err != nil {
		return err
	}
	if f.refreshTokenStore, err = NewRefreshTokenStore(f.db); err != nil {
		return err
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
