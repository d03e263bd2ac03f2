package core

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

type Service struct {
	config             Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	secretProvider     SecretProvider
	persistenceClient  any
	repositoryFactory  any
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	tokenSigner        TokenSigner
	apiKeyVerifier     APIKeyVerifier
	identityNormalizer IdentityNormalizer
	eventPublisher     EventPublisher
	clock              func() time.Time

	users         UserStore
	identities    IdentityStore
	applications  ApplicationStore
	practice      PracticeStore
	projects      ProjectStore
	treasuries    TreasuryStore
	vanishing     VanishingChannelStore
	webhooks      WebhookStore
	deliveries    DeliveryStore
	logs          LogStore
	refreshTokens RefreshTokenStore
}

type ServiceDependencies struct {
	Logger             Logger
	LoggerProvider     LoggerProvider
	MetricsRecorder    MetricsRecorder
	ErrorFactory       ErrorFactory
	ErrorMapper        ErrorMapper
	SecretProvider     SecretProvider
	PersistenceClient  any
	RepositoryFactory  any
	ConfigProvider     ConfigProvider
	OptionsResolver    OptionsResolver
	TokenSigner        TokenSigner
	APIKeyVerifier     APIKeyVerifier
	IdentityNormalizer IdentityNormalizer
	EventPublisher     EventPublisher
	Stores             StoreProvider
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("community", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("community"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.identityNormalizer == nil {
		builder.identityNormalizer = trimIdentityNormalizer{}
	}
	if builder.eventPublisher == nil {
		builder.eventPublisher = NopEventPublisher{}
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	stores := builder.stores
	if stores == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			stores = built
		} else if provider, ok := builder.repositoryFactory.(StoreProvider); ok {
			stores = provider
		}
	}

	svc := &Service{
		config:             finalConfig,
		logger:             logger,
		loggerProvider:     provider,
		metricsRecorder:    builder.metricsRecorder,
		errorFactory:       builder.errorFactory,
		errorMapper:        builder.errorMapper,
		secretProvider:     builder.secretProvider,
		persistenceClient:  builder.persistenceClient,
		repositoryFactory:  builder.repositoryFactory,
		configProvider:     builder.configProvider,
		optionsResolver:    builder.optionsResolver,
		tokenSigner:        builder.tokenSigner,
		apiKeyVerifier:     builder.apiKeyVerifier,
		identityNormalizer: builder.identityNormalizer,
		eventPublisher:     builder.eventPublisher,
		clock:              builder.clock,
	}
	if stores != nil {
		svc.users = stores.UserStore()
		svc.identities = stores.IdentityStore()
		svc.applications = stores.ApplicationStore()
		svc.practice = stores.PracticeStore()
		svc.projects = stores.ProjectStore()
		svc.treasuries = stores.TreasuryStore()
		svc.vanishing = stores.VanishingChannelStore()
		svc.webhooks = stores.WebhookStore()
		svc.deliveries = stores.DeliveryStore()
		svc.logs = stores.LogStore()
		svc.refreshTokens = stores.RefreshTokenStore()
	}
	return svc, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:             s.logger,
		LoggerProvider:     s.loggerProvider,
		MetricsRecorder:    s.metricsRecorder,
		ErrorFactory:       s.errorFactory,
		ErrorMapper:        s.errorMapper,
		SecretProvider:     s.secretProvider,
		PersistenceClient:  s.persistenceClient,
		RepositoryFactory:  s.repositoryFactory,
		ConfigProvider:     s.configProvider,
		OptionsResolver:    s.optionsResolver,
		TokenSigner:        s.tokenSigner,
		APIKeyVerifier:     s.apiKeyVerifier,
		IdentityNormalizer: s.identityNormalizer,
		EventPublisher:     s.eventPublisher,
		Stores:             s.Stores(),
	}
}

// Stores exposes the configured stores, for adapters that share them.
func (s *Service) Stores() StoreProvider {
	if s == nil {
		return nil
	}
	return serviceStores{s: s}
}

// SetEventPublisher replaces the publisher after construction. Publishers that
// depend on the service's stores are wired this way.
func (s *Service) SetEventPublisher(publisher EventPublisher) {
	if s == nil {
		return
	}
	if publisher == nil {
		publisher = NopEventPublisher{}
	}
	s.eventPublisher = publisher
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return serviceErrorMapper(err)
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func (s *Service) newID() string {
	return uuid.NewString()
}

func (s *Service) requireStore(store any, name string) error {
	if store == nil {
		return Internal(nil, "core: "+name+" store is not configured")
	}
	return nil
}

func requireID(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", BadInput(field+" is required", fieldError(field, "required", value))
	}
	return value, nil
}

type serviceStores struct {
	s *Service
}

func (p serviceStores) UserStore() UserStore                 { return p.s.users }
func (p serviceStores) IdentityStore() IdentityStore         { return p.s.identities }
func (p serviceStores) ApplicationStore() ApplicationStore   { return p.s.applications }
func (p serviceStores) PracticeStore() PracticeStore         { return p.s.practice }
func (p serviceStores) ProjectStore() ProjectStore           { return p.s.projects }
func (p serviceStores) TreasuryStore() TreasuryStore         { return p.s.treasuries }
func (p serviceStores) WebhookStore() WebhookStore           { return p.s.webhooks }
func (p serviceStores) DeliveryStore() DeliveryStore         { return p.s.deliveries }
func (p serviceStores) LogStore() LogStore                   { return p.s.logs }
func (p serviceStores) RefreshTokenStore() RefreshTokenStore { return p.s.refreshTokens }
func (p serviceStores) VanishingChannelStore() VanishingChannelStore {
	return p.s.vanishing
}
