package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig      Config
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
	stores             StoreProvider
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

// WithSecretProvider sets the provider used to encrypt webhook secrets at rest.
func WithSecretProvider(provider SecretProvider) Option {
	return func(b *serviceBuilder) {
		b.secretProvider = provider
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

// WithRepositoryFactory accepts a RepositoryStoreFactory or a StoreProvider.
func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithStores(stores StoreProvider) Option {
	return func(b *serviceBuilder) {
		b.stores = stores
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTokenSigner(signer TokenSigner) Option {
	return func(b *serviceBuilder) {
		b.tokenSigner = signer
	}
}

func WithAPIKeyVerifier(verifier APIKeyVerifier) Option {
	return func(b *serviceBuilder) {
		b.apiKeyVerifier = verifier
	}
}

func WithIdentityNormalizer(normalizer IdentityNormalizer) Option {
	return func(b *serviceBuilder) {
		b.identityNormalizer = normalizer
	}
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(b *serviceBuilder) {
		b.eventPublisher = publisher
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("community", nil, nil)
	return serviceBuilder{
		runtimeConfig:      runtime,
		loggerProvider:     loggerProvider,
		logger:             logger,
		metricsRecorder:    NopMetricsRecorder{},
		errorFactory:       goerrors.New,
		errorMapper:        defaultErrorMapper,
		configProvider:     NewCfgxConfigProvider(nil),
		optionsResolver:    GoOptionsResolver{},
		identityNormalizer: trimIdentityNormalizer{},
		eventPublisher:     NopEventPublisher{},
		clock:              func() time.Time { return time.Now().UTC() },
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}

type trimIdentityNormalizer struct{}

func (trimIdentityNormalizer) Normalize(_ IdentityProvider, externalID string) (string, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return "", BadInput("external_id is required")
	}
	return externalID, nil
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults, loaded and runtime config in that order.
// Zero values in the loaded and runtime layers do not override lower layers.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

type layerBuilder struct {
	values      map[string]any
	includeZero bool
}

func newLayerBuilder(includeZero bool) *layerBuilder {
	return &layerBuilder{values: map[string]any{}, includeZero: includeZero}
}

func (l *layerBuilder) str(key, value string) {
	if l.includeZero || strings.TrimSpace(value) != "" {
		l.values[key] = value
	}
}

func (l *layerBuilder) num(key string, value int64) {
	if l.includeZero || value != 0 {
		l.values[key] = value
	}
}

func (l *layerBuilder) float(key string, value float64) {
	if l.includeZero || value != 0 {
		l.values[key] = value
	}
}

func (l *layerBuilder) flag(key string, value bool) {
	if l.includeZero || value {
		l.values[key] = value
	}
}

func (l *layerBuilder) list(key string, value []string) {
	if l.includeZero || len(value) > 0 {
		l.values[key] = append([]string(nil), value...)
	}
}

func (l *layerBuilder) section(key string, build func(*layerBuilder)) {
	child := newLayerBuilder(l.includeZero)
	build(child)
	if len(child.values) > 0 {
		l.values[key] = child.values
	}
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := newLayerBuilder(includeZero)
	layer.str("service_name", cfg.ServiceName)
	layer.section("http", func(l *layerBuilder) {
		l.str("addr", cfg.HTTP.Addr)
		l.str("read_timeout", cfg.HTTP.ReadTimeout)
		l.str("write_timeout", cfg.HTTP.WriteTimeout)
		l.str("shutdown_timeout", cfg.HTTP.ShutdownTimeout)
		l.list("cors_origins", cfg.HTTP.CORSOrigins)
		l.float("rate_limit_rps", cfg.HTTP.RateLimitRPS)
		l.num("rate_limit_burst", int64(cfg.HTTP.RateLimitBurst))
		l.num("body_limit_bytes", cfg.HTTP.BodyLimitBytes)
	})
	layer.section("database", func(l *layerBuilder) {
		l.str("driver", cfg.Database.Driver)
		l.str("dsn", cfg.Database.DSN)
		l.flag("debug", cfg.Database.Debug)
		l.str("ping_timeout", cfg.Database.PingTimeout)
		l.flag("auto_migrate", cfg.Database.AutoMigrate)
	})
	layer.section("auth", func(l *layerBuilder) {
		l.str("signing_key", cfg.Auth.SigningKey)
		l.str("issuer", cfg.Auth.Issuer)
		l.str("audience", cfg.Auth.Audience)
		l.str("access_ttl", cfg.Auth.AccessTTL)
		l.str("refresh_ttl", cfg.Auth.RefreshTTL)
		l.list("service_api_key_hashes", cfg.Auth.ServiceAPIKeyHashes)
		l.str("purge_schedule", cfg.Auth.PurgeSchedule)
	})
	layer.section("applications", func(l *layerBuilder) {
		l.num("approval_threshold", int64(cfg.Applications.ApprovalThreshold))
		l.num("rejection_threshold", int64(cfg.Applications.RejectionThreshold))
	})
	layer.section("webhooks", func(l *layerBuilder) {
		l.num("max_attempts", int64(cfg.Webhooks.MaxAttempts))
		l.str("initial_backoff", cfg.Webhooks.InitialBackoff)
		l.str("max_backoff", cfg.Webhooks.MaxBackoff)
		l.str("request_timeout", cfg.Webhooks.RequestTimeout)
		l.str("secret_key", cfg.Webhooks.SecretKey)
		l.str("sweep_schedule", cfg.Webhooks.SweepSchedule)
		l.num("sweep_batch_size", int64(cfg.Webhooks.SweepBatchSize))
		l.num("workers", int64(cfg.Webhooks.Workers))
	})
	layer.section("logs", func(l *layerBuilder) {
		l.num("retention_days", int64(cfg.Logs.RetentionDays))
		l.str("prune_schedule", cfg.Logs.PruneSchedule)
	})
	layer.section("logging", func(l *layerBuilder) {
		l.str("level", cfg.Logging.Level)
		l.str("format", cfg.Logging.Format)
	})
	return layer.values
}
