package community

import "github.com/goliatone/go-community/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type StoreProvider = core.StoreProvider
type EventPublisher = core.EventPublisher
type TokenSigner = core.TokenSigner
type APIKeyVerifier = core.APIKeyVerifier
type SecretProvider = core.SecretProvider
type IdentityNormalizer = core.IdentityNormalizer

type Principal = core.Principal

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorFactory       = core.WithErrorFactory
	WithErrorMapper        = core.WithErrorMapper
	WithSecretProvider     = core.WithSecretProvider
	WithPersistenceClient  = core.WithPersistenceClient
	WithRepositoryFactory  = core.WithRepositoryFactory
	WithStores             = core.WithStores
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithTokenSigner        = core.WithTokenSigner
	WithAPIKeyVerifier     = core.WithAPIKeyVerifier
	WithIdentityNormalizer = core.WithIdentityNormalizer
	WithEventPublisher     = core.WithEventPublisher
	WithClock              = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
