// Package app wires the community service into a runnable process: database,
// migrations, logging, metrics, the webhook dispatcher, the HTTP API and the
// maintenance scheduler.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	community "github.com/goliatone/go-community"
	"github.com/goliatone/go-community/adapters/gocommand"
	"github.com/goliatone/go-community/adapters/gojob"
	"github.com/goliatone/go-community/adapters/gologger"
	"github.com/goliatone/go-community/adapters/prometheus"
	"github.com/goliatone/go-community/api"
	"github.com/goliatone/go-community/auth"
	"github.com/goliatone/go-community/core"
	"github.com/goliatone/go-community/identity"
	"github.com/goliatone/go-community/jobs"
	communitymigrations "github.com/goliatone/go-community/migrations"
	"github.com/goliatone/go-community/ratelimit"
	"github.com/goliatone/go-community/security"
	sqlstore "github.com/goliatone/go-community/store/sql"
	"github.com/goliatone/go-community/transport"
	"github.com/goliatone/go-community/webhooks"
	"github.com/goliatone/go-job/queue"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// Version is reported in the OpenAPI document.
var Version = "dev"

const userCacheTTL = 30 * time.Second

// LoadConfig layers an optional YAML file and COMMUNITY_* environment
// variables over the defaults and validates the result.
func LoadConfig(ctx context.Context, path string) (core.Config, error) {
	loader := core.ChainConfigLoader{
		core.FileConfigLoader{Path: path, Optional: strings.TrimSpace(path) == ""},
		core.NewEnvConfigLoader(),
	}
	cfg, err := core.NewCfgxConfigProvider(loader).Load(ctx, core.DefaultConfig())
	if err != nil {
		return core.Config{}, fmt.Errorf("app: load config: %w", err)
	}
	return cfg, nil
}

type App struct {
	config     core.Config
	logger     *gologger.ZapLogger
	provider   *gologger.ZapProvider
	db         *sql.DB
	client     *persistence.Client
	stores     *sqlstore.RepositoryFactory
	service    *core.Service
	dispatcher *webhooks.Dispatcher
	metrics    *prometheus.Recorder
	server     *api.Server
	scheduler  *jobs.Scheduler
	worker     *gojob.DeliveryWorker
	facade     *community.Facade
	bus        *gocommand.Bus
	queueCmds  *jobqueuecommand.Registry

	closeOnce sync.Once
}

type options struct {
	httpClient transport.HTTPDoer
	enqueuer   queue.Enqueuer
	dequeuer   queue.Dequeuer
	logger     *gologger.ZapLogger
	version    string
}

type Option func(*options)

// WithHTTPClient sets the client used for outbound webhook deliveries.
func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithDeliveryQueue moves webhook delivery onto a go-job queue. Deliveries
// are enqueued by the dispatcher and consumed by an in-process worker.
func WithDeliveryQueue(enqueuer queue.Enqueuer, dequeuer queue.Dequeuer) Option {
	return func(o *options) {
		o.enqueuer = enqueuer
		o.dequeuer = dequeuer
	}
}

func WithZapLogger(logger *gologger.ZapLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithVersion(version string) Option {
	return func(o *options) {
		if strings.TrimSpace(version) != "" {
			o.version = version
		}
	}
}

func New(ctx context.Context, cfg core.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{version: Version}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	logger := o.logger
	if logger == nil {
		built, err := gologger.NewZapLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("app: logger: %w", err)
		}
		logger = built
	}
	a := &App{
		config:   cfg,
		logger:   logger,
		provider: gologger.NewZapProvider(logger),
	}

	if err := a.openDatabase(ctx); err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := a.Migrate(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	if err := a.buildService(o); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openDatabase(ctx context.Context) error {
	cfg := a.config.Database
	driver, dialect, err := sqlDriver(cfg)
	if err != nil {
		return err
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("app: open database: %w", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeoutDuration())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("app: ping database: %w", err)
	}

	client, err := persistence.New(persistenceConfig{db: cfg, driver: driver}, db, dialect)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("app: persistence client: %w", err)
	}
	migrationDialect, err := communitymigrations.DialectForDriver(driver)
	if err == nil {
		_, err = communitymigrations.RegisterFor(client, migrationDialect)
	}
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("app: %w", err)
	}

	a.db = db
	a.client = client
	return nil
}

func (a *App) buildService(o options) error {
	cfg := a.config

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = userCacheTTL
	userCache, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return fmt.Errorf("app: user cache: %w", err)
	}
	stores, err := sqlstore.NewRepositoryFactoryFromPersistence(a.client, sqlstore.WithUserCache(userCache))
	if err != nil {
		return fmt.Errorf("app: stores: %w", err)
	}
	a.stores = stores

	signer, err := auth.NewJWTSignerFromConfig(cfg.Auth)
	if err != nil {
		return fmt.Errorf("app: token signer: %w", err)
	}
	verifier, err := auth.NewBcryptKeyVerifier(cfg.Auth.ServiceAPIKeyHashes)
	if err != nil {
		return fmt.Errorf("app: api key verifier: %w", err)
	}
	secretKey := strings.TrimSpace(cfg.Webhooks.SecretKey)
	if secretKey == "" {
		a.logger.Warn("webhooks.secret_key not set, deriving webhook secret encryption from auth.signing_key")
		secretKey = cfg.Auth.SigningKey
	}
	secrets, err := security.NewAppKeySecretProviderFromString(secretKey)
	if err != nil {
		return fmt.Errorf("app: secret provider: %w", err)
	}

	a.metrics = prometheus.NewRecorder(prometheus.WithNamespace(cfg.ServiceName))
	service, err := core.NewService(cfg,
		core.WithLoggerProvider(a.provider),
		core.WithMetricsRecorder(a.metrics),
		core.WithPersistenceClient(a.client),
		core.WithStores(stores),
		core.WithTokenSigner(signer),
		core.WithAPIKeyVerifier(verifier),
		core.WithSecretProvider(secrets),
		core.WithIdentityNormalizer(identity.NewNormalizer()),
	)
	if err != nil {
		return fmt.Errorf("app: service: %w", err)
	}
	a.service = service

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	dispatcherOpts := []webhooks.Option{
		webhooks.WithConfig(cfg.Webhooks),
		webhooks.WithLogger(a.provider.GetLogger("webhooks")),
		webhooks.WithMetricsRecorder(a.metrics),
	}
	if o.enqueuer != nil && o.dequeuer != nil {
		dispatcherOpts = append(dispatcherOpts, webhooks.WithJobEnqueuer(gojob.NewEnqueuerAdapter(o.enqueuer)))
	}
	dispatcher, err := webhooks.NewDispatcher(
		stores.WebhookStore(),
		stores.DeliveryStore(),
		secrets,
		transport.NewWebhookClient(httpClient),
		dispatcherOpts...,
	)
	if err != nil {
		return fmt.Errorf("app: webhook dispatcher: %w", err)
	}
	service.SetEventPublisher(dispatcher)
	a.dispatcher = dispatcher

	if o.enqueuer != nil && o.dequeuer != nil {
		policy := gojob.RetryPolicy{MaxAttempts: cfg.Webhooks.MaxAttempts, MaxDelay: 5 * time.Minute, DeadLetterOnMax: true}
		worker, err := gojob.NewDeliveryWorker(
			gojob.NewDequeuerAdapter(o.dequeuer, policy),
			dispatcher,
			gojob.WithWorkerRetryPolicy(policy),
			gojob.WithWorkerLogger(a.provider.GetLogger("webhooks.worker")),
			gojob.WithWorkerHook(gojob.NewHookBridge(
				gojob.LoggingHook(gologger.JobLogger(a.provider, "webhooks.worker")),
				gojob.MetricsHook(a.metrics),
			)),
		)
		if err != nil {
			return fmt.Errorf("app: delivery worker: %w", err)
		}
		a.worker = worker
	}

	serverOpts := []api.Option{
		api.WithWebhookOperator(dispatcher),
		api.WithHTTPMetrics(a.metrics.HTTPMetrics()),
		api.WithMetricsHandler(a.metrics.Handler()),
		api.WithReadinessCheck(a.db.PingContext),
		api.WithLogger(a.provider.GetLogger("http")),
		api.WithHTTPConfig(cfg.HTTP),
		api.WithDocumentInfo(documentTitle(cfg), o.version),
	}
	if cfg.HTTP.RateLimitRPS > 0 {
		serverOpts = append(serverOpts, api.WithLimiter(ratelimit.NewKeyedLimiterFromConfig(cfg.HTTP)))
	}
	server, err := api.NewServer(service, serverOpts...)
	if err != nil {
		return fmt.Errorf("app: http server: %w", err)
	}
	a.server = server

	scheduler, err := jobs.NewScheduler(cfg, service,
		jobs.WithSweeper(dispatcher),
		jobs.WithLogger(a.provider.GetLogger("jobs")),
		jobs.WithMetricsRecorder(a.metrics),
	)
	if err != nil {
		return fmt.Errorf("app: scheduler: %w", err)
	}
	a.scheduler = scheduler

	facade, err := community.NewFacade(service,
		community.WithFacadePublisher(dispatcher),
		community.WithFacadeSweeper(dispatcher),
	)
	if err != nil {
		return fmt.Errorf("app: facade: %w", err)
	}
	a.facade = facade

	bus := gocommand.NewBus(nil)
	queueCmds := jobqueuecommand.NewRegistry()
	if err := bus.MirrorToQueue(queueCmds); err != nil {
		return fmt.Errorf("app: command bus: %w", err)
	}
	if err := gocommand.RegisterCommunityHandlers(bus, service, dispatcher, dispatcher); err != nil {
		return fmt.Errorf("app: command bus: %w", err)
	}
	a.bus = bus
	if err := bus.Start(); err != nil {
		return fmt.Errorf("app: command bus: %w", err)
	}
	a.queueCmds = queueCmds
	return nil
}

// RunMigrations opens the configured database, applies the migrations and
// closes it. Unlike New it does not need auth or webhook secrets.
func RunMigrations(ctx context.Context, cfg core.Config) error {
	logger, err := gologger.NewZapLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("app: logger: %w", err)
	}
	a := &App{config: cfg, logger: logger, provider: gologger.NewZapProvider(logger)}
	if err := a.openDatabase(ctx); err != nil {
		return err
	}
	defer a.Close()
	return a.Migrate(ctx)
}

// Document builds the OpenAPI document without opening a database.
func Document(cfg core.Config, version string) (*openapi3.T, error) {
	service, err := core.NewService(cfg)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(version) == "" {
		version = Version
	}
	server, err := api.NewServer(service,
		api.WithHTTPConfig(cfg.HTTP),
		api.WithMetricsHandler(http.NotFoundHandler()),
		api.WithDocumentInfo(documentTitle(cfg), version),
	)
	if err != nil {
		return nil, err
	}
	return server.OpenAPI()
}

// Migrate applies the embedded migrations for the configured dialect.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.client.Migrate(ctx); err != nil {
		return fmt.Errorf("app: migrate: %w", err)
	}
	a.logger.Info("migrations applied", "dialect", a.config.Database.DatabaseDialect())
	return nil
}

// Serve runs the HTTP server, the scheduler and the optional delivery worker
// until ctx is cancelled, then shuts them down within the configured timeout.
func (a *App) Serve(ctx context.Context) error {
	httpServer := a.server.HTTPServer()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.scheduler.Start(runCtx); err != nil {
		return err
	}
	var workerDone chan struct{}
	if a.worker != nil {
		workerDone = make(chan struct{})
		go func() {
			defer close(workerDone)
			_ = a.worker.Run(runCtx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.HTTP.ShutdownTimeoutDuration())
	defer shutdownCancel()
	a.logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("app: http shutdown: %w", err))
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("app: scheduler stop: %w", err))
	}
	cancel()
	if workerDone != nil {
		select {
		case <-workerDone:
		case <-shutdownCtx.Done():
		}
	}
	if err := a.dispatcher.Wait(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("app: webhook drain: %w", err))
	}
	return runErr
}

func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.bus.Close()
		if a.client != nil {
			err = a.client.Close()
		} else if a.db != nil {
			err = a.db.Close()
		}
		if a.logger != nil {
			_ = a.logger.Sync()
		}
	})
	return err
}

func (a *App) Config() core.Config                 { return a.config }
func (a *App) Service() *core.Service              { return a.service }
func (a *App) Server() *api.Server                 { return a.server }
func (a *App) Dispatcher() *webhooks.Dispatcher    { return a.dispatcher }
func (a *App) Scheduler() *jobs.Scheduler          { return a.scheduler }
func (a *App) Persistence() *persistence.Client    { return a.client }
func (a *App) Stores() *sqlstore.RepositoryFactory { return a.stores }

// Facade exposes the go-command handlers bound to the running service.
func (a *App) Facade() *community.Facade { return a.facade }

// Bus routes community commands and queries through the go-command dispatcher.
func (a *App) Bus() *gocommand.Bus { return a.bus }

// QueueCommands holds the community commands mirrored for go-job workers.
func (a *App) QueueCommands() *jobqueuecommand.Registry { return a.queueCmds }

func documentTitle(cfg core.Config) string {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "community"
	}
	return strings.ToUpper(name[:1]) + name[1:] + " API"
}

func sqlDriver(cfg core.DatabaseConfig) (string, schema.Dialect, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return "", nil, fmt.Errorf("app: database.dsn is required")
	}
	switch cfg.DatabaseDialect() {
	case communitymigrations.DialectPostgres:
		return "postgres", pgdialect.New(), nil
	default:
		return "sqlite3", sqlitedialect.New(), nil
	}
}

type persistenceConfig struct {
	db     core.DatabaseConfig
	driver string
}

func (c persistenceConfig) GetDebug() bool                { return c.db.Debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.db.DSN }
func (c persistenceConfig) GetPingTimeout() time.Duration { return c.db.PingTimeoutDuration() }
func (c persistenceConfig) GetOtelIdentifier() string     { return "go-community" }
