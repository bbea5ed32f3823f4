package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/dispatcher"
	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/application/service"
	"github.com/garyjia/invoice-approval/internal/application/store"
	appwf "github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/config"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/invoice-approval/internal/infrastructure/worker"
	"github.com/garyjia/invoice-approval/internal/token"
	"github.com/garyjia/invoice-approval/internal/webhook"
	"github.com/garyjia/invoice-approval/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle
	locker       port.Locker
	redis        *redis.Client

	// Infrastructure - External
	codec      *token.Codec
	notifier   port.Notifier
	extraction *ExtractionBundle
	exporter   port.LedgerExporter
	verifier   *webhook.Verifier

	// Infrastructure - Storage
	fileStorage port.FileStorage

	// Application
	dispatcher dispatcher.Dispatcher
	store      *store.InvoiceStore
	engine     appwf.Engine
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Invoice        port.InvoiceRepository
	History        port.HistoryRepository
	Notification   port.NotificationRepository
	WebhookReceipt port.WebhookReceiptRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Intake       service.IntakeService
	Query        service.InvoiceQueryService
	Notification service.NotificationService
	Webhook      service.WebhookService
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins background processing.
// On failure everything built so far is released.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	steps := []struct {
		name string
		fn   func() error
	}{
		{"database", c.initDatabase},
		{"lock", c.initLock},
		{"external clients", c.initExternalClients},
		{"storage", c.initStorage},
		{"workflow", c.initDispatcherAndWorkflow},
		{"services", c.initServices},
		{"workers", c.initWorkers},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			if closeErr := c.teardown(); closeErr != nil {
				c.logger.Error("Cleanup after failed start", zap.Error(closeErr))
			}
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Component initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) teardown() error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	// pending async events still reach the audit log
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health reports component health for the health endpoint.
func (c *Container) Health(ctx context.Context) (bool, map[string]string) {
	healthy := true
	components := make(map[string]string)

	check := func(name string, err error) {
		if err != nil {
			healthy = false
			components[name] = err.Error()
			return
		}
		components[name] = "ok"
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if c.db == nil {
		check("database", errors.New("not initialized"))
	} else {
		check("database", c.db.PingContext(ctx))
	}

	if c.redis != nil {
		check("lock", c.redis.Ping(ctx).Err())
	}

	if c.workers == nil || !c.workers.IsRunning() {
		check("workers", errors.New("not running"))
	} else {
		check("workers", nil)
	}

	return healthy, components
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = dbBundle.DB
	c.txManager = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initLock() error {
	bundle, err := ProvideLocker(&c.config.Lock, c.logger)
	if err != nil {
		return err
	}
	c.locker = bundle.Locker
	c.redis = bundle.Redis
	return nil
}

func (c *Container) initExternalClients() error {
	codec, err := ProvideCodec(&c.config.Security)
	if err != nil {
		return err
	}
	c.codec = codec

	n, err := ProvideNotifier(&c.config.Notification, c.logger)
	if err != nil {
		return err
	}
	c.notifier = n

	extraction, err := ProvideExtraction(&c.config.Extraction, c.logger)
	if err != nil {
		return err
	}
	c.extraction = extraction

	c.exporter = ProvideExporter(c.logger)
	c.verifier = webhook.NewVerifier(c.config.Security.WebhookSecret, c.logger)
	return nil
}

func (c *Container) initStorage() error {
	fileStorage, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.fileStorage = fileStorage
	return nil
}

func (c *Container) initDispatcherAndWorkflow() error {
	c.dispatcher = ProvideDispatcher(c.logger)
	c.store, c.engine = ProvideWorkflow(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Locker:     c.locker,
		Codec:      c.codec,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	return nil
}

func (c *Container) initServices() error {
	c.services = ProvideServices(&ServiceDeps{
		Config:     c.config,
		Repos:      c.repositories,
		Store:      c.store,
		Engine:     c.engine,
		Codec:      c.codec,
		Notifier:   c.notifier,
		Storage:    c.fileStorage,
		Extraction: c.extraction,
		Exporter:   c.exporter,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	return nil
}

func (c *Container) initWorkers() error {
	c.workers = ProvideWorkers(&c.config.Notification, c.repositories, c.services, c.logger)
	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// Getters for accessing container components

// Store returns the invoice store.
func (c *Container) Store() *store.InvoiceStore {
	return c.store
}

// Engine returns the decision engine.
func (c *Container) Engine() appwf.Engine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Codec returns the action token codec.
func (c *Container) Codec() *token.Codec {
	return c.codec
}

// Verifier returns the webhook signature verifier.
func (c *Container) Verifier() *webhook.Verifier {
	return c.verifier
}

// Extraction returns the text source and field extractor.
func (c *Container) Extraction() *ExtractionBundle {
	return c.extraction
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// AppLogger returns the key/value logger the application layer expects.
func (c *Container) AppLogger() *ZapLoggerAdapter {
	return &ZapLoggerAdapter{logger: c.logger}
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
