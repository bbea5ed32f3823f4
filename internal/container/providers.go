// Package container wires the invoice approval service together and owns
// the lifecycle of everything it builds.
package container

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/dispatcher"
	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/application/service"
	"github.com/garyjia/invoice-approval/internal/application/store"
	appwf "github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/config"
	"github.com/garyjia/invoice-approval/internal/extraction"
	"github.com/garyjia/invoice-approval/internal/infrastructure/export"
	"github.com/garyjia/invoice-approval/internal/infrastructure/lock"
	"github.com/garyjia/invoice-approval/internal/infrastructure/notifier"
	"github.com/garyjia/invoice-approval/internal/infrastructure/ocr"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/invoice-approval/internal/infrastructure/storage"
	"github.com/garyjia/invoice-approval/internal/infrastructure/worker"
	"github.com/garyjia/invoice-approval/internal/token"
	"github.com/garyjia/invoice-approval/migrations"
	"github.com/garyjia/invoice-approval/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// LockBundle holds the per-invoice locker and, for the redis backend, its client.
type LockBundle struct {
	Locker port.Locker
	Redis  *redis.Client
}

// ExtractionBundle holds the document-to-fields pipeline.
type ExtractionBundle struct {
	TextSource port.TextSource
	Extractor  port.FieldExtractor
}

// ProvideDatabase opens the SQLite database and applies the embedded migrations.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	var schema fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		schema = os.DirFS(cfg.MigrationsDir)
	}
	if err := database.NewMigrator(db, logger).RunMigrations(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		Invoice:        repository.NewInvoiceRepository(db.DB, logger),
		History:        repository.NewHistoryRepository(db.DB, logger),
		Notification:   repository.NewNotificationRepository(db.DB, logger),
		WebhookReceipt: repository.NewWebhookReceiptRepository(db.DB, logger),
	}, nil
}

// ProvideLocker builds the per-invoice locker for the configured backend.
// The redis backend is pinged once so a bad address fails at startup.
func ProvideLocker(cfg *config.LockConfig, logger *zap.Logger) (*LockBundle, error) {
	switch cfg.Backend {
	case "", config.LockBackendMemory:
		return &LockBundle{Locker: lock.NewMemoryLocker()}, nil
	case config.LockBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}

		logger.Info("Using redis invoice lock", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.TTL))
		return &LockBundle{
			Locker: lock.NewRedisLocker(client, cfg.TTL, logger),
			Redis:  client,
		}, nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}

// ProvideCodec derives the action token codec from the security settings.
func ProvideCodec(cfg *config.SecurityConfig) (*token.Codec, error) {
	return token.NewCodec(cfg.SecretKey, cfg.TokenSalt)
}

// ProvideExtraction builds the text source for the configured OCR provider and the field extractor.
func ProvideExtraction(cfg *config.ExtractionConfig, logger *zap.Logger) (*ExtractionBundle, error) {
	textSource, err := ocr.NewTextSource(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create text source: %w", err)
	}
	return &ExtractionBundle{
		TextSource: textSource,
		Extractor:  extraction.New(),
	}, nil
}

// ProvideNotifier picks the notification transport once, at startup.
func ProvideNotifier(cfg *config.NotificationConfig, logger *zap.Logger) (port.Notifier, error) {
	n, err := notifier.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}
	logger.Info("Notification transport selected", zap.String("transport", n.Name()))
	return n, nil
}

// ProvideStorage creates the upload storage.
func ProvideStorage(cfg *config.StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	return storage.NewLocalFileStorage(cfg.UploadDir, logger)
}

// ProvideDispatcher creates the event dispatcher with the audit log subscribed to every event.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	adapter := &ZapLoggerAdapter{logger: logger}
	disp := dispatcher.NewDispatcher(dispatcher.WithLogger(adapter))
	disp.SubscribeAll("audit", dispatcher.NewAuditHandler(adapter))
	return disp
}

// WorkflowDeps holds dependencies for the store and workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Locker     port.Locker
	Codec      port.TokenCodec
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideWorkflow creates the invoice store and the decision engine on top of it.
func ProvideWorkflow(deps *WorkflowDeps) (*store.InvoiceStore, appwf.Engine) {
	invoiceStore := store.New(deps.Repos.Invoice, deps.Repos.History, deps.TxManager, deps.Locker)
	engine := appwf.NewEngine(invoiceStore, deps.Codec,
		appwf.WithDispatcher(deps.Dispatcher),
		appwf.WithLogger(&ZapLoggerAdapter{logger: deps.Logger}),
	)
	return invoiceStore, engine
}

// ServiceDeps holds dependencies for the application services.
type ServiceDeps struct {
	Config     *config.Config
	Repos      *RepositoryBundle
	Store      port.InvoiceStore
	Engine     appwf.Engine
	Codec      port.TokenCodec
	Notifier   port.Notifier
	Storage    port.FileStorage
	Extraction *ExtractionBundle
	Exporter   port.LedgerExporter
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) *ServiceBundle {
	logger := &ZapLoggerAdapter{logger: deps.Logger}

	notifications := service.NewNotificationService(
		deps.Store,
		deps.Repos.Notification,
		deps.Notifier,
		deps.Codec,
		deps.Dispatcher,
		service.NotificationConfig{
			BaseURL: deps.Config.Server.BaseURL,
			Timeout: deps.Config.Notification.Timeout,
		},
		logger,
	)

	return &ServiceBundle{
		Notification: notifications,
		Intake: service.NewIntakeService(
			deps.Storage,
			deps.Extraction.TextSource,
			deps.Extraction.Extractor,
			deps.Store,
			notifications,
			deps.Dispatcher,
			deps.Config.Storage.MaxUploadBytes,
			logger,
		),
		Query:   service.NewInvoiceQueryService(deps.Store, deps.Exporter),
		Webhook: service.NewWebhookService(deps.Repos.WebhookReceipt, deps.Engine, logger),
	}
}

// ProvideExporter creates the spreadsheet ledger exporter.
func ProvideExporter(logger *zap.Logger) port.LedgerExporter {
	return export.NewLedgerExporter(logger)
}

// ProvideWorkers registers the background workers. They are started by the container.
func ProvideWorkers(cfg *config.NotificationConfig, repos *RepositoryBundle, services *ServiceBundle, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger)
	manager.Register(worker.NewNotificationRetryWorker(
		worker.NotificationRetryConfig{
			PollInterval: cfg.RetryInterval,
			BatchSize:    cfg.RetryBatch,
			MaxAttempts:  cfg.MaxAttempts,
		},
		repos.Notification,
		services.Notification,
		logger,
	))
	return manager
}
