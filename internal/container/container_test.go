package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appwf "github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/config"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{BaseURL: "http://localhost:8080"},
		Database: config.DatabaseConfig{
			Path:         filepath.Join(dir, "invoices.db"),
			MaxOpenConns: 1,
		},
		Security: config.SecurityConfig{
			SecretKey: "container-test-secret-key",
			TokenSalt: "invoice-action",
		},
		Storage: config.StorageConfig{
			UploadDir:      filepath.Join(dir, "uploads"),
			MaxUploadBytes: 1 << 20,
		},
		Notification: config.NotificationConfig{
			Transport:     config.TransportLog,
			Timeout:       time.Second,
			MaxAttempts:   3,
			RetryInterval: time.Hour,
		},
		Extraction: config.ExtractionConfig{OCRProvider: config.OCRProviderNone},
		Lock:       config.LockConfig{Backend: config.LockBackendMemory, TTL: time.Second},
	}
}

func TestNewContainer_Validation(t *testing.T) {
	logger := zap.NewNop()

	_, err := NewContainer(nil, logger)
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Security.SecretKey = "short"
	_, err = NewContainer(cfg, logger)
	assert.ErrorContains(t, err, "invalid config")
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Ready())

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()), "second start must fail")

	require.NotNil(t, c.Services())
	assert.NotNil(t, c.Engine())
	assert.NotNil(t, c.Store())
	assert.NotNil(t, c.Codec())
	assert.False(t, c.Verifier().Enabled())
	assert.Equal(t, 1, c.Workers().GetWorkerCount())

	healthy, components := c.Health(context.Background())
	assert.True(t, healthy)
	assert.Equal(t, "ok", components["database"])
	assert.Equal(t, "ok", components["workers"])
	assert.NotContains(t, components, "lock")

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(context.Background()), "closed container cannot restart")
}

func TestContainer_WiresDecisionFlow(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	inv, err := c.Store().Create(ctx, entity.Fields{}, "", "inv.pdf", entity.CreatedViaAPI)
	require.NoError(t, err)

	d, err := c.Engine().DecideViaWebhook(ctx, appwf.WebhookDecision{
		InvoiceID: inv.ID,
		Action:    "approve",
		Source:    "container-test",
	})
	require.NoError(t, err)
	assert.True(t, d.Applied)
	assert.Equal(t, workflow.StateApproved, d.Invoice.State)

	history, err := c.Store().History(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestContainer_RedisLock(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Lock.Backend = config.LockBackendRedis
	cfg.Lock.RedisAddr = mr.Addr()

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	healthy, components := c.Health(context.Background())
	assert.True(t, healthy)
	assert.Equal(t, "ok", components["lock"])

	mr.Close()
	healthy, components = c.Health(context.Background())
	assert.False(t, healthy)
	assert.NotEqual(t, "ok", components["lock"])

	assert.NoError(t, c.Close())
}

func TestContainer_StartFailureReleasesResources(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lock.Backend = config.LockBackendRedis
	cfg.Lock.RedisAddr = "127.0.0.1:1"

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	err = c.Start(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to initialize lock")
	assert.False(t, c.Ready())
}

func TestContainer_MigrationsDirOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.MigrationsDir = filepath.Join(t.TempDir(), "missing")

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	err = c.Start(context.Background())
	assert.ErrorContains(t, err, "failed to initialize database")
}
