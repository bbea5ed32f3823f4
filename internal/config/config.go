package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/invoice-approval/pkg/utils"
)

// Notification transports
const (
	TransportResendSDK  = "resend_sdk"
	TransportResendHTTP = "resend_http"
	TransportLark       = "lark"
	TransportLog        = "log"
)

// OCR providers
const (
	OCRProviderOpenAI = "openai"
	OCRProviderAzure  = "azure"
	OCRProviderNone   = "none"
)

// Lock backends
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// MinSecretKeyLength is the shortest accepted security.secret_key
const MinSecretKeyLength = 16

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Security     SecurityConfig     `mapstructure:"security"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Notification NotificationConfig `mapstructure:"notification"`
	Extraction   ExtractionConfig   `mapstructure:"extraction"`
	Lock         LockConfig         `mapstructure:"lock"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// BaseURL prefixes the action links sent to reviewers
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MigrationsDir overrides the embedded schema when set
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// SecurityConfig holds signing secrets
type SecurityConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	TokenSalt     string `mapstructure:"token_salt"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// StorageConfig holds upload storage configuration
type StorageConfig struct {
	UploadDir      string `mapstructure:"upload_dir"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// NotificationConfig holds reviewer notification configuration
type NotificationConfig struct {
	Transport     string        `mapstructure:"transport"`
	Timeout       time.Duration `mapstructure:"timeout"`
	From          string        `mapstructure:"from"`
	ResendAPIKey  string        `mapstructure:"resend_api_key"`
	ResendBaseURL string        `mapstructure:"resend_base_url"`
	LarkAppID     string        `mapstructure:"lark_app_id"`
	LarkAppSecret string        `mapstructure:"lark_app_secret"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RetryBatch    int           `mapstructure:"retry_batch"`
}

// SendsEmail reports whether the transport delivers through Resend
func (n NotificationConfig) SendsEmail() bool {
	return n.Transport == TransportResendSDK || n.Transport == TransportResendHTTP
}

// ExtractionConfig holds text extraction configuration
type ExtractionConfig struct {
	OCRProvider   string        `mapstructure:"ocr_provider"`
	OpenAIAPIKey  string        `mapstructure:"openai_api_key"`
	OpenAIModel   string        `mapstructure:"openai_model"`
	AzureEndpoint string        `mapstructure:"azure_endpoint"`
	AzureKey      string        `mapstructure:"azure_key"`
	Preprocess    bool          `mapstructure:"preprocess"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// LockConfig holds per-invoice lock configuration
type LockConfig struct {
	Backend   string        `mapstructure:"backend"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional .env file, the YAML file at configPath
// and environment variables. An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports variables from path without overriding ones already set
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.base_url", "http://localhost:8080")

	// Database defaults
	v.SetDefault("database.path", "data/invoices.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("security.token_salt", "invoice-action")

	// Storage defaults
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.max_upload_bytes", 20<<20)

	// Notification defaults
	v.SetDefault("notification.transport", TransportLog)
	v.SetDefault("notification.timeout", 10*time.Second)
	v.SetDefault("notification.resend_base_url", "https://api.resend.com")
	v.SetDefault("notification.max_attempts", 5)
	v.SetDefault("notification.retry_interval", time.Minute)
	v.SetDefault("notification.retry_batch", 20)

	// Extraction defaults
	v.SetDefault("extraction.ocr_provider", OCRProviderNone)
	v.SetDefault("extraction.openai_model", "gpt-4o-mini")
	v.SetDefault("extraction.preprocess", true)
	v.SetDefault("extraction.timeout", 60*time.Second)

	// Lock defaults
	v.SetDefault("lock.backend", LockBackendMemory)
	v.SetDefault("lock.redis_addr", "localhost:6379")
	v.SetDefault("lock.ttl", 10*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"security.secret_key":          "SECRET_KEY",
		"security.webhook_secret":      "WEBHOOK_SECRET",
		"server.base_url":              "BASE_URL",
		"storage.upload_dir":           "UPLOAD_DIR",
		"database.path":                "DATABASE_PATH",
		"notification.transport":       "NOTIFICATION_TRANSPORT",
		"notification.from":            "EMAIL_FROM",
		"notification.resend_api_key":  "RESEND_API_KEY",
		"notification.lark_app_id":     "LARK_APP_ID",
		"notification.lark_app_secret": "LARK_APP_SECRET",
		"extraction.openai_api_key":    "OPENAI_API_KEY",
		"extraction.azure_endpoint":    "AZURE_VISION_ENDPOINT",
		"extraction.azure_key":         "AZURE_VISION_KEY",
		"lock.redis_addr":              "REDIS_ADDR",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Security.SecretKey) < MinSecretKeyLength {
		return fmt.Errorf("security.secret_key must be at least %d bytes", MinSecretKeyLength)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("storage.upload_dir is required")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("storage.max_upload_bytes must be positive")
	}

	// Validate notification transport
	switch c.Notification.Transport {
	case TransportResendSDK, TransportResendHTTP:
		if c.Notification.ResendAPIKey == "" {
			return fmt.Errorf("notification.resend_api_key is required for transport %s", c.Notification.Transport)
		}
		if err := utils.ValidateFromAddress(c.Notification.From); err != nil {
			return fmt.Errorf("notification.from: %w", err)
		}
	case TransportLark:
		if c.Notification.LarkAppID == "" || c.Notification.LarkAppSecret == "" {
			return fmt.Errorf("notification.lark_app_id and notification.lark_app_secret are required for transport lark")
		}
	case TransportLog:
	default:
		return fmt.Errorf("notification.transport must be one of %s|%s|%s|%s, got %q",
			TransportResendSDK, TransportResendHTTP, TransportLark, TransportLog, c.Notification.Transport)
	}
	if c.Notification.Timeout <= 0 {
		return fmt.Errorf("notification.timeout must be positive")
	}
	if c.Notification.MaxAttempts < 1 {
		return fmt.Errorf("notification.max_attempts must be at least 1")
	}

	// Validate OCR provider
	switch c.Extraction.OCRProvider {
	case OCRProviderOpenAI:
		if c.Extraction.OpenAIAPIKey == "" {
			return fmt.Errorf("extraction.openai_api_key is required for ocr provider openai")
		}
	case OCRProviderAzure:
		if c.Extraction.AzureEndpoint == "" || c.Extraction.AzureKey == "" {
			return fmt.Errorf("extraction.azure_endpoint and extraction.azure_key are required for ocr provider azure")
		}
	case OCRProviderNone:
	default:
		return fmt.Errorf("extraction.ocr_provider must be one of %s|%s|%s, got %q",
			OCRProviderOpenAI, OCRProviderAzure, OCRProviderNone, c.Extraction.OCRProvider)
	}

	// Validate lock backend
	switch c.Lock.Backend {
	case LockBackendMemory:
	case LockBackendRedis:
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("lock.redis_addr is required for lock backend redis")
		}
	default:
		return fmt.Errorf("lock.backend must be %s or %s, got %q", LockBackendMemory, LockBackendRedis, c.Lock.Backend)
	}
	if c.Lock.TTL <= 0 {
		return fmt.Errorf("lock.ttl must be positive")
	}

	return nil
}
