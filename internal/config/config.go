package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal images

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Log       LogConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	WhatsApp  WhatsAppConfig
	Sheets    SheetsConfig
	Reporting ReportingConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port         string        `envconfig:"APP_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	// RateLimit caps requests per client IP within RateWindow; 0 disables it.
	RateLimit  int           `envconfig:"RATE_LIMIT_REQUESTS" default:"120"`
	RateWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// AppConfig identifies the application namespace and the acting user.
type AppConfig struct {
	ID        string `envconfig:"APP_ID" default:"default-argan-app"`
	UserID    string `envconfig:"USER_ID"`
	AuthToken string `envconfig:"AUTH_TOKEN"`
	Currency  string `envconfig:"CURRENCY" default:"MAD"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" required:"true"`
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string `envconfig:"MONGODB_URI"`
	DBName string `envconfig:"MONGODB_DB_NAME" default:"argan"`
}

// RedisConfig holds settings for the Redis store.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
// The chat surface is disabled when AccessToken is empty.
type WhatsAppConfig struct {
	AccessToken   string `envconfig:"WHATSAPP_TOKEN"`
	PhoneNumberID string `envconfig:"WHATSAPP_PHONE_NUMBER_ID"`
	VerifyToken   string `envconfig:"META_VERIFY_TOKEN"`
	// AppSecret enables X-Hub-Signature-256 checks on webhook deliveries.
	AppSecret  string `envconfig:"WHATSAPP_APP_SECRET"`
	BaseURL    string `envconfig:"WHATSAPP_BASE_URL" default:"https://graph.facebook.com"`
	APIVersion string `envconfig:"WHATSAPP_API_VERSION" default:"v20.0"`
	ReportTo   string `envconfig:"WHATSAPP_REPORT_TO"`
}

// Enabled reports whether WhatsApp credentials were supplied.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != ""
}

// SheetsConfig contains configuration required to mirror sales into Google Sheets.
// The mirror is disabled when SpreadsheetID is empty.
type SheetsConfig struct {
	CredentialsPath string `envconfig:"GOOGLE_SHEETS_CREDENTIALS_PATH"`
	SpreadsheetID   string `envconfig:"GOOGLE_SHEET_DATABASE_ID"`
	SalesRange      string `envconfig:"GOOGLE_SHEET_SALES_RANGE" default:"Sales!A:G"`
}

// Enabled reports whether a spreadsheet was configured.
func (c SheetsConfig) Enabled() bool {
	return c.SpreadsheetID != ""
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule string `envconfig:"REPORT_CRON_SCHEDULE" default:"0 20 * * 5"`
	Timezone     string `envconfig:"TIMEZONE" default:"Africa/Casablanca"`
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when the environment is set directly.
		_ = godotenv.Load()
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Server.RateLimit < 0 {
		return errors.New("RATE_LIMIT_REQUESTS must not be negative")
	}

	if c.App.ID == "" {
		return errors.New("APP_ID must not be empty")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("REDIS_ADDR must be provided for the redis store")
		}
	case BackendMongo:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided for the mongo store")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must not be empty")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.Store.Backend)
	}

	if c.WhatsApp.Enabled() {
		switch {
		case c.WhatsApp.PhoneNumberID == "":
			return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided")
		case c.WhatsApp.VerifyToken == "":
			return errors.New("META_VERIFY_TOKEN must be provided")
		case c.WhatsApp.BaseURL == "":
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		case c.WhatsApp.APIVersion == "":
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if c.Sheets.Enabled() && c.Sheets.CredentialsPath == "" {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if _, err := time.LoadLocation(c.Reporting.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Reporting.Timezone, err)
	}

	return nil
}
