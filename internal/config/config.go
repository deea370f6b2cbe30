// Package config loads chatshare configuration from TOML, .env and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	PlatformSlack      = "slack"
	PlatformMattermost = "mattermost"
)

// Config holds all configuration for chatshare
type Config struct {
	Environment string         `toml:"environment"`
	Server      ServerConfig   `toml:"server"`
	Mongo       MongoConfig    `toml:"mongo"`
	Security    SecurityConfig `toml:"security"`
	Platform    PlatformConfig `toml:"platform"`
	Files       FilesConfig    `toml:"files"`
	Sharing     SharingConfig  `toml:"sharing"`
	Webhooks    WebhookConfig  `toml:"webhooks"`
	Logging     LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	BaseURL     string `toml:"base_url"`     // public URL of this server, used for redirect_uri and links
	SettingsURL string `toml:"settings_url"` // where the browser lands after a settings-initiated OAuth
	FilesURL    string `toml:"files_url"`    // where the browser lands after a files-initiated OAuth
}

// MongoConfig holds the MongoDB connection settings
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
	Timeout  string `toml:"timeout"`
}

// GetTimeout parses and returns the connect timeout
func (c *MongoConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// SecurityConfig holds session and encryption secrets
type SecurityConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	EncryptionKey string `toml:"encryption_key"`
	SessionTTL    string `toml:"session_ttl"`
}

// GetSessionTTL parses and returns the API session lifetime
func (c *SecurityConfig) GetSessionTTL() time.Duration {
	return parseDuration(c.SessionTTL, 24*time.Hour)
}

// PlatformConfig selects the chat platform variant and its HTTP client settings
type PlatformConfig struct {
	Kind      string `toml:"kind"` // "slack" or "mattermost"
	APIURL    string `toml:"api_url"`
	UserAgent string `toml:"user_agent"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the outbound request timeout
func (c *PlatformConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// FilesConfig points at the local storage root indexed by the file source
type FilesConfig struct {
	Root string `toml:"root"`
}

// SharingConfig holds public link settings
type SharingConfig struct {
	PublicBaseURL     string `toml:"public_base_url"`
	DefaultExpireDays int    `toml:"default_expire_days"`
}

// WebhookConfig holds scheduler and delivery settings for webhook jobs
type WebhookConfig struct {
	Timezone          string `toml:"timezone"`
	DailyInterval     string `toml:"daily_interval"`
	ImminentInterval  string `toml:"imminent_interval"`
	ImminentLookahead string `toml:"imminent_lookahead"`
	Timeout           string `toml:"timeout"`
	SchedulerEnabled  bool   `toml:"scheduler_enabled"`
}

// GetDailyInterval parses and returns how often the daily-summary job is evaluated
func (c *WebhookConfig) GetDailyInterval() time.Duration {
	return parseDuration(c.DailyInterval, time.Hour)
}

// GetImminentInterval parses and returns the imminent-events scan period
func (c *WebhookConfig) GetImminentInterval() time.Duration {
	return parseDuration(c.ImminentInterval, 10*time.Minute)
}

// GetImminentLookahead parses and returns how far ahead "imminent" reaches
func (c *WebhookConfig) GetImminentLookahead() time.Duration {
	return parseDuration(c.ImminentLookahead, 15*time.Minute)
}

// GetTimeout parses and returns the webhook POST timeout
func (c *WebhookConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// Location resolves the job evaluation timezone, falling back to UTC.
func (c *WebhookConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "chatshare",
			Timeout:  "10s",
		},
		Security: SecurityConfig{
			SessionTTL: "24h",
		},
		Platform: PlatformConfig{
			Kind:      PlatformMattermost,
			UserAgent: "chatshare/1.0",
			RateLimit: 10,
			Timeout:   "30s",
		},
		Files: FilesConfig{
			Root: "./data/files",
		},
		Sharing: SharingConfig{
			DefaultExpireDays: 7,
		},
		Webhooks: WebhookConfig{
			Timezone:          "UTC",
			DailyInterval:     "1h",
			ImminentInterval:  "10m",
			ImminentLookahead: "15m",
			Timeout:           "30s",
			SchedulerEnabled:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads .env, then each TOML file in order, then environment overrides.
func LoadConfig(paths ...string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDerivedDefaults()
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Environment, "CHATSHARE_ENV")
	setString(&cfg.Server.Host, "CHATSHARE_HOST")
	if v := os.Getenv("CHATSHARE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	setString(&cfg.Server.BaseURL, "CHATSHARE_BASE_URL")
	setString(&cfg.Server.SettingsURL, "CHATSHARE_SETTINGS_URL")
	setString(&cfg.Server.FilesURL, "CHATSHARE_FILES_URL")
	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Mongo.Database, "CHATSHARE_MONGO_DATABASE")
	setString(&cfg.Security.JWTSecret, "JWT_SECRET")
	setString(&cfg.Security.EncryptionKey, "TOKEN_ENC_KEY")
	setString(&cfg.Platform.Kind, "CHATSHARE_PLATFORM")
	setString(&cfg.Platform.APIURL, "CHATSHARE_PLATFORM_API_URL")
	setString(&cfg.Files.Root, "CHATSHARE_FILES_ROOT")
	setString(&cfg.Sharing.PublicBaseURL, "CHATSHARE_PUBLIC_BASE_URL")
	setString(&cfg.Webhooks.Timezone, "CHATSHARE_TIMEZONE")
	setString(&cfg.Logging.Level, "CHATSHARE_LOG_LEVEL")
	setString(&cfg.Logging.Format, "CHATSHARE_LOG_FORMAT")
	if v := os.Getenv("CHATSHARE_SCHEDULER"); v != "" {
		cfg.Webhooks.SchedulerEnabled = v == "1" || strings.EqualFold(v, "true")
	}
}

func (c *Config) applyDerivedDefaults() {
	c.Server.BaseURL = strings.TrimSuffix(c.Server.BaseURL, "/")
	if c.Server.SettingsURL == "" {
		c.Server.SettingsURL = c.Server.BaseURL + "/settings/user/connected-accounts"
	}
	if c.Server.FilesURL == "" {
		c.Server.FilesURL = c.Server.BaseURL + "/apps/files/"
	}
	if c.Sharing.PublicBaseURL == "" {
		c.Sharing.PublicBaseURL = c.Server.BaseURL
	}
	c.Platform.Kind = strings.ToLower(c.Platform.Kind)
}

// Validate returns the names of required settings that are missing or invalid.
func (c *Config) Validate() []string {
	var missing []string
	if c.Mongo.URI == "" {
		missing = append(missing, "mongo.uri")
	}
	if c.Security.JWTSecret == "" {
		missing = append(missing, "security.jwt_secret")
	}
	if c.Security.EncryptionKey == "" {
		missing = append(missing, "security.encryption_key")
	}
	if c.Server.BaseURL == "" {
		missing = append(missing, "server.base_url")
	}
	if c.Platform.Kind != PlatformSlack && c.Platform.Kind != PlatformMattermost {
		missing = append(missing, "platform.kind")
	}
	return missing
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
