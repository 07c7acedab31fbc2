// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends for captured screenshots.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Listing  ListingConfig  `mapstructure:"listing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CaptureConfig configures the headless screenshot subsystem.
type CaptureConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	MaxParallel       int    `mapstructure:"max_parallel"`
	NavTimeoutSeconds int    `mapstructure:"navigation_timeout_seconds"`
	SettleMs          int    `mapstructure:"settle_ms"`
	UserAgent         string `mapstructure:"user_agent"`
	WindowWidth       int    `mapstructure:"window_width"`
	WindowHeight      int    `mapstructure:"window_height"`
	CookiesFile       string `mapstructure:"cookies_file"`
}

// ProbeConfig configures the pre-capture reachability probe.
type ProbeConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// DatabaseConfig controls access to the relational report store. An
// empty DSN selects the in-memory store.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// StorageConfig selects and configures the screenshot blob backend.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	LocalDir    string `mapstructure:"local_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// NotifyConfig holds the optional report-created delivery channels.
type NotifyConfig struct {
	PubSub PubSubConfig `mapstructure:"pubsub"`
	SMTP   SMTPConfig   `mapstructure:"smtp"`
}

// PubSubConfig identifies the Pub/Sub topic for report events.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// SMTPConfig locates the mail relay for moderation notices.
type SMTPConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// ListingConfig tunes report listing endpoints.
type ListingConfig struct {
	RecentLimit int `mapstructure:"recent_limit"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REPORTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("logging.development", true)
	v.SetDefault("capture.enabled", true)
	v.SetDefault("capture.max_parallel", 2)
	v.SetDefault("capture.navigation_timeout_seconds", 12)
	v.SetDefault("capture.settle_ms", 1000)
	v.SetDefault("capture.user_agent", "")
	v.SetDefault("capture.window_width", 1280)
	v.SetDefault("capture.window_height", 800)
	v.SetDefault("capture.cookies_file", "")
	v.SetDefault("probe.enabled", true)
	v.SetDefault("probe.timeout_seconds", 10)
	v.SetDefault("probe.user_agent", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "reports")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.local_dir", "./screenshots")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "screenshots")
	v.SetDefault("storage.content_type", "image/png")
	v.SetDefault("notify.smtp.host", "")
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.smtp.username", "")
	v.SetDefault("notify.smtp.password", "")
	v.SetDefault("notify.smtp.from", "")
	v.SetDefault("notify.smtp.to", []string{})
	v.SetDefault("notify.pubsub.project_id", "")
	v.SetDefault("notify.pubsub.topic", "")
	v.SetDefault("listing.recent_limit", 5)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Capture.Enabled {
		if c.Capture.MaxParallel <= 0 {
			return fmt.Errorf("capture.max_parallel must be > 0 when capture is enabled")
		}
		if c.Capture.NavTimeoutSeconds < 1 || c.Capture.NavTimeoutSeconds > 60 {
			return fmt.Errorf("capture.navigation_timeout_seconds must be between 1 and 60")
		}
	}
	if c.Probe.Enabled && c.Probe.TimeoutSeconds <= 0 {
		return fmt.Errorf("probe.timeout_seconds must be > 0 when the probe is enabled")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of %s, %s, %s", BackendMemory, BackendLocal, BackendGCS)
	}
	if c.Notify.PubSub.ProjectID != "" && c.Notify.PubSub.Topic == "" {
		return fmt.Errorf("notify.pubsub.topic must be set when a project is configured")
	}
	if c.Notify.PubSub.Topic != "" && c.Notify.PubSub.ProjectID == "" {
		return fmt.Errorf("notify.pubsub.project_id must be set when a topic is configured")
	}
	if c.Notify.SMTP.Host != "" {
		if c.Notify.SMTP.From == "" || len(c.Notify.SMTP.To) == 0 {
			return fmt.Errorf("notify.smtp.from and notify.smtp.to must be set when a host is configured")
		}
	}
	if c.Listing.RecentLimit <= 0 {
		return fmt.Errorf("listing.recent_limit must be > 0")
	}
	return nil
}

// RequestTimeout converts the server timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// NavigationTimeout converts the capture timeout into a duration.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Capture.NavTimeoutSeconds) * time.Second
}

// SettleDelay converts the capture settle wait into a duration.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Capture.SettleMs) * time.Millisecond
}

// ProbeTimeout converts the probe timeout into a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// CaptureBudget bounds the whole capturing phase of one submission:
// probe, browser session, and artifact write share this deadline.
func (c Config) CaptureBudget() time.Duration {
	budget := c.NavigationTimeout()
	if c.Probe.Enabled {
		budget += c.ProbeTimeout()
	}
	return budget
}
